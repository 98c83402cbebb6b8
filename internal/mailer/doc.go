// Package mailer dispatches escalation email to maintainers over SMTP. Every
// dispatch is tagged with a short reference ID the requester can quote, and
// the ID is returned even when delivery fails.
package mailer
