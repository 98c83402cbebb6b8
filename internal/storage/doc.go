// Package storage keeps the local escalation log.
package storage
