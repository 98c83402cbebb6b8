// Package logging builds the service's zap loggers, including a variant that
// scrubs resolved secret values from every emitted line.
package logging
