// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Secrets are never read here directly; they
// are resolved once through the secrets package and carried on Config.
package config
