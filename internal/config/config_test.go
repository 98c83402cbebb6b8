package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/eugenenazirov/release-desk/internal/secrets"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"MAINTAINER_EMAIL", "SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_SENDER",
		"SECRETS_FILE", "ENV_FILE",
	} {
		t.Setenv(key, "")
	}
}

func setMailEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("MAINTAINER_EMAIL", "maintainer@example.com")
	t.Setenv("SMTP_SENDER", "bot@example.com")
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "code.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func envSource(values map[string]string) secrets.Source {
	return secrets.NewEnvSourceFrom(values)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)

	cfg, err := Load(nil, WithSources(envSource(map[string]string{PasswordSecret: "pw"})))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Email.Port != defaultSMTPPort || !cfg.Email.StartTLS {
		t.Fatalf("unexpected email defaults: %+v", cfg.Email.String())
	}
	if cfg.Email.Password != "pw" {
		t.Fatalf("expected password from resolved secret")
	}
	if !slices.Equal(cfg.Secrets.Names(), []string{PasswordSecret}) {
		t.Fatalf("unexpected bound secrets: %v", cfg.Secrets)
	}
}

func TestLoadFailsWhenPasswordMissingEverywhere(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)

	_, err := Load(nil, WithSources(envSource(nil)))
	if err == nil {
		t.Fatalf("expected missing configuration error")
	}
	if !IsMissingConfiguration(err) {
		t.Fatalf("expected missing configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), PasswordSecret) {
		t.Fatalf("expected error to mention %s, got %v", PasswordSecret, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("RATE_LIMIT_RPS", "12.5")

	cfg, err := Load(nil, WithSources(envSource(map[string]string{PasswordSecret: "pw"})))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.RateLimitRPS != 12.5 {
		t.Fatalf("expected overridden rps, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadYAMLInterpolatesPlaceholders(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
server:
  port: "7070"
  write_timeout: 45s
  enable_request_logging: false
  rate_limit:
    rps: 0
    burst: 0
email:
  maintainer: ${MAINTAINER}
  smtp_host: smtp.example.com
  smtp_port: ${SMTP_PORT_NUMBER}
  smtp_user: ${SMTP_USER_NAME}
  smtp_pass: ${SMTP_PASSWORD}
  sender: "Release Bot <bot@example.com>"
  timeout: 5s
secrets:
  required: [API_TOKEN]
`)

	platform, err := secrets.NewPlatformStoreFromBytes([]byte(`
SMTP_PASSWORD = "platform-pw"
MAINTAINER = "owner@example.com"
`))
	if err != nil {
		t.Fatalf("platform store: %v", err)
	}
	env := envSource(map[string]string{
		PasswordSecret:     "env-pw",
		"SMTP_PORT_NUMBER": "2525",
		"SMTP_USER_NAME":   "bot",
		"API_TOKEN":        "token",
	})

	cfg, err := Load(&CLIOverrides{ConfigFile: path}, WithSources(platform, env))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7070" || cfg.WriteTimeout != 45*time.Second || cfg.EnableRequestLogging {
		t.Fatalf("server section not applied: port=%s write=%s logging=%t", cfg.Port, cfg.WriteTimeout, cfg.EnableRequestLogging)
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 0 {
		t.Fatalf("expected explicit zero rate limits, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.Email.Password != "platform-pw" {
		t.Fatalf("expected platform password to win")
	}
	if cfg.Email.Port != 2525 || cfg.Email.Username != "bot" || cfg.Email.Maintainer != "owner@example.com" {
		t.Fatalf("email section not interpolated: %s", cfg.Email.String())
	}
	if cfg.Email.Timeout != 5*time.Second {
		t.Fatalf("unexpected email timeout %s", cfg.Email.Timeout)
	}

	wantNames := []string{PasswordSecret, "API_TOKEN", "MAINTAINER", "SMTP_PORT_NUMBER", "SMTP_USER_NAME"}
	if !slices.Equal(cfg.Secrets.Names(), wantNames) {
		t.Fatalf("expected bindings %v, got %v", wantNames, cfg.Secrets.Names())
	}
	binding, _ := cfg.Secrets.Binding(PasswordSecret)
	if binding.Provenance != secrets.ProvenancePlatform {
		t.Fatalf("expected platform provenance, got %s", binding.Provenance)
	}
}

func TestLoadKeepsNullLikeSecretsAsText(t *testing.T) {
	for _, value := range []string{"null", "~", "NULL"} {
		t.Run(value, func(t *testing.T) {
			clearEnv(t)
			setMailEnv(t)
			path := writeYAML(t, `
email:
  smtp_user: ${SMTP_USER}
  smtp_pass: ${SMTP_PASSWORD}
`)

			cfg, err := Load(&CLIOverrides{ConfigFile: path}, WithSources(envSource(map[string]string{
				"SMTP_USER":    value,
				PasswordSecret: value,
			})))
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if cfg.Email.Username != value {
				t.Fatalf("expected username %q, got %q", value, cfg.Email.Username)
			}
			if cfg.Email.Password != value {
				t.Fatalf("expected password to be kept verbatim")
			}
		})
	}
}

func TestLoadReportsEveryMissingName(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)
	path := writeYAML(t, `
email:
  smtp_user: ${SMTP_USER_NAME}
  smtp_pass: ${SMTP_PASSWORD}
`)

	_, err := Load(&CLIOverrides{ConfigFile: path, RequiredSecrets: []string{"API_TOKEN"}}, WithSources(envSource(nil)))
	var missing *secrets.MissingConfigurationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingConfigurationError, got %v", err)
	}
	want := []string{PasswordSecret, "API_TOKEN", "SMTP_USER_NAME"}
	if !slices.Equal(missing.Keys, want) {
		t.Fatalf("expected missing %v, got %v", want, missing.Keys)
	}
}

func TestLoadValidatesEmailSettings(t *testing.T) {
	clearEnv(t)

	_, err := Load(nil, WithSources(envSource(map[string]string{PasswordSecret: "pw"})))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if IsMissingConfiguration(err) {
		t.Fatalf("validation failure should not be reported as missing secrets: %v", err)
	}
	for _, field := range []string{"email.smtp_host", "email.maintainer", "email.sender"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected error to mention %s, got %v", field, err)
		}
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)
	path := writeYAML(t, "server:\n  idle_timeout: forever\n")

	_, err := Load(&CLIOverrides{ConfigFile: path}, WithSources(envSource(map[string]string{PasswordSecret: "pw"})))
	if err == nil || !strings.Contains(err.Error(), "server.idle_timeout") {
		t.Fatalf("expected idle_timeout error, got %v", err)
	}
}

func TestLoadUsesSecretFilesFromOverrides(t *testing.T) {
	clearEnv(t)
	setMailEnv(t)
	t.Setenv(PasswordSecret, "")

	dir := t.TempDir()
	envFile := filepath.Join(dir, "local.env")
	if err := os.WriteFile(envFile, []byte("SMTP_PASSWORD=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	platformFile := filepath.Join(dir, "absent.toml")

	cfg, err := Load(&CLIOverrides{PlatformSecretsFile: &platformFile, EnvFile: &envFile})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	binding, ok := cfg.Secrets.Binding(PasswordSecret)
	if !ok || binding.Value != "from-dotenv" || binding.Provenance != secrets.ProvenanceFile {
		t.Fatalf("expected dotenv binding, got %s", binding)
	}
}

func TestSensitiveValues(t *testing.T) {
	cfg := Config{
		Secrets: secrets.NewBindings([]secrets.Binding{{Name: "A", Value: "one"}}),
		Email:   EmailConfig{Password: "two"},
	}
	if got := cfg.SensitiveValues(); !slices.Equal(got, []string{"one", "two"}) {
		t.Fatalf("unexpected sensitive values %v", got)
	}
}

func TestEmailConfigStringOmitsPassword(t *testing.T) {
	e := EmailConfig{Host: "smtp.example.com", Port: 587, Username: "bot", Password: "hunter2"}
	if strings.Contains(e.String(), "hunter2") {
		t.Fatalf("password leaked: %s", e.String())
	}
}

func TestDefaultConfigFile(t *testing.T) {
	path := writeYAML(t, "")
	if got := DefaultConfigFile(path); got != path {
		t.Fatalf("expected %s, got %s", path, got)
	}
	if got := DefaultConfigFile(filepath.Join(t.TempDir(), "nope.yml")); got != "" {
		t.Fatalf("expected empty path, got %s", got)
	}
}
