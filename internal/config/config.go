package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/release-desk/internal/secrets"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
	defaultSMTPPort       = 587
	defaultSMTPTimeout    = 20 * time.Second

	// PasswordSecret names the SMTP credential every deployment must supply.
	PasswordSecret = "SMTP_PASSWORD"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	Email EmailConfig

	SecretPaths     secrets.Paths
	RequiredSecrets []string
	// Secrets holds every value resolved at startup: required names plus
	// anything referenced by a ${NAME} placeholder.
	Secrets secrets.Bindings
}

// EmailConfig describes the SMTP relay used for maintainer escalations.
type EmailConfig struct {
	Maintainer string
	Host       string
	Port       int
	Username   string
	Password   string
	Sender     string
	Timeout    time.Duration
	StartTLS   bool
}

// String omits the password.
func (e EmailConfig) String() string {
	return fmt.Sprintf("smtp://%s@%s:%d (sender=%s maintainer=%s starttls=%t)",
		e.Username, e.Host, e.Port, e.Sender, e.Maintainer, e.StartTLS)
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Server  yamlServer  `yaml:"server"`
	Email   yamlEmail   `yaml:"email"`
	Secrets yamlSecrets `yaml:"secrets"`
}

type yamlServer struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlEmail struct {
	Maintainer string `yaml:"maintainer"`
	SMTPHost   string `yaml:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user"`
	SMTPPass   string `yaml:"smtp_pass"`
	Sender     string `yaml:"sender"`
	Timeout    string `yaml:"timeout"`
	StartTLS   *bool  `yaml:"starttls"`
}

type yamlSecrets struct {
	Required []string `yaml:"required"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile          string
	Port                *string
	RateLimitRPS        *float64
	RateLimitBurst      *int
	PlatformSecretsFile *string
	EnvFile             *string
	RequiredSecrets     []string
}

// LoadOption customises Load.
type LoadOption func(*loader)

type loader struct {
	sources []secrets.Source
	logger  *zap.Logger
}

// WithSources replaces the default platform/env/file source chain.
func WithSources(sources ...secrets.Source) LoadOption {
	return func(l *loader) {
		l.sources = sources
	}
}

// WithLogger passes a logger through to the secrets resolver.
func WithLogger(logger *zap.Logger) LoadOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults.
// It resolves required secrets before returning; an unresolved secret or
// placeholder yields a *secrets.MissingConfigurationError.
func Load(overrides *CLIOverrides, opts ...LoadOption) (Config, error) {
	l := loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&l)
	}

	cfg := defaultConfig()
	applyEnvConfig(&cfg)
	applySecretPathOverrides(&cfg, overrides)

	if l.sources == nil {
		sources, err := secrets.DefaultSources(cfg.SecretPaths)
		if err != nil {
			return Config{}, fmt.Errorf("open secret sources: %w", err)
		}
		l.sources = sources
	}
	resolver := secrets.NewResolver(l.sources, secrets.WithLogger(l.logger))

	var (
		interpolated []secrets.Binding
		unresolved   []string
	)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, in, err := loadFromFile(overrides.ConfigFile, resolver)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		interpolated, unresolved = in.bound, in.missing
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	required, err := resolver.Resolve(cfg.RequiredSecrets...)
	if err = joinMissing(err, unresolved); err != nil {
		return Config{}, err
	}
	cfg.Secrets = required.Merge(secrets.NewBindings(interpolated))

	if cfg.Email.Password == "" {
		if password, ok := cfg.Secrets.Get(PasswordSecret); ok {
			cfg.Email.Password = password
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Email: EmailConfig{
			Port:     defaultSMTPPort,
			Timeout:  defaultSMTPTimeout,
			StartTLS: true,
		},
		SecretPaths: secrets.Paths{
			PlatformFile: secrets.DefaultPlatformFile,
			EnvFile:      secrets.DefaultEnvFile,
		},
		RequiredSecrets: []string{PasswordSecret},
	}
}

// loadFromFile reads a YAML file and substitutes ${NAME} placeholders in its
// values through resolver. Placeholders left unresolved are reported on the
// returned interpolator; the decoded config is only meaningful when there
// are none.
func loadFromFile(path string, resolver *secrets.Resolver) (*yamlConfig, *interpolator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse YAML: %w", err)
	}

	in := newInterpolator(resolver)
	in.walk(&doc)

	var yamlCfg yamlConfig
	if len(doc.Content) > 0 && len(in.missing) == 0 {
		if err := doc.Decode(&yamlCfg); err != nil {
			return nil, nil, fmt.Errorf("decode YAML: %w", err)
		}
	}

	return &yamlCfg, in, nil
}

// joinMissing folds unresolved placeholders into a resolver error so the
// operator sees every missing name at once.
func joinMissing(err error, placeholders []string) error {
	if err == nil && len(placeholders) == 0 {
		return nil
	}
	var missing *secrets.MissingConfigurationError
	if err != nil && !errors.As(err, &missing) {
		return err
	}
	keys := []string(nil)
	if missing != nil {
		keys = append(keys, missing.Keys...)
	}
	return &secrets.MissingConfigurationError{Keys: appendUnique(keys, placeholders...)}
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	server := yamlCfg.Server
	if server.Port != "" {
		cfg.Port = server.Port
	}

	durations := []struct {
		raw    string
		target *time.Duration
		field  string
	}{
		{server.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "server.shutdown_grace_period"},
		{server.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "server.read_header_timeout"},
		{server.WriteTimeout, &cfg.WriteTimeout, "server.write_timeout"},
		{server.IdleTimeout, &cfg.IdleTimeout, "server.idle_timeout"},
		{yamlCfg.Email.Timeout, &cfg.Email.Timeout, "email.timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		*d.target = parsed
	}

	if server.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *server.EnableRequestLogging
	}
	if server.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *server.RateLimit.RPS
	}
	if server.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *server.RateLimit.Burst
	}

	email := yamlCfg.Email
	setString(&cfg.Email.Maintainer, email.Maintainer)
	setString(&cfg.Email.Host, email.SMTPHost)
	setString(&cfg.Email.Username, email.SMTPUser)
	setString(&cfg.Email.Password, email.SMTPPass)
	setString(&cfg.Email.Sender, email.Sender)
	if email.SMTPPort != 0 {
		cfg.Email.Port = email.SMTPPort
	}
	if email.StartTLS != nil {
		cfg.Email.StartTLS = *email.StartTLS
	}

	if len(yamlCfg.Secrets.Required) > 0 {
		cfg.RequiredSecrets = appendUnique(cfg.RequiredSecrets, yamlCfg.Secrets.Required...)
	}
	return nil
}

// applyEnvConfig applies non-secret environment variables. Secrets go
// through the resolver instead.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	setString(&cfg.Email.Maintainer, strings.TrimSpace(os.Getenv("MAINTAINER_EMAIL")))
	setString(&cfg.Email.Host, strings.TrimSpace(os.Getenv("SMTP_HOST")))
	setString(&cfg.Email.Username, strings.TrimSpace(os.Getenv("SMTP_USER")))
	setString(&cfg.Email.Sender, strings.TrimSpace(os.Getenv("SMTP_SENDER")))

	if port := strings.TrimSpace(os.Getenv("SMTP_PORT")); port != "" {
		if value, err := strconv.Atoi(port); err == nil {
			cfg.Email.Port = value
		}
	}

	setString(&cfg.SecretPaths.PlatformFile, strings.TrimSpace(os.Getenv("SECRETS_FILE")))
	setString(&cfg.SecretPaths.EnvFile, strings.TrimSpace(os.Getenv("ENV_FILE")))
}

// applySecretPathOverrides runs ahead of YAML loading because the YAML
// placeholders are resolved through these files.
func applySecretPathOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides == nil {
		return
	}
	if overrides.PlatformSecretsFile != nil {
		cfg.SecretPaths.PlatformFile = *overrides.PlatformSecretsFile
	}
	if overrides.EnvFile != nil {
		cfg.SecretPaths.EnvFile = *overrides.EnvFile
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if len(overrides.RequiredSecrets) > 0 {
		cfg.RequiredSecrets = appendUnique(cfg.RequiredSecrets, overrides.RequiredSecrets...)
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}

	var errs []error
	if cfg.Email.Host == "" {
		errs = append(errs, errors.New("email.smtp_host is required"))
	}
	if cfg.Email.Port <= 0 || cfg.Email.Port > 65535 {
		errs = append(errs, fmt.Errorf("email.smtp_port %d out of range", cfg.Email.Port))
	}
	if err := validateAddress("email.maintainer", cfg.Email.Maintainer); err != nil {
		errs = append(errs, err)
	}
	if err := validateAddress("email.sender", cfg.Email.Sender); err != nil {
		errs = append(errs, err)
	}
	if cfg.Email.Timeout <= 0 {
		errs = append(errs, errors.New("email.timeout must be positive"))
	}
	return errors.Join(errs...)
}

func validateAddress(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return fmt.Errorf("%s: invalid address %q", field, value)
	}
	return nil
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func appendUnique(list []string, values ...string) []string {
	out := append([]string(nil), list...)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		found := false
		for _, existing := range out {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

// SensitiveValues lists every value that must be kept out of logs.
func (c Config) SensitiveValues() []string {
	values := c.Secrets.Values()
	if c.Email.Password != "" {
		values = append(values, c.Email.Password)
	}
	return values
}

// IsMissingConfiguration reports whether err stems from unresolved secrets.
func IsMissingConfiguration(err error) bool {
	return errors.Is(err, secrets.ErrMissingConfiguration)
}

// fileExists is used by callers deciding whether a default config path applies.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// DefaultConfigFile returns path when it exists, otherwise "".
func DefaultConfigFile(path string) string {
	if path != "" && fileExists(path) {
		return path
	}
	return ""
}
