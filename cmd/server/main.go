package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/release-desk/internal/application"
	"github.com/eugenenazirov/release-desk/internal/config"
	"github.com/eugenenazirov/release-desk/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("release-desk", "Release Desk - resolves deployment secrets and escalates unanswered release queries to maintainers by email")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").Default("code.yml").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	secretsFile := kingpinApp.Flag("secrets-file", "Platform secrets store (TOML)").Envar("SECRETS_FILE").String()
	envFile := kingpinApp.Flag("env-file", "Developer-only KEY=value override file").Envar("ENV_FILE").String()
	required := kingpinApp.Flag("require", "Additional secret that must resolve at startup (repeatable)").Strings()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Escalations per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile:      config.DefaultConfigFile(*configFile),
		RequiredSecrets: *required,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *secretsFile != "" {
		overrides.PlatformSecretsFile = secretsFile
	}

	if *envFile != "" {
		overrides.EnvFile = envFile
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		os.Exit(reportStartupError(os.Stderr, err))
	}

	logger := logging.NewRedacting(os.Stdout, cfg.SensitiveValues())
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// reportStartupError prints a configuration failure and returns the exit
// code. No secret value is ever part of err.
func reportStartupError(w io.Writer, err error) int {
	if config.IsMissingConfiguration(err) {
		_, _ = fmt.Fprintf(w, "configuration error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(w, "failed to load configuration: %v\n", err)
	return 1
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
