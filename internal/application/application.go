package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/release-desk/internal/api"
	"github.com/eugenenazirov/release-desk/internal/config"
	"github.com/eugenenazirov/release-desk/internal/mailer"
	"github.com/eugenenazirov/release-desk/internal/storage"
)

const escalationLogCapacity = 500

// App encapsulates the application dependencies and HTTP server.
type App struct {
	escalations storage.Storage
	logger      *zap.Logger
	server      *http.Server
}

// Option customises New.
type Option func(*options)

type options struct {
	transport mailer.Transport
}

// WithTransport replaces the SMTP transport, primarily for tests.
func WithTransport(transport mailer.Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// New initializes the application with all dependencies from the provided
// configuration. cfg must come from config.Load so its secrets are resolved.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg.Email.Password == "" {
		return nil, errors.New("smtp password not resolved; load configuration with config.Load")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = mailer.NewSMTPTransport(cfg.Email)
	}

	store := storage.NewMemoryStorage(escalationLogCapacity)
	sender := mailer.New(o.transport, cfg.Email.Sender, logger.Named("mailer"))
	handler := api.NewHandler(sender, store, cfg.Email.Maintainer, api.WithBindings(cfg.Secrets))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler, err := BuildRootHandler(apiRouter)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	logger.Info("configuration resolved",
		zap.Stringer("email", cfg.Email),
		zap.Stringer("secrets", cfg.Secrets),
	)

	return &App{
		escalations: store,
		logger:      logger,
		server:      NewServer(cfg, rootHandler),
	}, nil
}

// BuildRootHandler constructs the root HTTP handler that routes API requests.
func BuildRootHandler(apiHandler http.Handler) (http.Handler, error) {
	if apiHandler == nil {
		return nil, errors.New("api handler is required")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/health", http.StatusFound)
	}))

	return mux, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Escalations returns the local escalation log.
func (a *App) Escalations() storage.Storage {
	return a.escalations
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
