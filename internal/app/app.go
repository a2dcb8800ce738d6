package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"radpad-intake-service/internal/config"
	"radpad-intake-service/internal/credits"
	"radpad-intake-service/internal/debounce"
	"radpad-intake-service/internal/events"
	"radpad-intake-service/internal/httpclient"
	"radpad-intake-service/internal/observability"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/service/search"
	"radpad-intake-service/internal/service/validator"
	"radpad-intake-service/internal/service/workflow"
)

const serviceName = "radpad-intake-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Ledger       *credits.Ledger
	Workflows    *workflow.Registry
	Searcher     search.Searcher
	SearchPolicy debounce.Policy
	Publisher    *events.Publisher

	creditCloser io.Closer
	httpServer   *http.Server
	obsServer    *observability.Server
}

// New constructs the application and its dependencies from cfg.
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	store, closer, err := credits.Open(cfg.Credits)
	if err != nil {
		return nil, fmt.Errorf("open credit store: %w", err)
	}
	a.creditCloser = closer
	a.Ledger = credits.NewLedger(store)

	a.Publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicAttempts:    cfg.Kafka.TopicAttempts,
		TopicTransitions: cfg.Kafka.TopicTransitions,
		TopicCapture:     cfg.Kafka.TopicCapture,
		Principal:        cfg.Kafka.Principal,
	})

	client := validator.New(validator.Config{
		BaseURL:   cfg.Validator.BaseURL,
		Path:      cfg.Validator.Path,
		AuthToken: cfg.Validator.AuthToken,
		Timeout:   cfg.Validator.Timeout,
	})
	a.Workflows = workflow.NewRegistry(workflow.Policy{
		MinInputLength:      cfg.Workflow.MinInputLength,
		OverrideMinAttempts: cfg.Workflow.OverrideMinAttempts,
	}, client, a.Ledger, a.Publisher)

	a.Searcher = search.NewRemote(search.RemoteConfig{
		BaseURL:   cfg.Search.BaseURL,
		AuthToken: cfg.Search.AuthToken,
	}, httpclient.New(httpclient.WithTimeout(cfg.Search.Timeout)))
	a.SearchPolicy = debounce.Policy{
		MinLength: cfg.Debounce.MinLength,
		Delay:     cfg.Debounce.Delay,
	}

	appLogger.Info().
		Str("creditsBackend", cfg.Credits.Backend).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("Radpad intake service application created")
	return a, nil
}

// setupLogger initialises the global logger from the observability config,
// with ZEROLOG_LOG_LEVEL and ENV=dev taking precedence.
func (a *Application) setupLogger() {
	level := a.Cfg.Observability.LogLevel
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		level = strings.ToLower(envLevel)
	}
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}

	logging.Init(logging.Config{
		Level:      level,
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", serviceName).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start loads the credit counter and begins serving handler on the API port
// and metrics on the observability port.
func (a *Application) Start(ctx context.Context, handler http.Handler) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	if err := a.Ledger.Load(ctx); err != nil {
		// an unreadable counter reads as zero; submissions are refused until the server says otherwise
		startLogger.Warn().Err(err).Msg("Credit counter unreadable")
	}

	a.obsServer = observability.NewServer(":" + a.Cfg.Service.MetricsPort)
	a.obsServer.Start()

	a.httpServer = &http.Server{
		Addr:              ":" + a.Cfg.Service.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		startLogger.Info().Str("addr", a.httpServer.Addr).Msg("Starting API HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startLogger.Error().Err(err).Msg("API HTTP server error")
		}
	}()

	a.StartupTime = time.Now().UTC()
	a.obsServer.SetReady(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Int("creditsRemaining", a.Ledger.Remaining()).
		Msg("Radpad intake service started")

	return nil
}

// Shutdown stops the servers and releases the publisher and credit store.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Radpad intake service shutting down")

	if a.obsServer != nil {
		a.obsServer.SetReady(false)
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("API HTTP server shutdown")
		}
	}
	if a.obsServer != nil {
		if err := a.obsServer.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Observability HTTP server shutdown")
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Event publisher close")
		}
	}
	if a.creditCloser != nil {
		if err := a.creditCloser.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Credit store close")
		}
	}
}
