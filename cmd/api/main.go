// Package main provides the entrypoint for the service status API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/api"
	"github.com/servicestatus/servicestatus/internal/api/middleware"
	"github.com/servicestatus/servicestatus/internal/auth"
	"github.com/servicestatus/servicestatus/internal/config"
	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/statuspage/statuspageio"
	"github.com/servicestatus/servicestatus/internal/telemetry"
	"github.com/servicestatus/servicestatus/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "servicestatus-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting service status API")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	registry := statuspage.DefaultRegistry()
	if err := cfg.Validate(registry); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	fetchMetrics, err := telemetry.NewFetchMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize fetch metrics")
		os.Exit(1)
	}

	if cfg.JWTSigningKey == "" {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens, err := auth.NewTokenService(cfg.TokenConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}

	health := resilience.NewRegistry()
	client := statuspageio.NewClient(statuspageio.ClientConfig{
		Health:  health,
		Timeout: cfg.FetchTimeout,
		Metrics: fetchMetrics,
		Logger:  log,
	})

	checker := statuspage.NewChecker(statuspage.CheckerConfig{
		Registry: registry,
		Fetcher:  client,
		Logger:   log,
	})

	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{
			Concurrency: cfg.SweepConcurrency,
			Timeout:     cfg.SweepTimeout,
		},
		Status: checker,
		Logger: log,
	})

	log.Info().
		Int("services", registry.Len()).
		Str("default_service", cfg.DefaultService).
		Msg("status checker initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		TokenValidator: tokens,
		Checker:        checker,
		Health:         health,
		Sweeper:        sweep,
		DefaultService: cfg.DefaultService,
		RequireTLS:     cfg.RequireTLS,
		SweepBudget:    cfg.SweepBudget,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
