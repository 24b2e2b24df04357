// Package main provides the entrypoint for the status sweep worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/api/response"
	"github.com/servicestatus/servicestatus/internal/config"
	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/statuspage/statuspageio"
	"github.com/servicestatus/servicestatus/internal/telemetry"
	"github.com/servicestatus/servicestatus/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "servicestatus-worker"

	once := flag.Bool("once", false, "run a single sweep, print the results and exit")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	registry := statuspage.DefaultRegistry()
	if err := cfg.Validate(registry); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	flushTelemetry := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}

	fetchMetrics, err := telemetry.NewFetchMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fetch metrics")
	}

	health := resilience.NewRegistry()
	checker := statuspage.NewChecker(statuspage.CheckerConfig{
		Registry: registry,
		Fetcher: statuspageio.NewClient(statuspageio.ClientConfig{
			Health:  health,
			Timeout: cfg.FetchTimeout,
			Metrics: fetchMetrics,
			Logger:  log,
		}),
		Logger: log,
	})

	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{
			Concurrency: cfg.SweepConcurrency,
			Timeout:     cfg.SweepTimeout,
		},
		Status: checker,
		Logger: log,
	})

	if *once {
		code := runOnce(ctx, sweep, os.Stdout, flushTelemetry)
		cancel()
		os.Exit(code)
	}
	defer flushTelemetry()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting status sweep worker")

	// The worker exposes a health endpoint for Cloud Run.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"sweeps":  sweep.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	var subscriber *worker.PubSubHandler
	if cfg.PubSubEnabled() {
		processor := worker.NewJobProcessor(worker.JobProcessorConfig{
			Sweep:          sweep,
			Registry:       registry,
			DefaultService: cfg.DefaultService,
			Logger:         log,
		})

		subscriber, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Processor:        processor,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}

		go func() {
			log.Info().
				Str("subscription", cfg.PubSubSubscription).
				Msg("waiting for sweep messages")
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID or PUBSUB_SUBSCRIPTION not set - no sweep messages will be received")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runOnce runs a single sweep, prints it and flushes telemetry. It returns
// the process exit code: 1 when no service answered, 0 otherwise.
func runOnce(ctx context.Context, sweep *worker.SweepJob, w io.Writer, flush func()) int {
	result := sweep.Run(ctx)
	printSweep(w, result)
	flush()

	if result.Successful == 0 && result.Total > 0 {
		return 1
	}
	return 0
}

// printSweep writes one line per service in registry order.
func printSweep(w io.Writer, result *worker.SweepResult) {
	for _, r := range result.Results {
		switch r.Outcome {
		case worker.OutcomeOK:
			fmt.Fprintf(w, "%-16s ok (%d components)\n", r.Service, r.Components)
		default:
			fmt.Fprintf(w, "%-16s %s\n", r.Service, r.Message)
		}
	}
	fmt.Fprintf(w, "%d services, %d ok, %d request errors, %d format errors in %s\n",
		result.Total, result.Successful, result.RequestErrors, result.FormatErrors, result.Duration.Round(time.Millisecond))
}
