// Package api provides the HTTP API for the service status assistant.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/api/handler"
	"github.com/servicestatus/servicestatus/internal/api/middleware"
	"github.com/servicestatus/servicestatus/internal/auth"
	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	TokenValidator middleware.TokenValidator
	Checker        *statuspage.Checker
	Health         *resilience.Registry
	Sweeper        handler.Sweeper
	DefaultService string
	RequireTLS     bool

	// SweepBudget bounds POST /v1/ops/sweep. Zero leaves it unbounded.
	SweepBudget time.Duration
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "servicestatus-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	registry := cfg.Checker.Registry()

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:        cfg.Version,
		BuildTime:      cfg.BuildTime,
		Registry:       registry,
		Health:         cfg.Health,
		DefaultService: cfg.DefaultService,
	})
	statusHandler := handler.NewStatusHandler(cfg.Checker, cfg.DefaultService, cfg.Logger)
	sweepHandler := handler.NewSweepHandler(cfg.Sweeper, registry, cfg.SweepBudget)
	toolsHandler := handler.NewToolsHandler()

	authMiddleware := middleware.Auth(cfg.TokenValidator)

	sweepLimit := middleware.LimitBySubject(middleware.SweepLimit)
	upstreamLimit := middleware.LimitByIP(middleware.UpstreamLimit)
	localLimit := middleware.LimitByIP(middleware.LocalLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)

			// Operator endpoints
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.With(middleware.RequireScope(auth.ScopeRead)).
					Get("/status", opsHandler.SystemStatus)
				r.With(middleware.RequireScope(auth.ScopeSweep), sweepLimit, middleware.RequireJSON).
					Post("/sweep", sweepHandler.RunSweep)
			})
		})

		// Local-only endpoints
		r.Group(func(r chi.Router) {
			r.Use(localLimit)
			r.Get("/services", statusHandler.ListServices)
			r.Get("/tools", toolsHandler.ListTools)
		})

		// Endpoints that call an upstream status page
		r.Group(func(r chi.Router) {
			r.Use(upstreamLimit)
			r.Get("/services/{name}/status", statusHandler.GetServiceStatus)
			r.Get("/status", statusHandler.GetStatus)
		})
	})

	return r
}
