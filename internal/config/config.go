// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/servicestatus/servicestatus/internal/auth"
	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset outside production.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config holds every setting the binaries need.
type Config struct {
	Port        string
	Environment string

	TelemetryEnabled bool
	OTLPEndpoint     string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	// DefaultService is queried when a request names no service.
	DefaultService string

	// FetchTimeout bounds a single status page request.
	FetchTimeout time.Duration

	SweepConcurrency int
	SweepTimeout     time.Duration

	// SweepBudget bounds a whole on-demand sweep served over HTTP.
	SweepBudget time.Duration

	PubSubProjectID    string
	PubSubSubscription string

	RequireTLS bool
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	var errs []error

	fetchTimeout, err := time.ParseDuration(getEnvOrDefault("FETCH_TIMEOUT", "10s"))
	errs = append(errs, wrap("FETCH_TIMEOUT", err))

	sweepTimeout, err := time.ParseDuration(getEnvOrDefault("SWEEP_TIMEOUT", "15s"))
	errs = append(errs, wrap("SWEEP_TIMEOUT", err))

	sweepBudget, err := time.ParseDuration(getEnvOrDefault("SWEEP_BUDGET", "45s"))
	errs = append(errs, wrap("SWEEP_BUDGET", err))

	tokenTTL, err := time.ParseDuration(getEnvOrDefault("TOKEN_TTL", "1h"))
	errs = append(errs, wrap("TOKEN_TTL", err))

	concurrency, err := strconv.Atoi(getEnvOrDefault("SWEEP_CONCURRENCY", "4"))
	errs = append(errs, wrap("SWEEP_CONCURRENCY", err))

	telemetryEnabled, err := strconv.ParseBool(getEnvOrDefault("OTEL_ENABLED", "false"))
	errs = append(errs, wrap("OTEL_ENABLED", err))

	requireTLS, err := strconv.ParseBool(getEnvOrDefault("REQUIRE_TLS", "false"))
	errs = append(errs, wrap("REQUIRE_TLS", err))

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		TelemetryEnabled:   telemetryEnabled,
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:          getEnvOrDefault("JWT_ISSUER", "servicestatus"),
		JWTAudience:        getEnvOrDefault("JWT_AUDIENCE", "servicestatus-api"),
		TokenTTL:           tokenTTL,
		DefaultService:     getEnvOrDefault("DEFAULT_SERVICE", statuspage.DefaultServiceName),
		FetchTimeout:       fetchTimeout,
		SweepConcurrency:   concurrency,
		SweepTimeout:       sweepTimeout,
		SweepBudget:        sweepBudget,
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		RequireTLS:         requireTLS,
	}, nil
}

// WriteTimeout is the API server's write deadline. It leaves room after a
// sweep that uses its whole budget to write the report.
func (c Config) WriteTimeout() time.Duration {
	return c.SweepBudget + 15*time.Second
}

// IsProduction reports whether the process runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// PubSubEnabled reports whether the worker should subscribe to Pub/Sub.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

// SigningKey returns the JWT signing key, falling back to DevSigningKey
// outside production.
func (c Config) SigningKey() string {
	if c.JWTSigningKey == "" && !c.IsProduction() {
		return DevSigningKey
	}
	return c.JWTSigningKey
}

// TokenConfig returns the operator token settings.
func (c Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		SigningKey: c.SigningKey(),
		Issuer:     c.JWTIssuer,
		Audience:   c.JWTAudience,
		TTL:        c.TokenTTL,
	}
}

// Validate checks the configuration against registry.
func (c Config) Validate(registry *statuspage.Registry) error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("APP_PORT must not be empty"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, errors.New("SWEEP_TIMEOUT must be positive"))
	}
	if c.SweepBudget <= 0 {
		errs = append(errs, errors.New("SWEEP_BUDGET must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.SweepConcurrency < 1 {
		errs = append(errs, errors.New("SWEEP_CONCURRENCY must be at least 1"))
	}
	if c.IsProduction() && c.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
	}
	if registry != nil {
		if _, err := registry.Resolve(c.DefaultService); err != nil {
			errs = append(errs, fmt.Errorf("DEFAULT_SERVICE: %w", err))
		}
	}

	return errors.Join(errs...)
}

func wrap(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
