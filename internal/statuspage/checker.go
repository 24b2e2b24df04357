package statuspage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

// Fetcher retrieves the raw JSON document at a status page URL.
type Fetcher interface {
	// Fetch performs a single GET. Failures are *TransportError for
	// network and HTTP errors and *FormatError for malformed JSON.
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// CheckerConfig holds configuration for the status checker.
type CheckerConfig struct {
	// Registry lists the known services. Defaults to DefaultRegistry().
	Registry *Registry

	// Fetcher retrieves status payloads (required).
	Fetcher Fetcher

	// Logger for service operations.
	Logger zerolog.Logger
}

// Checker resolves, fetches and normalizes service statuses.
// It keeps no state between calls.
type Checker struct {
	registry *Registry
	fetcher  Fetcher
	logger   zerolog.Logger
}

// NewChecker creates a new status checker.
func NewChecker(cfg CheckerConfig) *Checker {
	registry := cfg.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	return &Checker{
		registry: registry,
		fetcher:  cfg.Fetcher,
		logger:   cfg.Logger,
	}
}

// Registry returns the service registry.
func (s *Checker) Registry() *Registry {
	return s.registry
}

// Status returns a fresh snapshot for the named service.
// Unknown names fail with ErrServiceNotFound before any request is made.
func (s *Checker) Status(ctx context.Context, name string) (*Snapshot, error) {
	svc, err := s.registry.Resolve(name)
	if err != nil {
		s.logger.Debug().Str("service", name).Msg("unknown service requested")
		return nil, err
	}
	return s.StatusOf(ctx, svc)
}

// StatusOf fetches and normalizes the status of svc.
func (s *Checker) StatusOf(ctx context.Context, svc Service) (*Snapshot, error) {
	url := svc.StatusURL()

	logger := s.logger.With().
		Str("service", svc.Name).
		Str("url", url).
		Logger()

	raw, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		logFailure(&logger, err)
		return nil, err
	}

	snapshot, err := Normalize(raw, svc.Name, url)
	if err != nil {
		logFailure(&logger, err)
		return nil, err
	}

	logger.Debug().
		Int("components", len(snapshot.Components)).
		Msg("status fetched")

	return snapshot, nil
}

func logFailure(logger *zerolog.Logger, err error) {
	var formatErr *FormatError
	var transportErr *TransportError

	switch {
	case errors.As(err, &formatErr):
		logger.Warn().
			Str("detail", formatErr.Error()).
			Msg("status payload has unexpected format")
	case errors.As(err, &transportErr):
		logger.Warn().
			Err(transportErr.Err).
			Int("status_code", transportErr.StatusCode).
			Msg("status request failed")
	default:
		logger.Error().Err(err).Msg("status lookup failed")
	}
}
