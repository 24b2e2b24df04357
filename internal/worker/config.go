// Package worker runs diagnostic sweeps across every registered status page.
package worker

import (
	"time"

	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// SweepConfig holds configuration for a status sweep.
type SweepConfig struct {
	// Services are the services to query, in presentation order.
	// If empty, every service in the status service's registry is used.
	Services []statuspage.Service

	// Concurrency is the number of concurrent status requests.
	// Default: 4
	Concurrency int

	// Timeout bounds each service query.
	// Default: 15 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Concurrency: 4,
		Timeout:     15 * time.Second,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	d := DefaultSweepConfig()
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
