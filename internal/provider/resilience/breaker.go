package resilience

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls when the breaker guarding a host trips and how
// long it stays open.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker outright. Default: 5
	ConsecutiveFailures uint32

	// FailureRatio trips the breaker once MinRequests requests have been
	// counted in the current window. Default: 0.6
	FailureRatio float64

	// MinRequests is the window size FailureRatio needs. Default: 10
	MinRequests uint32

	// OpenFor is how long an open breaker rejects requests before letting
	// a single probe through. Default: 30 seconds
	OpenFor time.Duration

	// OnStateChange is called with the host on every transition (optional).
	OnStateChange func(host string, from, to gobreaker.State)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 5
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinRequests == 0 {
		c.MinRequests = 10
	}
	if c.OpenFor == 0 {
		c.OpenFor = 30 * time.Second
	}
	return c
}

// ShouldTrip reports whether counts are bad enough to open the breaker.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	c = c.withDefaults()
	if counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func newBreaker(host string, cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          host,
		MaxRequests:   1,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.ShouldTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
