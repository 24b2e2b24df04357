// Package resilience guards outbound status page requests with a circuit
// breaker per host and remembers how each host has been answering.
package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a host's breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError marks a 5xx answer. It counts against the breaker; Do still
// hands the response back once retries are exhausted.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig configures the client for one status page host.
type ClientConfig struct {
	// Host is the status page host the client talks to.
	Host string

	// Timeout bounds each attempt. Default: 10 seconds
	Timeout time.Duration

	// Retries is the number of extra attempts after a 5xx or a network
	// error. Zero means a single attempt.
	Retries uint64

	// RetryWait is the first backoff interval. Default: 100ms
	RetryWait time.Duration

	// MaxRetryWait caps the backoff interval. Default: 2 seconds
	MaxRetryWait time.Duration

	Breaker BreakerConfig

	// Transport overrides http.DefaultTransport (optional).
	Transport http.RoundTripper
}

// DefaultClientConfig returns the configuration used for host when nothing
// is overridden: one attempt, 10 second timeout, default breaker.
func DefaultClientConfig(host string) ClientConfig {
	return ClientConfig{
		Host:         host,
		Timeout:      10 * time.Second,
		RetryWait:    100 * time.Millisecond,
		MaxRetryWait: 2 * time.Second,
	}
}

// Client sends requests to a single host through its breaker.
type Client struct {
	host         string
	http         *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	retries      uint64
	retryWait    time.Duration
	maxRetryWait time.Duration
}

// NewClient builds a client from cfg, filling in defaults.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultClientConfig(cfg.Host)
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = def.RetryWait
	}
	if cfg.MaxRetryWait == 0 {
		cfg.MaxRetryWait = def.MaxRetryWait
	}

	return &Client{
		host:         cfg.Host,
		http:         &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker:      newBreaker(cfg.Host, cfg.Breaker),
		retries:      cfg.Retries,
		retryWait:    cfg.RetryWait,
		maxRetryWait: cfg.MaxRetryWait,
	}
}

// Host returns the host this client serves.
func (c *Client) Host() string { return c.host }

// State returns the breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Counts returns the breaker's counters for the current window.
func (c *Client) Counts() gobreaker.Counts { return c.breaker.Counts() }

// Do sends req, retrying 5xx answers and network errors up to the
// configured number of times. A non-nil error means no response is
// returned; 4xx and 5xx responses are returned with a nil error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// A 5xx response is kept until the next attempt replaces it.
	var pending *http.Response
	discard := func() {
		if pending != nil {
			pending.Body.Close()
			pending = nil
		}
	}

	attempt := func() (*http.Response, error) {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			resp, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return resp, &StatusError{StatusCode: resp.StatusCode}
			}
			return resp, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, backoff.Permanent(ErrCircuitOpen)
		case ctx.Err() != nil:
			if resp != nil {
				resp.Body.Close()
			}
			return nil, backoff.Permanent(ctx.Err())
		}
		pending = resp
		return resp, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxInterval = c.maxRetryWait
	policy.MaxElapsedTime = 0

	resp, err := backoff.RetryNotifyWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx),
		func(error, time.Duration) { discard() },
	)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && resp != nil {
		return resp, nil
	}
	if err != nil {
		discard()
		return nil, fmt.Errorf("%s: %w", c.host, err)
	}
	return resp, nil
}
