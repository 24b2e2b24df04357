// Package statuspageio fetches documents from hosted status pages that
// expose the /api/v2 JSON interface.
package statuspageio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/telemetry"
)

const (
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "servicestatus/1.0"

	// MaxBodyBytes bounds the size of a status document.
	MaxBodyBytes = 4 << 20
)

// Request outcomes reported to metrics.
const (
	outcomeOK             = "ok"
	outcomeTransportError = "transport_error"
	outcomeFormatError    = "format_error"
)

// ClientConfig holds configuration for the status page client.
type ClientConfig struct {
	// HTTPClient is used for every host when set (optional).
	// If nil, each host gets its own resilient client with its own
	// circuit breaker, registered in Health.
	HTTPClient *resilience.Client

	// Health records per-host outcomes (optional).
	Health *resilience.Registry

	// Timeout applies to each request made by per-host clients.
	// Default: 10 seconds
	Timeout time.Duration

	// Transport overrides the HTTP transport of per-host clients (optional).
	Transport http.RoundTripper

	// Metrics records request durations (optional).
	Metrics *telemetry.FetchMetrics

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches status page documents. It is safe for concurrent use.
type Client struct {
	httpClient *resilience.Client
	health     *resilience.Registry
	timeout    time.Duration
	transport  http.RoundTripper
	metrics    *telemetry.FetchMetrics
	userAgent  string
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewClient creates a new status page client.
func NewClient(cfg ClientConfig) *Client {
	health := cfg.Health
	if health == nil {
		health = resilience.NewRegistry()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		health:     health,
		timeout:    timeout,
		transport:  cfg.Transport,
		metrics:    cfg.Metrics,
		userAgent:  userAgent,
		tracer:     otel.Tracer(telemetry.InstrumentationName),
		logger:     cfg.Logger,
	}
}

// Health returns the registry holding per-host outcomes.
func (c *Client) Health() *resilience.Registry {
	return c.health
}

// Fetch performs one GET against rawURL and returns the JSON body.
func (c *Client) Fetch(ctx context.Context, rawURL string) (json.RawMessage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return nil, &statuspage.TransportError{URL: rawURL, Err: err}
	}
	host := u.Host

	ctx, span := c.tracer.Start(ctx, "statuspage.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.ServerAddress(host),
			semconv.URLFull(rawURL),
		),
	)
	defer span.End()

	start := time.Now()
	body, err := c.fetch(ctx, host, rawURL)
	duration := time.Since(start)

	outcome := outcomeOK
	if err != nil {
		var formatErr *statuspage.FormatError
		outcome = outcomeTransportError
		if errors.As(err, &formatErr) {
			outcome = outcomeFormatError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		// Host health is served on the ops API, so it keeps the user-facing
		// message and leaves payload details to the logs.
		c.health.RecordFailure(host, errors.New(statuspage.UserMessage(err)))
	} else {
		c.health.RecordSuccess(host)
	}
	c.metrics.RecordRequest(ctx, host, outcome, duration)

	c.logger.Debug().
		Str("host", host).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("status page request")

	return body, err
}

func (c *Client) fetch(ctx context.Context, host, rawURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &statuspage.TransportError{URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.clientFor(host).Do(req)
	if err != nil {
		return nil, &statuspage.TransportError{URL: rawURL, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))
		return nil, &statuspage.TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, &statuspage.TransportError{URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(body) > MaxBodyBytes {
		return nil, &statuspage.FormatError{Detail: fmt.Sprintf("body exceeds %d bytes", MaxBodyBytes)}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &statuspage.FormatError{Detail: "decoding response", Err: err}
	}

	return raw, nil
}

// clientFor returns the resilient client used for host.
func (c *Client) clientFor(host string) *resilience.Client {
	if c.httpClient != nil {
		return c.httpClient
	}

	return c.health.ClientFor(host, func() *resilience.Client {
		cfg := resilience.DefaultClientConfig(host)
		cfg.Timeout = c.timeout
		cfg.Transport = c.transport
		cfg.Breaker.OnStateChange = func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("host", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
		return resilience.NewClient(cfg)
	})
}
