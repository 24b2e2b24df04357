package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FetchMetrics records outbound status page fetches.
type FetchMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewFetchMetrics creates the fetch instruments on the
// global meter provider.
func NewFetchMetrics() (*FetchMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"statuspage.request.duration",
		metric.WithDescription("Duration of status page requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"statuspage.request.total",
		metric.WithDescription("Total number of status page requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records one request to host. outcome is a short label
// such as "ok", "transport_error" or "format_error".
// A nil receiver is a no-op.
func (m *FetchMetrics) RecordRequest(ctx context.Context, host, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("statuspage.host", host),
		attribute.String("statuspage.outcome", outcome),
	)

	// Detach from request cancellation so the sample is always recorded.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}
