package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/servicestatus/servicestatus/internal/telemetry"
)

// Metrics records HTTP server instruments. Series are keyed by chi route,
// never by raw path, so each service name does not become its own series.
type Metrics struct {
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(telemetry.InstrumentationName))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("request duration: %w", err)
	}

	m.size, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("response size: %w", err)
	}

	m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("active requests: %w", err)
	}

	return &m, nil
}

// Middleware returns the recording middleware.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(semconv.HTTPRequestMethodKey.String(r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rw.statusCode),
			}
			if rw.statusCode >= http.StatusInternalServerError {
				attrs = append(attrs, semconv.ErrorTypeKey.String(strconv.Itoa(rw.statusCode)))
			}

			set := metric.WithAttributes(attrs...)
			m.duration.Record(ctx, time.Since(start).Seconds(), set)
			m.size.Record(ctx, rw.written, set)
		})
	}
}
