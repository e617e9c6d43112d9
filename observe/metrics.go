package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attempt describes one completed transport attempt for telemetry.
type Attempt struct {
	Method   string
	URL      string
	Attempt  int // 0-based attempt index within the logical call
	Status   int // 0 when no response was received
	Err      error
	Duration time.Duration
}

// Metrics records HTTP client request metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic; recording is best-effort.
type Metrics interface {
	// RecordAttempt records one completed transport attempt.
	RecordAttempt(ctx context.Context, a Attempt)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	attempts     metric.Int64Counter
	errorCount   metric.Int64Counter
	retryCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	transitions  metric.Int64Counter
}

// newMetrics creates a Metrics instance on the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attempts, err := meter.Int64Counter(
		"http.client.attempts",
		metric.WithDescription("Total number of transport attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"http.client.errors",
		metric.WithDescription("Total number of failed transport attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"http.client.retries",
		metric.WithDescription("Total number of retry attempts (attempt index > 0)"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"http.client.request.duration_ms",
		metric.WithDescription("Transport attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"http.client.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		attempts:     attempts,
		errorCount:   errorCount,
		retryCount:   retryCount,
		durationHist: durationHist,
		transitions:  transitions,
	}, nil
}

// RecordAttempt records counters and duration for one attempt.
func (m *metricsImpl) RecordAttempt(ctx context.Context, a Attempt) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", a.Method),
		attribute.String("url.full", a.URL),
	}
	if a.Status > 0 {
		attrs = append(attrs, attribute.String("http.response.status_code", strconv.Itoa(a.Status)))
	}

	opt := metric.WithAttributes(attrs...)

	m.attempts.Add(ctx, 1, opt)
	if a.Err != nil || a.Status >= 400 {
		m.errorCount.Add(ctx, 1, opt)
	}
	if a.Attempt > 0 {
		m.retryCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(a.Duration.Milliseconds()), opt)
}

// RecordBreakerTransition records a breaker state change.
func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordAttempt(context.Context, Attempt)                  {}
func (noopMetrics) RecordBreakerTransition(context.Context, string, string) {}
