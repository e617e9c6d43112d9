package observe

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the tracer, metrics and logger the HTTP client
// reports into. It is the only observe type the client touches.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: all methods are best-effort; telemetry failures never
//     affect the outcome of a request.
type Telemetry struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewTelemetry builds a Telemetry on top of an Observer.
func NewTelemetry(obs Observer) (*Telemetry, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	m, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		tracer:  newTracer(obs.Tracer()),
		metrics: m,
		logger:  obs.Logger(),
	}, nil
}

// NewNoopTelemetry returns a Telemetry that discards everything.
func NewNoopTelemetry() *Telemetry {
	obs := NewNoopObserver()
	return &Telemetry{
		tracer:  newTracer(obs.Tracer()),
		metrics: noopMetrics{},
		logger:  obs.Logger(),
	}
}

// StartCall opens the span covering one logical call and its retries.
func (t *Telemetry) StartCall(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.tracer.StartSpan(ctx, meta)
}

// EndCall closes the call span, recording the terminal error if any.
func (t *Telemetry) EndCall(span trace.Span, err error) {
	t.tracer.EndSpan(span, err)
}

// RecordAttempt reports one completed transport attempt.
func (t *Telemetry) RecordAttempt(ctx context.Context, a Attempt) {
	t.metrics.RecordAttempt(ctx, a)

	fields := []Field{
		{Key: "method", Value: a.Method},
		{Key: "url", Value: a.URL},
		{Key: "attempt", Value: a.Attempt},
		{Key: "duration_ms", Value: float64(a.Duration.Milliseconds())},
	}
	if a.Status > 0 {
		fields = append(fields, Field{Key: "status", Value: a.Status})
	}

	if a.Err != nil {
		fields = append(fields, Field{Key: "error", Value: a.Err.Error()})
		t.logger.Warn(ctx, "request attempt failed", fields...)
		return
	}
	t.logger.Debug(ctx, "request attempt completed", fields...)
}

// RecordBreakerTransition reports a circuit breaker state change.
func (t *Telemetry) RecordBreakerTransition(ctx context.Context, from, to string) {
	t.metrics.RecordBreakerTransition(ctx, from, to)
	t.logger.Info(ctx, "circuit breaker state changed",
		Field{Key: "from", Value: from},
		Field{Key: "to", Value: to},
	)
}

// Logger exposes the underlying logger for client-level events.
func (t *Telemetry) Logger() Logger {
	return t.logger
}
