package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallMeta identifies one logical HTTP call for tracing.
type CallMeta struct {
	Method    string // HTTP method (required)
	URL       string // absolute request URL (required)
	Host      string // target host, used as the peer attribute
	RequestID string // generated request id, propagated for correlation
}

// SpanName returns the span name for this call, following the OTel
// HTTP semantic convention of naming client spans after the method.
func (m CallMeta) SpanName() string {
	if m.Method == "" {
		return "HTTP"
	}
	return "HTTP " + m.Method
}

// Tracer wraps OpenTelemetry tracing with client-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span covering one logical call, including
	// all of its retry attempts.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the terminal error if any.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a client span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", meta.Method),
		attribute.String("url.full", meta.URL),
	}
	if meta.Host != "" {
		attrs = append(attrs, attribute.String("server.address", meta.Host))
	}
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String("http.request.id", meta.RequestID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
