package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nlq-backend"

// Tracer wraps OpenTelemetry tracing for the NLQ pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("nlq.%s", name),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

// SpanFromContext returns the current span from the context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// Common attribute keys for NLQ tracing.
var (
	AttrQueryID    = attribute.Key("nlq.query.id")
	AttrLanguage   = attribute.Key("nlq.language")
	AttrStatus     = attribute.Key("nlq.status")
	AttrRowCount   = attribute.Key("nlq.row_count")
	AttrDurationMS = attribute.Key("nlq.duration_ms")
)
