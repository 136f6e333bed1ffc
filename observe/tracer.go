package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// JobMeta identifies one computation for telemetry purposes.
type JobMeta struct {
	ID        string // job id, empty for synchronous cache hits
	Namespace string // computation namespace (required)
	Key       string // cache key the result is stored under
}

// SpanName returns the deterministic span name for this computation.
// Format: job.compute.<namespace>
func (m JobMeta) SpanName() string {
	if m.Namespace == "" {
		return "job.compute"
	}
	return "job.compute." + m.Namespace
}

func (m JobMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("job.namespace", m.Namespace),
	}
	if m.ID != "" {
		attrs = append(attrs, attribute.String("job.id", m.ID))
	}
	if m.Key != "" {
		attrs = append(attrs, attribute.String("job.key", m.Key))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with per-computation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan returns a derived context carrying the span.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a computation.
	StartSpan(ctx context.Context, meta JobMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta JobMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("job.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("job.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a Tracer whose spans record nothing.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta JobMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
