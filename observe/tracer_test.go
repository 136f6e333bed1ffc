package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (*tracerImpl, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &tracerImpl{tracer: tp.Tracer("test")}, recorder
}

func attrMap(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		out[string(a.Key)] = a.Value
	}
	return out
}

func TestJobMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta JobMeta
		want string
	}{
		{JobMeta{Namespace: "forecast_impact"}, "job.compute.forecast_impact"},
		{JobMeta{}, "job.compute"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := JobMeta{ID: "j-1", Namespace: "forecast_impact", Key: "abc123"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "job.compute.forecast_impact" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindInternal {
		t.Errorf("span kind = %v, want internal", s.SpanKind())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	attrs := attrMap(s)
	for k, want := range map[string]string{
		"job.id":        "j-1",
		"job.namespace": "forecast_impact",
		"job.key":       "abc123",
	} {
		if v, ok := attrs[k]; !ok || v.AsString() != want {
			t.Errorf("%s = %v, want %q", k, v, want)
		}
	}
	if v, ok := attrs["job.error"]; !ok || v.AsBool() {
		t.Errorf("job.error = %v, want false", v)
	}
}

func TestTracer_MinimalMetaOmitsOptional(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), JobMeta{Namespace: "ns"})
	tr.EndSpan(span, nil)

	attrs := attrMap(recorder.Ended()[0])
	if _, ok := attrs["job.id"]; ok {
		t.Error("job.id should be absent")
	}
	if _, ok := attrs["job.key"]; ok {
		t.Error("job.key should be absent")
	}
}

func TestTracer_ContextCarriesSpan(t *testing.T) {
	tr, _ := newRecordingTracer()

	ctx, span := tr.StartSpan(context.Background(), JobMeta{Namespace: "ns"})
	defer tr.EndSpan(span, nil)

	if got := trace.SpanFromContext(ctx); got.SpanContext().SpanID() != span.SpanContext().SpanID() {
		t.Error("returned context does not carry the started span")
	}
}

func TestTracer_ErrorRecording(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), JobMeta{Namespace: "ns"})
	tr.EndSpan(span, errors.New("computation exploded"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "computation exploded" {
		t.Errorf("description = %q", s.Status().Description)
	}
	if v := attrMap(s)["job.error"]; !v.AsBool() {
		t.Error("job.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestNoopTracer(t *testing.T) {
	tr := NewNoopTracer()
	ctx, span := tr.StartSpan(context.Background(), JobMeta{Namespace: "ns"})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer returned nil")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
