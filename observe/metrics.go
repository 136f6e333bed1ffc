package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricSubmitTotal     = "job.submit.total"
	MetricComputeTotal    = "job.compute.total"
	MetricComputeErrors   = "job.compute.errors"
	MetricComputeDuration = "job.compute.duration_ms"
	MetricCacheSwept      = "cache.swept"
)

// Metrics records submission and computation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordSubmission counts an accepted submission. servedFromCache is true
	// when the result was available without running the computation.
	RecordSubmission(ctx context.Context, meta JobMeta, servedFromCache bool)

	// RecordComputation records one finished computation.
	RecordComputation(ctx context.Context, meta JobMeta, duration time.Duration, err error)

	// RecordSweep counts cache entries removed by a sweep.
	RecordSweep(ctx context.Context, removed int)
}

type metricsImpl struct {
	submitCount  metric.Int64Counter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	sweptCount   metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	submitCount, err := meter.Int64Counter(
		MetricSubmitTotal,
		metric.WithDescription("Total number of accepted submissions"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	totalCount, err := meter.Int64Counter(
		MetricComputeTotal,
		metric.WithDescription("Total number of computations run"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricComputeErrors,
		metric.WithDescription("Total number of failed computations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricComputeDuration,
		metric.WithDescription("Computation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	sweptCount, err := meter.Int64Counter(
		MetricCacheSwept,
		metric.WithDescription("Expired cache entries removed by sweeps"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		submitCount:  submitCount,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		sweptCount:   sweptCount,
	}, nil
}

func (m *metricsImpl) RecordSubmission(ctx context.Context, meta JobMeta, servedFromCache bool) {
	m.submitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job.namespace", meta.Namespace),
		attribute.Bool("cache.served", servedFromCache),
	))
}

func (m *metricsImpl) RecordComputation(ctx context.Context, meta JobMeta, duration time.Duration, err error) {
	// Namespace only; job ids are unbounded.
	opt := metric.WithAttributes(attribute.String("job.namespace", meta.Namespace))

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordSweep(ctx context.Context, removed int) {
	if removed <= 0 {
		return
	}
	m.sweptCount.Add(ctx, int64(removed))
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordSubmission(context.Context, JobMeta, bool)                  {}
func (noopMetrics) RecordComputation(context.Context, JobMeta, time.Duration, error) {}
func (noopMetrics) RecordSweep(context.Context, int)                                 {}
