package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature of one computation unit.
type ExecuteFunc func(ctx context.Context, meta JobMeta, params any) ([]byte, error)

// Middleware wraps computations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe ExecuteFunc.
//   - Context: the wrapped function receives a context carrying the span.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: params and results are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Logger returns the middleware's base logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps fn with tracing, metrics and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta JobMeta, params any) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := m.now()
		result, err := fn(ctx, meta, params)
		duration := m.now().Sub(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordComputation(ctx, meta, duration, err)

		jobLogger := m.logger.WithJob(meta)
		fields := []Field{
			F("duration_ms", float64(duration.Milliseconds())),
		}
		if err != nil {
			fields = append(fields, F("error", err.Error()))
			jobLogger.Error(ctx, "computation failed", fields...)
		} else {
			fields = append(fields, F("result_bytes", len(result)))
			jobLogger.Info(ctx, "computation completed", fields...)
		}

		return result, err
	}
}

// Submitted records an accepted submission.
func (m *Middleware) Submitted(ctx context.Context, meta JobMeta, servedFromCache bool) {
	m.metrics.RecordSubmission(ctx, meta, servedFromCache)
	m.logger.WithJob(meta).Debug(ctx, "submission accepted",
		F("served_from_cache", servedFromCache))
}

// Swept records a cache sweep.
func (m *Middleware) Swept(ctx context.Context, removed int) {
	m.metrics.RecordSweep(ctx, removed)
	if removed > 0 {
		m.logger.Debug(ctx, "expired cache entries removed", F("removed", removed))
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
