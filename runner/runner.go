package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PolicyEngine/obr-forecast/cache"
	"github.com/PolicyEngine/obr-forecast/job"
	"github.com/PolicyEngine/obr-forecast/observe"
	"github.com/PolicyEngine/obr-forecast/resilience"
)

// ComputeFunc performs one expensive computation and returns its result as
// encoded JSON. It may take arbitrarily long.
type ComputeFunc func(ctx context.Context, namespace string, params any) ([]byte, error)

// Runner owns the result cache and the job registry and schedules
// computation units.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Context: Submit never blocks on a computation; units outlive the
//   submitting request's context.
// - Errors: computation failures surface only through Poll.
type Runner struct {
	compute ComputeFunc
	cache   cache.Store
	jobs    *job.Registry
	keyer   cache.Keyer
	policy  cache.Policy
	guard   *resilience.Guard
	mw      *observe.Middleware

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithCache sets the result cache. Default: a new cache.MemoryCache.
func WithCache(s cache.Store) Option {
	return func(r *Runner) { r.cache = s }
}

// WithRegistry sets the job registry. Default: a registry without retention.
func WithRegistry(reg *job.Registry) Option {
	return func(r *Runner) { r.jobs = reg }
}

// WithKeyer sets the key deriver. Default: cache.DefaultKeyer.
func WithKeyer(k cache.Keyer) Option {
	return func(r *Runner) { r.keyer = k }
}

// WithPolicy sets the TTL policy. Default: cache.DefaultPolicy().
func WithPolicy(p cache.Policy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithGuard bounds each unit's concurrency and duration.
func WithGuard(g *resilience.Guard) Option {
	return func(r *Runner) { r.guard = g }
}

// WithMiddleware sets the observability middleware. Default: no-op.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(r *Runner) { r.mw = mw }
}

// New creates a Runner around compute.
func New(compute ComputeFunc, opts ...Option) (*Runner, error) {
	if compute == nil {
		return nil, ErrNilCompute
	}

	r := &Runner{
		compute: compute,
		policy:  cache.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.NewMemoryCache()
	}
	if r.jobs == nil {
		r.jobs = job.NewRegistry()
	}
	if r.keyer == nil {
		r.keyer = cache.NewDefaultKeyer()
	}
	if r.mw == nil {
		r.mw = observe.NopMiddleware()
	}

	return r, nil
}

// Submit records a job for params and returns its id without waiting for
// the computation. ttl <= 0 selects the policy default.
func (r *Runner) Submit(ctx context.Context, namespace string, params any, ttl time.Duration) (job.ID, error) {
	if namespace == "" {
		return "", ErrEmptyNamespace
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", ErrClosed
	}

	logger := r.mw.Logger()

	key, err := cache.DeriveKey(r.keyer, namespace, params)
	if err != nil {
		logger.Warn(ctx, "cache key derivation failed, using degraded key",
			observe.F("namespace", namespace), observe.F("error", err))
	}

	if cached, ok := r.cache.Get(ctx, key); ok {
		id := r.jobs.Create(namespace, key)
		if err := r.jobs.MarkCompleted(id, cached, true); err != nil {
			// A fresh id cannot already be terminal.
			return "", fmt.Errorf("runner: complete cached job: %w", err)
		}
		r.mw.Submitted(ctx, observe.JobMeta{ID: id.String(), Namespace: namespace, Key: key}, true)
		return id, nil
	}

	id := r.jobs.Create(namespace, key)
	meta := observe.JobMeta{ID: id.String(), Namespace: namespace, Key: key}
	r.mw.Submitted(ctx, meta, false)

	r.inflight.Add(1)
	go r.run(context.WithoutCancel(ctx), meta, params, r.policy.EffectiveTTL(ttl))

	return id, nil
}

// run is the computation unit for one job. The unit stays in flight until
// the computation has returned, including after a timeout was reported.
func (r *Runner) run(ctx context.Context, meta observe.JobMeta, params any, ttl time.Duration) {
	var finished <-chan struct{}
	defer func() {
		if finished != nil {
			<-finished
		}
		r.inflight.Done()
	}()
	defer func() {
		if v := recover(); v != nil {
			r.recoverUnit(ctx, meta, v)
		}
	}()

	id := job.ID(meta.ID)
	logger := r.mw.Logger().WithJob(meta)

	unit := r.mw.Wrap(func(ctx context.Context, meta observe.JobMeta, params any) ([]byte, error) {
		out, done, err := resilience.DoTracked(ctx, r.guard, func(ctx context.Context) ([]byte, error) {
			return callSafely(ctx, r.compute, meta.Namespace, params)
		})
		finished = done
		return out, err
	})

	result, err := unit(ctx, meta, params)
	if err == nil && !json.Valid(result) {
		logger.Error(ctx, "computation returned invalid JSON", observe.F("result_bytes", len(result)))
		err = ErrInvalidResult
	}
	if err != nil {
		r.fail(ctx, logger, &ComputationError{JobID: meta.ID, Namespace: meta.Namespace, Err: err})
		return
	}

	r.cache.Put(ctx, meta.Key, result, ttl)
	if err := r.jobs.MarkCompleted(id, result, false); err != nil {
		logger.Error(ctx, "recording completed job", observe.F("error", err))
	}
}

// recoverUnit fails the job after a panic outside the computation itself,
// such as in a custom Store or in the observability middleware. A job that
// already reached a terminal state keeps it.
func (r *Runner) recoverUnit(ctx context.Context, meta observe.JobMeta, v any) {
	cause := &PanicError{Value: v}
	markErr := r.jobs.MarkFailed(job.ID(meta.ID), cause.Error())

	defer func() { _ = recover() }()
	fields := []observe.Field{observe.F("panic", cause.Error())}
	if markErr != nil {
		fields = append(fields, observe.F("error", markErr))
	}
	r.mw.Logger().WithJob(meta).Error(ctx, "computation unit panicked", fields...)
}

// fail marks the job failed. The cache is not touched.
func (r *Runner) fail(ctx context.Context, logger observe.Logger, cerr *ComputationError) {
	if err := r.jobs.MarkFailed(job.ID(cerr.JobID), cerr.Err.Error()); err != nil {
		logger.Error(ctx, "recording failed job", observe.F("error", err), observe.F("cause", cerr))
	}
}

func callSafely(ctx context.Context, compute ComputeFunc, namespace string, params any) (out []byte, err error) {
	defer func() {
		if v := recover(); v != nil {
			out, err = nil, &PanicError{Value: v}
		}
	}()
	return compute(ctx, namespace, params)
}

// Poll returns the current status of a job. It never modifies state beyond
// the registry's own lazy expiry.
func (r *Runner) Poll(id string) (Status, error) {
	j, err := r.jobs.Get(job.ID(id))
	if errors.Is(err, job.ErrNotFound) {
		return Status{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Status{}, err
	}
	return statusOf(j), nil
}

// ClearCache removes every cached result. Hit/miss counters are kept.
func (r *Runner) ClearCache() {
	r.cache.Clear()
}

// CacheStats removes expired entries and reports cache counters.
func (r *Runner) CacheStats(ctx context.Context) StatsReport {
	swept := r.cache.Sweep()
	r.mw.Swept(ctx, swept)

	s := r.cache.Stats()
	c := r.jobs.Counts()
	report := StatsReport{
		Hits:           s.Hits,
		Misses:         s.Misses,
		HitRatio:       s.HitRatio(),
		Entries:        s.Entries,
		EstimatedBytes: s.EstimatedBytes,
		Swept:          swept,
		Jobs: JobCounts{
			Computing: c.Pending,
			Completed: c.Completed,
			Failed:    c.Failed,
		},
	}
	if b := r.guard.Bulkhead(); b != nil {
		m := b.Metrics()
		report.Slots = &SlotCounts{
			Active:   m.Active,
			Waiting:  m.Waiting,
			Capacity: m.MaxConcurrent,
			Rejected: m.Rejected,
		}
	}
	return report
}

// SweepJobs drops terminal jobs past the registry's retention.
func (r *Runner) SweepJobs() int {
	return r.jobs.Sweep()
}

// Stuck returns jobs still computing after olderThan.
func (r *Runner) Stuck(olderThan time.Duration) []job.Job {
	return r.jobs.Stuck(olderThan)
}

// CacheSnapshot returns the cache counters without sweeping.
func (r *Runner) CacheSnapshot() cache.Stats {
	return r.cache.Stats()
}

// Wait blocks until every started unit has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions and waits for in-flight units.
// Close is safe to call multiple times.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.Wait(ctx)
}
