package resilience

import (
	"context"
	"time"
)

// Guard composes a Bulkhead and a timeout. The bulkhead slot is taken first
// so time spent waiting for a slot does not count against the timeout.
// A slot is held until the operation returns, even after the timeout has
// already been reported, so an operation that ignores cancellation still
// counts against MaxConcurrent.
// A zero Guard runs operations unchanged.
type Guard struct {
	bulkhead *Bulkhead
	timeout  time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithBulkhead caps concurrency with b.
func WithBulkhead(b *Bulkhead) GuardOption {
	return func(g *Guard) {
		g.bulkhead = b
	}
}

// WithTimeout bounds each operation by d. Non-positive d disables the bound.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.timeout = d
	}
}

// NewGuard creates a Guard from options.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bulkhead returns the guard's bulkhead, or nil.
func (g *Guard) Bulkhead() *Bulkhead {
	if g == nil {
		return nil
	}
	return g.bulkhead
}

// Do runs a value-returning op under g. A nil g runs op directly.
// After a timeout Do returns ErrTimeout at once; use DoTracked to learn
// when op has actually finished.
func Do[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, error) {
	v, _, err := DoTracked(ctx, g, op)
	return v, err
}

// DoTracked is Do that also returns a channel closed once op has returned
// and its bulkhead slot has been released. The channel is closed
// immediately when op never started.
func DoTracked[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, <-chan struct{}, error) {
	released := make(chan struct{})

	if g == nil {
		defer close(released)
		v, err := op(ctx)
		return v, released, err
	}

	if g.bulkhead != nil {
		if err := g.bulkhead.Acquire(ctx); err != nil {
			close(released)
			var zero T
			return zero, released, err
		}
	}
	release := func() {
		if g.bulkhead != nil {
			g.bulkhead.Release()
		}
		close(released)
	}

	if g.timeout <= 0 {
		defer release()
		v, err := op(ctx)
		return v, released, err
	}

	v, finished, err := runWithTimeout(ctx, g.timeout, op)
	go func() {
		<-finished
		release()
	}()
	return v, released, err
}
