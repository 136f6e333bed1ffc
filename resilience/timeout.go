package resilience

import (
	"context"
	"errors"
	"time"
)

type outcome[T any] struct {
	val T
	err error
}

// runWithTimeout runs op with a deadline of d. When the deadline passes first
// it returns ErrTimeout without waiting; op sees its context cancelled and
// keeps running until it notices. finished is closed once op has returned.
func runWithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (val T, finished <-chan struct{}, err error) {
	ctx, cancel := context.WithTimeout(ctx, d)

	done := make(chan outcome[T], 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer cancel()
		v, err := op(ctx)
		done <- outcome[T]{v, err}
	}()

	select {
	case o := <-done:
		return o.val, exited, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, exited, ErrTimeout
		}
		return zero, exited, ctx.Err()
	}
}
