// Package resilience bounds how background computations consume the process.
//
// Three patterns are provided:
//
//   - Bulkhead: caps how many computations run at once.
//   - RateLimiter: a token bucket that throttles new submissions.
//   - Guard: a Bulkhead plus a per-operation deadline.
//
// Guard wraps a value-returning operation:
//
//	g := resilience.NewGuard(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4, MaxWait: time.Minute})),
//	    resilience.WithTimeout(10*time.Minute),
//	)
//
//	out, err := resilience.Do(ctx, g, func(ctx context.Context) ([]byte, error) {
//	    return compute(ctx)
//	})
//
// A deadline reports ErrTimeout promptly but cannot stop an operation that
// ignores its context; such an operation keeps its bulkhead slot until it
// returns. DoTracked exposes when that happens.
//
// Nothing here retries: a failed computation stays failed.
package resilience
