package resilience

import "errors"

// Rejections surfaced to callers of Guard, Bulkhead and RateLimiter. The
// runner records their text as the failure reason of a job; the HTTP layer
// maps ErrRateLimitExceeded to 429.
var (
	// ErrRateLimitExceeded means no submission token was available.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull means every compute slot stayed busy past MaxWait.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout means a computation ran past its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
