package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrStuckJobs indicates jobs have been computing past the critical limit.
	ErrStuckJobs = errors.New("health: jobs stuck computing")

	// ErrCacheOverBudget indicates the result cache exceeds its critical size.
	ErrCacheOverBudget = errors.New("health: result cache over budget")
)
