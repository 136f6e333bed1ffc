// Package runner turns expensive computations into pollable jobs.
//
// Submit derives a cache key from the parameters. On a cache hit it records a
// job that is already completed and served from cache. On a miss it records a
// pending job and runs the computation in its own goroutine; the result is
// written to the cache and then to the job. Failures, including panics, become
// failed jobs and never reach the submitter.
//
// Two concurrent first-time submissions with the same parameters both compute;
// the later cache write wins. There is no single-flight deduplication and no
// retry.
//
// Poll is read-only and reports "computing", "completed" or "failed".
package runner
