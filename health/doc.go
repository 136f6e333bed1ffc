// Package health reports whether the forecast service can take work.
//
// A Checker reports one component's Status: Healthy, Degraded or Unhealthy.
// An Aggregator runs many checkers under a shared deadline and folds their
// results into one status, which the HTTP handlers expose as liveness,
// readiness and detailed probes.
//
// Two checkers watch the job pipeline:
//
//   - StuckJobsChecker turns jobs that have been computing for too long into
//     a degraded (or unhealthy) status.
//   - CacheChecker compares the result cache's estimated size to a budget.
//
// Usage:
//
//	agg := health.NewAggregator()
//	agg.Register("jobs", health.NewStuckJobsChecker(r, health.StuckJobsConfig{Threshold: 15 * time.Minute}))
//	agg.Register("cache", health.NewCacheChecker(r, health.CacheCheckerConfig{Budget: 256 << 20}))
//	health.RegisterHandlers(mux, agg)
package health
