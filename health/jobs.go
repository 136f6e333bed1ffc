package health

import (
	"context"
	"fmt"
	"time"

	"github.com/PolicyEngine/obr-forecast/cache"
	"github.com/PolicyEngine/obr-forecast/job"
)

// StuckSource lists jobs still pending after a threshold.
type StuckSource interface {
	Stuck(olderThan time.Duration) []job.Job
}

// StuckJobsConfig configures a StuckJobsChecker.
type StuckJobsConfig struct {
	// Threshold is how long a job may compute before it counts as stuck.
	// Default: 15 minutes
	Threshold time.Duration

	// Critical is the number of stuck jobs that makes the check unhealthy.
	// Zero means stuck jobs only ever degrade.
	Critical int

	// Now is the time source. Default: time.Now
	Now func() time.Time
}

// StuckJobsChecker reports jobs that have been computing too long.
type StuckJobsChecker struct {
	src    StuckSource
	config StuckJobsConfig
}

// NewStuckJobsChecker creates a checker over src.
func NewStuckJobsChecker(src StuckSource, config StuckJobsConfig) *StuckJobsChecker {
	if config.Threshold <= 0 {
		config.Threshold = 15 * time.Minute
	}
	if config.Critical < 0 {
		config.Critical = 0
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &StuckJobsChecker{src: src, config: config}
}

func (c *StuckJobsChecker) Name() string {
	return "jobs"
}

func (c *StuckJobsChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	stuck := c.src.Stuck(c.config.Threshold)
	if len(stuck) == 0 {
		return Healthy("no stuck jobs").WithDetails(map[string]any{
			"threshold": c.config.Threshold.String(),
		})
	}

	// Stuck is sorted oldest first.
	oldest := stuck[0]
	details := map[string]any{
		"stuck":      len(stuck),
		"threshold":  c.config.Threshold.String(),
		"oldest_id":  oldest.ID.String(),
		"oldest_age": oldest.Age(c.config.Now()).Round(time.Second).String(),
	}
	msg := fmt.Sprintf("%d job(s) computing longer than %s", len(stuck), c.config.Threshold)

	if c.config.Critical > 0 && len(stuck) >= c.config.Critical {
		return Unhealthy(msg, ErrStuckJobs).WithDetails(details)
	}
	return Degraded(msg).WithDetails(details)
}

// CacheStatsSource reports result cache counters.
type CacheStatsSource interface {
	CacheSnapshot() cache.Stats
}

// CacheCheckerConfig configures a CacheChecker.
type CacheCheckerConfig struct {
	// Budget is the estimated cache size in bytes considered full.
	// Zero disables the size check and the checker only reports counters.
	Budget int64

	// WarningThreshold is the fraction of Budget that degrades.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of Budget that is unhealthy.
	// Default: 1.0
	CriticalThreshold float64
}

// CacheChecker compares the result cache's estimated size to a budget.
type CacheChecker struct {
	src    CacheStatsSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over src.
func NewCacheChecker(src CacheStatsSource, config CacheCheckerConfig) *CacheChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold > 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 {
		config.CriticalThreshold = 1.0
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &CacheChecker{src: src, config: config}
}

func (c *CacheChecker) Name() string {
	return "cache"
}

func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	s := c.src.CacheSnapshot()
	details := map[string]any{
		"entries":         s.Entries,
		"estimated_bytes": s.EstimatedBytes,
		"hits":            s.Hits,
		"misses":          s.Misses,
		"hit_ratio":       s.HitRatio(),
	}

	if c.config.Budget <= 0 {
		return Healthy("no cache budget configured").WithDetails(details)
	}

	usage := float64(s.EstimatedBytes) / float64(c.config.Budget)
	details["budget_bytes"] = c.config.Budget
	details["usage"] = usage

	switch {
	case usage >= c.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("cache at %.0f%% of budget", usage*100), ErrCacheOverBudget).WithDetails(details)
	case usage >= c.config.WarningThreshold:
		return Degraded(fmt.Sprintf("cache at %.0f%% of budget", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("cache at %.0f%% of budget", usage*100)).WithDetails(details)
	}
}

var (
	_ Checker = (*StuckJobsChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*CheckerFunc)(nil)
)
