package cache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	// Hits and Misses accumulate until ResetStats; Clear does not touch them.
	Hits   uint64
	Misses uint64

	// Entries includes expired entries not yet swept.
	Entries int

	// EstimatedBytes approximates the memory held by keys and values.
	EstimatedBytes int64
}

// HitRatio returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
