package runner

import (
	"encoding/json"
	"time"

	"github.com/PolicyEngine/obr-forecast/job"
)

// States reported by Poll.
const (
	StateComputing = "computing"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Status is the poller's view of a job.
type Status struct {
	ID              string          `json:"job_id"`
	State           string          `json:"status"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ServedFromCache bool            `json:"served_from_cache,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s.State != StateComputing
}

func statusOf(j job.Job) Status {
	st := Status{
		ID:        j.ID.String(),
		CreatedAt: j.CreatedAt,
	}

	switch j.Status {
	case job.StatusCompleted:
		st.State = StateCompleted
		st.Result = json.RawMessage(j.Result)
		st.ServedFromCache = j.ServedFromCache
	case job.StatusFailed:
		st.State = StateFailed
		st.Error = j.Error
	default:
		st.State = StateComputing
	}

	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		st.FinishedAt = &finished
	}
	return st
}

// StatsReport is the cache administration view.
type StatsReport struct {
	Hits           uint64    `json:"hits"`
	Misses         uint64    `json:"misses"`
	HitRatio       float64   `json:"hit_ratio"`
	Entries        int       `json:"entries"`
	EstimatedBytes int64     `json:"estimated_memory_bytes"`
	Swept          int       `json:"swept"`
	Jobs           JobCounts `json:"jobs"`

	// Slots is present when units run behind a bulkhead.
	Slots *SlotCounts `json:"compute_slots,omitempty"`
}

// SlotCounts reports bulkhead occupancy. A unit that timed out keeps its
// slot until its computation returns.
type SlotCounts struct {
	Active   int   `json:"active"`
	Waiting  int   `json:"waiting"`
	Capacity int   `json:"capacity"`
	Rejected int64 `json:"rejected"`
}

// JobCounts breaks down tracked jobs by state.
type JobCounts struct {
	Computing int `json:"computing"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
