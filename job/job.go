package job

import "time"

// ID is an opaque, globally unique job identifier.
type ID string

// String returns the id as a string.
func (id ID) String() string {
	return string(id)
}

// Status represents the lifecycle state of a job.
type Status int

const (
	// StatusPending indicates the job is still computing.
	StatusPending Status = iota
	// StatusCompleted indicates the job produced a result.
	StatusCompleted
	// StatusFailed indicates the job ended with an error.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of a tracked unit of work.
type Job struct {
	ID        ID
	Namespace string
	Key       string
	Status    Status

	// Result is set only when Status is StatusCompleted. It may be shared
	// with the result cache and must not be modified.
	Result []byte

	// Error is set only when Status is StatusFailed.
	Error string

	// ServedFromCache is true when the result came from a cache hit and no
	// computation ran.
	ServedFromCache bool

	CreatedAt  time.Time
	FinishedAt time.Time
}

// Age returns how long the job has existed at now.
func (j Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}
