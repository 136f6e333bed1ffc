package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures a Registry.
type Config struct {
	// Retention is how long a terminal job stays queryable after it finished.
	// Zero keeps terminal jobs for the life of the process, which grows
	// memory without bound under sustained traffic.
	Retention time.Duration

	// Now is the time source. Default: time.Now
	Now func() time.Time

	// NewID generates identifiers. Default: random (v4) UUIDs.
	NewID func() ID
}

// Registry tracks jobs by id.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Transitions: each job moves from pending to a terminal state exactly once.
// - Ownership: Get returns copies; the stored record is never exposed.
type Registry struct {
	config Config

	mu   sync.RWMutex
	jobs map[ID]*Job
}

// NewRegistry creates a new job registry.
func NewRegistry(config ...Config) *Registry {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() ID { return ID(uuid.NewString()) }
	}
	if cfg.Retention < 0 {
		cfg.Retention = 0
	}

	return &Registry{
		config: cfg,
		jobs:   make(map[ID]*Job),
	}
}

// Create allocates a fresh id and records a pending job for it.
func (r *Registry) Create(namespace, key string) ID {
	now := r.config.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.config.NewID()
	for {
		if _, taken := r.jobs[id]; !taken {
			break
		}
		id = r.config.NewID()
	}

	r.jobs[id] = &Job{
		ID:        id,
		Namespace: namespace,
		Key:       key,
		Status:    StatusPending,
		CreatedAt: now,
	}
	return id
}

// MarkCompleted moves a pending job to StatusCompleted.
// It returns ErrNotFound for unknown ids and a *TransitionError if the job is
// already terminal; the stored job is then left unchanged.
func (r *Registry) MarkCompleted(id ID, result []byte, servedFromCache bool) error {
	return r.finish(id, StatusCompleted, func(j *Job) {
		j.Result = result
		j.ServedFromCache = servedFromCache
	})
}

// MarkFailed moves a pending job to StatusFailed with the given message.
func (r *Registry) MarkFailed(id ID, message string) error {
	return r.finish(id, StatusFailed, func(j *Job) {
		j.Error = message
	})
}

func (r *Registry) finish(id ID, to Status, apply func(*Job)) error {
	now := r.config.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusPending {
		return &TransitionError{ID: id, From: j.Status, To: to}
	}

	apply(j)
	j.Status = to
	j.FinishedAt = now
	return nil
}

// Get returns a copy of the job. Terminal jobs past retention are removed
// and reported as ErrNotFound.
func (r *Registry) Get(id ID) (Job, error) {
	now := r.config.Now()

	r.mu.RLock()
	j, ok := r.jobs[id]
	var snapshot Job
	if ok {
		snapshot = *j
	}
	r.mu.RUnlock()

	if !ok {
		return Job{}, ErrNotFound
	}

	if r.retired(snapshot, now) {
		r.mu.Lock()
		if cur, still := r.jobs[id]; still && r.retired(*cur, now) {
			delete(r.jobs, id)
		}
		r.mu.Unlock()
		return Job{}, ErrNotFound
	}

	return snapshot, nil
}

// Sweep removes every terminal job past retention and returns the count.
func (r *Registry) Sweep() int {
	if r.config.Retention == 0 {
		return 0
	}
	now := r.config.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, j := range r.jobs {
		if r.retired(*j, now) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Stuck returns pending jobs created more than olderThan ago, oldest first.
func (r *Registry) Stuck(olderThan time.Duration) []Job {
	now := r.config.Now()

	r.mu.RLock()
	var stuck []Job
	for _, j := range r.jobs {
		if j.Status == StatusPending && j.Age(now) > olderThan {
			stuck = append(stuck, *j)
		}
	}
	r.mu.RUnlock()

	sort.Slice(stuck, func(a, b int) bool {
		return stuck[a].CreatedAt.Before(stuck[b].CreatedAt)
	})
	return stuck
}

// Counts holds the number of tracked jobs per status.
type Counts struct {
	Pending   int
	Completed int
	Failed    int
}

// Total returns the number of tracked jobs.
func (c Counts) Total() int {
	return c.Pending + c.Completed + c.Failed
}

// Counts returns the number of tracked jobs per status.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c Counts
	for _, j := range r.jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Len returns the number of tracked jobs, including retired ones not yet swept.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *Registry) retired(j Job, now time.Time) bool {
	if r.config.Retention == 0 || !j.Status.Terminal() {
		return false
	}
	return now.Sub(j.FinishedAt) > r.config.Retention
}
