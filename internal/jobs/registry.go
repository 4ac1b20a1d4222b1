package jobs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
)

type jobKey struct {
	kind domain.JobKind
	id   string
}

// Registry is the in-memory store of job lifecycles. It is owned by the
// service instance and lives as long as the process. Every method is a point
// update under a single lock; callers never hold it across external calls.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[jobKey]*domain.Job
	logger infra.Logger
	now    func() time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger infra.Logger) *Registry {
	return &Registry{
		jobs:   make(map[jobKey]*domain.Job),
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a queued job.
func (r *Registry) Create(kind domain.JobKind, id string) error {
	key := jobKey{kind: kind, id: id}
	r.mu.Lock()
	if _, exists := r.jobs[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s:%s", domain.ErrDuplicateJob, kind, id)
	}
	now := r.now()
	r.jobs[key] = &domain.Job{
		Kind:      kind,
		ID:        id,
		Status:    domain.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Unlock()
	r.logger.Info().Str("kind", string(kind)).Str("job_id", id).Msg("job.create")
	return nil
}

// Start marks a queued job as running.
func (r *Registry) Start(kind domain.JobKind, id string) error {
	return r.transition(kind, id, func(job *domain.Job) {
		job.Status = domain.JobStatusRunning
	})
}

// Complete moves the job to done with the JSON encoding of result attached.
func (r *Registry) Complete(kind domain.JobKind, id string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return r.Fail(kind, id, &domain.JobError{Error: fmt.Sprintf("encode result: %v", err)})
	}
	if err := r.transition(kind, id, func(job *domain.Job) {
		job.Status = domain.JobStatusDone
		job.Result = payload
		job.Error = nil
	}); err != nil {
		return err
	}
	r.logger.Info().Str("kind", string(kind)).Str("job_id", id).Msg("job.done")
	return nil
}

// Fail moves the job to error with jobErr attached.
func (r *Registry) Fail(kind domain.JobKind, id string, jobErr *domain.JobError) error {
	if jobErr == nil {
		jobErr = &domain.JobError{Error: "unknown error"}
	}
	errCopy := *jobErr
	if err := r.transition(kind, id, func(job *domain.Job) {
		job.Status = domain.JobStatusError
		job.Error = &errCopy
		job.Result = nil
	}); err != nil {
		return err
	}
	r.logger.Info().Str("kind", string(kind)).Str("job_id", id).Str("error", errCopy.Error).Msg("job.error")
	return nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(kind domain.JobKind, id string) (domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobKey{kind: kind, id: id}]
	if !ok {
		return domain.Job{}, false
	}
	return snapshot(job), true
}

// Len reports how many jobs of kind are tracked.
func (r *Registry) Len(kind domain.JobKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for key := range r.jobs {
		if key.kind == kind {
			n++
		}
	}
	return n
}

func (r *Registry) transition(kind domain.JobKind, id string, apply func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobKey{kind: kind, id: id}]
	if !ok {
		return fmt.Errorf("%w: %s:%s", domain.ErrNotFound, kind, id)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s:%s is %s", domain.ErrJobFinalized, kind, id, job.Status)
	}
	apply(job)
	job.UpdatedAt = r.now()
	return nil
}

func snapshot(job *domain.Job) domain.Job {
	out := *job
	if job.Result != nil {
		out.Result = append([]byte(nil), job.Result...)
	}
	if job.Error != nil {
		errCopy := *job.Error
		out.Error = &errCopy
	}
	return out
}
