package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported job categories.
type JobKind string

const (
	JobKindAudit    JobKind = "audit"
	JobKindGenerate JobKind = "generate"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// JobError is attached to jobs that failed in the background.
type JobError struct {
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
}

// Job encapsulates the lifecycle of an audit or generation run. Result holds the
// JSON encoding of the orchestrator output and is frozen once the job is done.
type Job struct {
	Kind      JobKind         `json:"-"`
	ID        string          `json:"-"`
	Status    JobStatus       `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *JobError       `json:"error,omitempty"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}
