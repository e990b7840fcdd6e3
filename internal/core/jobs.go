// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"context"
	"time"
)

// JobKind is the benchmark tier a job runs in.
type JobKind string

const (
	// JobKindQuick is free and scored synchronously inside the submit call.
	JobKindQuick JobKind = "quick"
	// JobKindAdvanced costs one credit and is scored by the background executor.
	JobKindAdvanced JobKind = "advanced"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	return k == JobKindQuick || k == JobKindAdvanced
}

// Cost returns the number of credits charged when a job of this kind is admitted.
func (k JobKind) Cost() int {
	if k == JobKindAdvanced {
		return 1
	}
	return 0
}

// JobStatus tracks where the job is in its lifecycle.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// allowedFrom lists, for each target status, the statuses a job may move from.
var allowedFrom = map[JobStatus][]JobStatus{
	JobStatusProcessing: {JobStatusPending},
	JobStatusCompleted:  {JobStatusPending, JobStatusProcessing},
	JobStatusFailed:     {JobStatusPending, JobStatusProcessing},
}

// CanTransition reports whether a job in status from may move to status to.
func CanTransition(from, to JobStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// SourceStatuses returns the statuses from which a transition to the given
// status is permitted. It returns nil for statuses that can never be entered.
func SourceStatuses(to JobStatus) []JobStatus {
	return append([]JobStatus(nil), allowedFrom[to]...)
}

// JobParams holds the dataset selector and any extra user supplied settings.
type JobParams struct {
	Dataset string         `json:"dataset"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Job is a single benchmark submission and its outcome.
type Job struct {
	ID          int64      `json:"id"`
	UserEmail   string     `json:"user_email"`
	Kind        JobKind    `json:"kind"`
	Params      JobParams  `json:"params"`
	Status      JobStatus  `json:"status"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LastActivity is when the job was last claimed, or its creation time if no
// worker has started it.
func (j *Job) LastActivity() time.Time {
	if j.StartedAt != nil {
		return *j.StartedAt
	}
	return j.CreatedAt
}

// JobFilter narrows a job history listing.
type JobFilter struct {
	Status JobStatus
	Limit  int
}

const (
	DefaultJobListLimit = 10
	MaxJobListLimit     = 100
)

// Normalize clamps the limit into the supported range.
func (f JobFilter) Normalize() JobFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultJobListLimit
	}
	if f.Limit > MaxJobListLimit {
		f.Limit = MaxJobListLimit
	}
	return f
}

//go:generate mockgen -destination=../../mocks/mock_core.go -package=mocks . Executor,Scorer,PaymentGateway

// Executor defines the contract for a system that can accept and queue
// advanced jobs for asynchronous processing. This interface decouples the
// submission path from the job execution mechanism.
type Executor interface {
	// Enqueue hands a job identifier to the background workers. It never waits
	// for execution. It returns ErrQueueFull if the job cannot be queued,
	// providing a mechanism for backpressure.
	Enqueue(ctx context.Context, jobID int64) error

	// Execute performs a single delivery of the job synchronously. Duplicate
	// deliveries are tolerated and leave the stored job untouched.
	Execute(ctx context.Context, jobID int64) error
}

// Scorer produces a benchmark result for a dataset. Implementations may take
// some time and may return slightly different values on each call, but the
// shape of the result is fixed.
type Scorer interface {
	Score(ctx context.Context, dataset string, kind JobKind) (*Result, error)
	Datasets() []string
	HasDataset(dataset string) bool
}
