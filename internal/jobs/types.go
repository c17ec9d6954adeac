package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

// JobTypeRecomputeVariance recomputes financial variance aggregates
// and scans them for threshold alerts.
const JobTypeRecomputeVariance JobType = "recompute_variance"

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// RecomputeVarianceJob asks for a variance recompute, optionally
// restricted to a set of project numbers (all projects when empty).
// The step is idempotent, so retrying a failed job is always safe.
type RecomputeVarianceJob struct {
	JobID string `json:"job_id"`

	// ProjectNumbers restricts the recompute scope; empty means all.
	ProjectNumbers []string `json:"project_numbers,omitempty"`

	// RequestedBy is the user that triggered the recompute, or
	// "scheduler" for batch runs.
	RequestedBy string `json:"requested_by"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// GroupCount and AlertCount are filled in by the handler on
	// success.
	GroupCount int `json:"group_count"`
	AlertCount int `json:"alert_count"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishRecompute publishes a variance recompute job.
	PublishRecompute(ctx context.Context, job *RecomputeVarianceJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// JobHandler is a function that processes a job. It should return an
// error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *RecomputeVarianceJob) error

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; the handler is called for each
	// job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobStore tracks job state so callers can poll for completion.
type JobStore interface {
	SaveJob(ctx context.Context, job *RecomputeVarianceJob) error
	GetJob(ctx context.Context, jobID string) (*RecomputeVarianceJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecomputeVarianceJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
