// Package models holds the data model shared across the background-job
// subsystem: Job, JobStatus, Task, Plan, AuditEvent and JobMetrics.
package models

import "time"

// DefaultMaxRetries is the max-retries value NewQueuedStatus applies when a
// Job leaves MaxRetries unset (nil). A Job that explicitly sets MaxRetries
// to 0 means "never retry" and is never promoted to this default.
const DefaultMaxRetries = 3

// Retries returns a pointer to n, for populating Job.MaxRetries with an
// explicit value (including an explicit 0, meaning "never retry").
func Retries(n int) *int {
	return &n
}

// Job is a unit of background work dispatched through the JobQueue to a
// registered JobHandler.
type Job struct {
	JobID          string            `json:"job_id"`
	Type           string            `json:"type"`
	Payload        []byte            `json:"payload"`
	Priority       int               `json:"priority"` // 0 = highest
	MaxRetries     *int              `json:"max_retries,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	ParentJobID    string            `json:"parent_job_id,omitempty"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Source         string            `json:"source"`
	CreatedAt      time.Time         `json:"created_at"`
	RetryCount     int               `json:"retry_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Validate enforces the Job invariants from the data model: type is
// non-empty and, when set, max-retries is non-negative.
func (j *Job) Validate() error {
	if j.Type == "" {
		return ErrEmptyJobType
	}
	if j.MaxRetries != nil && *j.MaxRetries < 0 {
		return ErrNegativeMaxRetries
	}
	return nil
}

// JobResult is the tagged-variant outcome a JobHandler returns from Execute.
// Exactly one of Success or Failure applies; Success() constructs the
// success variant and Failure() the ordered failure variant.
type JobResult struct {
	Succeeded    bool
	Message      string
	ShouldRetry  bool
}

// Success returns the success variant of JobResult.
func Success() JobResult {
	return JobResult{Succeeded: true}
}

// Failure returns the failure variant of JobResult with a message and a
// retry hint. A handler sets shouldRetry=true for transient failures it
// believes a retry could resolve.
func Failure(message string, shouldRetry bool) JobResult {
	return JobResult{Succeeded: false, Message: message, ShouldRetry: shouldRetry}
}

// jobError is a sentinel error type for Job validation failures.
type jobError string

func (e jobError) Error() string { return string(e) }

const (
	// ErrEmptyJobType is returned by Job.Validate when Type is empty.
	ErrEmptyJobType = jobError("job type must not be empty")
	// ErrNegativeMaxRetries is returned by Job.Validate when MaxRetries < 0.
	ErrNegativeMaxRetries = jobError("job max-retries must be >= 0")
)
