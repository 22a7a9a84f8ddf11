package models

import "time"

// JobState is the lifecycle state of a dispatched job.
type JobState string

const (
	JobStateQueued     JobState = "Queued"
	JobStateProcessing JobState = "Processing"
	JobStateCompleted  JobState = "Completed"
	JobStateFailed     JobState = "Failed"
	JobStateCancelled  JobState = "Cancelled"
	JobStateRetried    JobState = "Retried"
	JobStateDeadLetter JobState = "DeadLetter"
)

// IsTerminal reports whether state is one of the terminal states a dispatched
// job settles into: Completed, Failed, Cancelled or DeadLetter.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled, JobStateDeadLetter:
		return true
	default:
		return false
	}
}

// JobStatus is the queryable status record for a dispatched job, keyed by
// JobID. Exactly one JobStatus exists per job at any time; the JobStatusStore
// upserts in place as the job transitions states.
type JobStatus struct {
	JobID                 string            `json:"job_id"`
	Type                  string            `json:"type"`
	State                 JobState          `json:"state"`
	CreatedAt             time.Time         `json:"created_at"`
	StartedAt             *time.Time        `json:"started_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	ProcessingDurationMs  *int64            `json:"processing_duration_ms,omitempty"`
	QueueWaitMs           *int64            `json:"queue_wait_ms,omitempty"`
	RetryCount            int               `json:"retry_count"`
	MaxRetries            int               `json:"max_retries"`
	LastRetryAt           *time.Time        `json:"last_retry_at,omitempty"`
	ErrorMessage          string            `json:"error_message,omitempty"`
	ParentJobID           string            `json:"parent_job_id,omitempty"`
	CorrelationID         string            `json:"correlation_id,omitempty"`
	Source                string            `json:"source"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

// NewQueuedStatus returns the initial JobStatus written by the Dispatcher
// when a job is accepted: state=Queued, created-at=now, max-retries from
// job.MaxRetries when the job set one explicitly (including an explicit 0,
// meaning "never retry"), else DefaultMaxRetries.
func NewQueuedStatus(job *Job, now time.Time) *JobStatus {
	maxRetries := DefaultMaxRetries
	if job.MaxRetries != nil {
		maxRetries = *job.MaxRetries
	}
	return &JobStatus{
		JobID:         job.JobID,
		Type:          job.Type,
		State:         JobStateQueued,
		CreatedAt:     now,
		RetryCount:    0,
		MaxRetries:    maxRetries,
		ParentJobID:   job.ParentJobID,
		CorrelationID: job.CorrelationID,
		Source:        job.Source,
		Metadata:      job.Metadata,
	}
}

// JobMetricsByType is the per-type slice of JobMetrics aggregation.
type JobMetricsByType struct {
	TotalCount                 int64   `json:"total_count"`
	SuccessCount                int64   `json:"success_count"`
	FailureCount                int64   `json:"failure_count"`
	AverageProcessingDurationMs float64 `json:"average_processing_duration_ms"`
	FailureRate                 float64 `json:"failure_rate"`
}

// JobMetrics is the derived aggregation produced by JobStatusStore.Metrics().
type JobMetrics struct {
	QueueDepth                  int64                        `json:"queue_depth"`
	ProcessingCount              int64                        `json:"processing_count"`
	CompletedCount               int64                        `json:"completed_count"`
	FailedCount                  int64                        `json:"failed_count"`
	CancelledCount                int64                       `json:"cancelled_count"`
	DeadLetterCount               int64                       `json:"dead_letter_count"`
	TotalJobs                    int64                        `json:"total_jobs"`
	FailureRate                  float64                      `json:"failure_rate"`
	AverageProcessingDurationMs  float64                      `json:"average_processing_duration_ms"`
	AverageQueueWaitMs           float64                      `json:"average_queue_wait_ms"`
	MetricsByType                map[string]*JobMetricsByType `json:"metrics_by_type"`
}
