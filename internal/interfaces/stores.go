// Package interfaces declares the narrow capability contracts the
// background-job subsystem depends on: its own persistence collaborators
// (JobQueue, DeduplicationRegistry, JobStatusStore, TaskStore, AuditLog) and
// the external collaborators it reaches through interface boundaries only.
package interfaces

import (
	"context"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// JobQueue is the bounded, optionally prioritized FIFO-within-priority
// channel of Job that Dispatcher writes to and Processor reads from.
type JobQueue interface {
	// Enqueue attempts to add job to the queue. It returns false, without
	// blocking, if the queue is at capacity; it never drops a job silently.
	Enqueue(job *models.Job) bool
	// Dequeue blocks until a job is available or ctx is cancelled, in which
	// case it returns nil, ctx.Err().
	Dequeue(ctx context.Context) (*models.Job, error)
	// Count returns the current approximate depth of the queue.
	Count() int
	// Close stops accepting new enqueues; in-flight Dequeue calls continue
	// to drain whatever remains buffered.
	Close()
}

// DeduplicationRegistry maps idempotency-key -> job-id for in-flight jobs.
type DeduplicationRegistry interface {
	// Register associates jobID with key. If key is already registered to a
	// different job, the existing entry is replaced (last-writer-wins); the
	// displaced job is not cancelled by Register itself. key must be
	// non-empty.
	Register(jobID, key string) error
	// LookupInFlight returns the job-id currently registered for key, or ""
	// if key is empty or unregistered.
	LookupInFlight(key string) string
	// Unregister removes whichever entry maps to jobID, if any.
	Unregister(jobID string)
}

// JobStatusFilter is the optional filter set accepted by
// JobStatusStore.List; zero-value fields are unfiltered.
type JobStatusFilter struct {
	State  models.JobState
	Type   string
	Source string
}

// JobStatusStore is the queryable CRUD+metrics store for JobStatus records.
type JobStatusStore interface {
	Set(ctx context.Context, status *models.JobStatus) error
	Get(ctx context.Context, jobID string) (*models.JobStatus, error)
	Delete(ctx context.Context, jobID string) error
	ListByStatus(ctx context.Context, state models.JobState, skip, take int) ([]*models.JobStatus, error)
	ListByType(ctx context.Context, jobType string, skip, take int) ([]*models.JobStatus, error)
	ListBySource(ctx context.Context, source string, skip, take int) ([]*models.JobStatus, error)
	// List returns statuses ordered by created-at descending, tie-broken by
	// job-id, applying the optional filter before paging.
	List(ctx context.Context, filter JobStatusFilter, skip, take int) ([]*models.JobStatus, error)
	Metrics(ctx context.Context) (*models.JobMetrics, error)
	// DeleteOlderThan deletes terminal status records older than cutoff,
	// returning the count removed. The RetentionCleaner does not call it; it
	// prunes audit records only.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TaskStore maps task-id -> Task.
type TaskStore interface {
	// Create inserts task. A second Create for an existing task-id is a
	// no-op that returns nil (idempotent from the WebhookHandler's
	// perspective, which checks existence first anyway).
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, taskID string) (*models.Task, error)
	// Update overwrites the stored Task. The store does not validate
	// state-machine legality; callers enforce transitions.
	Update(ctx context.Context, task *models.Task) error
}

// AuditLog is the append-only event recorder.
type AuditLog interface {
	Record(ctx context.Context, event *models.AuditEvent) error
	// LogPlatformApiCall is the dedicated entry point handlers use to audit
	// platform-API calls, per spec §6.
	LogPlatformApiCall(ctx context.Context, operation string, duration time.Duration, success bool, errMsg string) error
	// List returns events recorded at or after since, most recent first.
	List(ctx context.Context, since time.Time, skip, take int) ([]*models.AuditEvent, error)
	// DeleteOlderThan deletes records older than cutoff, returning the count
	// removed. Used by the RetentionCleaner.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
