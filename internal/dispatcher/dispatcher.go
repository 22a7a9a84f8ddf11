// Package dispatcher implements Dispatcher: the single entry point for
// submitting work, owning the handler registry and the cancellation-intent
// map the Processor consults (spec §9's "break the Dispatcher/Processor
// cycle with a one-way handle": Dispatcher owns the handler map and exposes
// a lookup to Processor; Processor never mutates Dispatcher state except
// through StatusStore/Queue). Grounded on the teacher's JobManager.enqueue/
// dequeue/PushToTop orchestration (internal/services/jobmanager/queue.go),
// generalized to the validate-dedup-record-enqueue sequence spec §4.3
// requires.
package dispatcher

import (
	"context"
	"sync"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Outcome is the result of a Dispatch call.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeDeduplicated Outcome = "deduplicated"
)

// DispatchResult is returned by Dispatch.
type DispatchResult struct {
	Outcome Outcome
	JobID   string
	Reason  string
}

// Dispatcher is the single entry point for submitting Job work.
type Dispatcher struct {
	queue    interfaces.JobQueue
	dedup    interfaces.DeduplicationRegistry
	statuses interfaces.JobStatusStore
	clock    common.Clock
	logger   *common.Logger

	mu             sync.Mutex
	handlers       map[string]interfaces.JobHandler
	cancelIntents  map[string]bool
	activeCancels  map[string]context.CancelFunc
}

// New returns a Dispatcher wired to its collaborators.
func New(queue interfaces.JobQueue, dedup interfaces.DeduplicationRegistry, statuses interfaces.JobStatusStore, clock common.Clock, logger *common.Logger) *Dispatcher {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	return &Dispatcher{
		queue:         queue,
		dedup:         dedup,
		statuses:      statuses,
		clock:         clock,
		logger:        logger,
		handlers:      make(map[string]interfaces.JobHandler),
		cancelIntents: make(map[string]bool),
		activeCancels: make(map[string]context.CancelFunc),
	}
}

// RegisterHandler stores h keyed by h.Type(). Handlers must be registered
// before the Processor starts; the registry is read-only thereafter.
func (d *Dispatcher) RegisterHandler(h interfaces.JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[h.Type()] = h
}

// HandlerFor looks up the handler for jobType. Processor uses this; it never
// mutates the registry itself.
func (d *Dispatcher) HandlerFor(jobType string) (interfaces.JobHandler, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handlers[jobType]
	return h, ok
}

// Dispatch runs the validate -> dedup -> record -> enqueue sequence of
// spec §4.3.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job) (DispatchResult, error) {
	if _, ok := d.HandlerFor(job.Type); !ok {
		return DispatchResult{Outcome: OutcomeRejected, JobID: job.JobID, Reason: "unknown handler type"}, nil
	}

	if job.IdempotencyKey != "" {
		if existing := d.dedup.LookupInFlight(job.IdempotencyKey); existing != "" {
			return DispatchResult{Outcome: OutcomeDeduplicated, JobID: existing}, nil
		}
	}

	now := d.clock.Now()
	status := models.NewQueuedStatus(job, now)
	if err := d.statuses.Set(ctx, status); err != nil {
		return DispatchResult{}, err
	}

	if job.IdempotencyKey != "" {
		if err := d.dedup.Register(job.JobID, job.IdempotencyKey); err != nil {
			return DispatchResult{}, err
		}
	}

	if !d.queue.Enqueue(job) {
		status.State = models.JobStateFailed
		status.ErrorMessage = "queue full"
		completedAt := now
		status.CompletedAt = &completedAt
		_ = d.statuses.Set(ctx, status)
		d.dedup.Unregister(job.JobID)
		return DispatchResult{Outcome: OutcomeRejected, JobID: job.JobID, Reason: "queue full"}, nil
	}

	return DispatchResult{Outcome: OutcomeAccepted, JobID: job.JobID}, nil
}

// CancelJob marks cancellation intent for jobID. If the job is currently
// Processing, its per-job context is cancelled immediately; if it is still
// Queued, the Processor observes the intent on dequeue and transitions it to
// Cancelled without invoking the handler.
func (d *Dispatcher) CancelJob(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelIntents[jobID] = true
	if cancel, ok := d.activeCancels[jobID]; ok {
		cancel()
	}
}

// IsCancelled reports whether CancelJob has been called for jobID.
func (d *Dispatcher) IsCancelled(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelIntents[jobID]
}

// ClearCancelIntent removes the cancellation intent once it has been
// consumed by the Processor's Queued->Cancelled transition.
func (d *Dispatcher) ClearCancelIntent(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancelIntents, jobID)
}

// RegisterActiveJob records the cancel func for a job that has moved to
// Processing, so a subsequent CancelJob can reach it. Called by Processor.
func (d *Dispatcher) RegisterActiveJob(jobID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeCancels[jobID] = cancel
}

// UnregisterActiveJob removes the cancel func once the job has completed.
// Called by Processor.
func (d *Dispatcher) UnregisterActiveJob(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.activeCancels, jobID)
	delete(d.cancelIntents, jobID)
}

// Queue, DeduplicationRegistry and JobStatusStore accessors let the
// Processor share the same collaborator instances without the Dispatcher
// exposing its internal handler/cancellation state.
func (d *Dispatcher) Queue() interfaces.JobQueue             { return d.queue }
func (d *Dispatcher) Dedup() interfaces.DeduplicationRegistry { return d.dedup }
func (d *Dispatcher) Statuses() interfaces.JobStatusStore     { return d.statuses }
