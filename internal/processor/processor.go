// Package processor implements Processor: a long-running worker pool that
// dequeues jobs, enforces per-job timeouts, invokes the registered handler,
// interprets the result, and completes/retries/dead-letters accordingly
// (spec §4.4). Grounded directly on the teacher's JobManager.processLoop and
// safeGo panic-recovery goroutine launcher (internal/services/jobmanager/
// manager.go), generalized from the fixed collection-job retry loop to the
// pluggable RetryPolicyCalculator and per-type timeout spec §4.4/§4.5 define.
package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/retry"
)

// TimeoutResolver returns the configured timeout for a job type; zero
// disables the timeout. Typically closures over BackgroundJobConfig's
// PlanTimeout/ExecutionTimeout accessors, keyed by job type.
type TimeoutResolver func(jobType string) time.Duration

// EventSink receives job lifecycle notifications for observability (the
// JobEventHub hangs off this). Implementations must not block.
type EventSink interface {
	Publish(event JobLifecycleEvent)
}

// JobLifecycleEvent is published on every state change the Processor drives.
type JobLifecycleEvent struct {
	Type      string // "started" | "completed" | "failed" | "retried" | "dead_letter" | "cancelled"
	Job       *models.Job
	Timestamp time.Time
	QueueSize int
}

// noopSink discards all events; the default when no EventSink is configured.
type noopSink struct{}

func (noopSink) Publish(JobLifecycleEvent) {}

// Processor is the worker pool described in spec §4.4.
type Processor struct {
	dispatcher *dispatcher.Dispatcher
	audit      interfaces.AuditLog
	calculator *retry.Calculator
	policy     retry.Policy
	timeoutFor TimeoutResolver
	clock      common.Clock
	logger     *common.Logger
	sink       EventSink

	maxConcurrency int
	drainTimeout   time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// Config bundles the Processor's tunables.
type Config struct {
	MaxConcurrency int
	DrainTimeout   time.Duration
	RetryPolicy    retry.Policy
	TimeoutFor     TimeoutResolver
	Sink           EventSink
}

// New returns a Processor wired to disp (which owns the handler registry,
// queue, dedup registry and status store) and audit.
func New(disp *dispatcher.Dispatcher, audit interfaces.AuditLog, clock common.Clock, logger *common.Logger, cfg Config) *Processor {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = noopSink{}
	}
	timeoutFor := cfg.TimeoutFor
	if timeoutFor == nil {
		timeoutFor = func(string) time.Duration { return 0 }
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &Processor{
		dispatcher:     disp,
		audit:          audit,
		calculator:     retry.NewCalculator(),
		policy:         cfg.RetryPolicy,
		timeoutFor:     timeoutFor,
		clock:          clock,
		logger:         logger,
		sink:           sink,
		maxConcurrency: maxConcurrency,
		drainTimeout:   drainTimeout,
	}
}

// safeGo launches a goroutine with panic recovery, mirroring the teacher's
// JobManager.safeGo: a handler bug or worker-loop bug never takes down the
// process.
func (p *Processor) safeGo(name string, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in processor goroutine")
			}
		}()
		fn()
	}()
}

// Start launches MaxConcurrency worker goroutines. A call while the pool is
// already running is a no-op; call StopAsync before Start-ing again.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.maxConcurrency; i++ {
		name := fmt.Sprintf("worker-%d", i)
		p.safeGo(name, func() { p.workerLoop(workerCtx) })
	}
	p.logger.Info().Int("max_concurrency", p.maxConcurrency).Msg("processor started")
}

// StopAsync cancels the processor context and waits up to the configured
// drain window for in-flight jobs to finish, per spec §4.4. Jobs still in
// the Processing state after that are marked Failed with error message
// "shutdown".
func (p *Processor) StopAsync() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.drainTimeout):
		ctx := context.Background()
		statuses := p.dispatcher.Statuses()
		inFlight, _ := statuses.ListByStatus(ctx, models.JobStateProcessing, 0, 0)
		now := p.clock.Now()
		for _, st := range inFlight {
			st.State = models.JobStateFailed
			st.CompletedAt = &now
			st.ErrorMessage = "shutdown"
			_ = statuses.Set(ctx, st)
			p.dispatcher.Dedup().Unregister(st.JobID)
		}
		p.logger.Warn().Int("jobs", len(inFlight)).Msg("processor drain window exceeded; in-flight jobs marked failed")
	}
	p.logger.Info().Msg("processor stopped")
}

// workerLoop is one worker's Dequeue -> execute -> resolve cycle.
func (p *Processor) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.dispatcher.Queue().Dequeue(ctx)
		if err != nil {
			return // ctx cancelled
		}
		if job == nil {
			return // queue closed and drained
		}
		p.handleJob(ctx, job)
	}
}

// handleJob implements the worker loop body of spec §4.4, steps 2-7.
func (p *Processor) handleJob(ctx context.Context, job *models.Job) {
	statuses := p.dispatcher.Statuses()

	if p.dispatcher.IsCancelled(job.JobID) {
		p.transitionCancelled(ctx, job)
		p.dispatcher.ClearCancelIntent(job.JobID)
		return
	}

	now := p.clock.Now()
	status, _ := statuses.Get(ctx, job.JobID)
	if status == nil {
		status = models.NewQueuedStatus(job, now)
	}

	var queueWaitMs int64
	if !status.CreatedAt.IsZero() {
		queueWaitMs = p.clock.Since(status.CreatedAt).Milliseconds()
	}
	status.State = models.JobStateProcessing
	status.StartedAt = &now
	status.QueueWaitMs = &queueWaitMs
	_ = statuses.Set(ctx, status)
	p.publish("started", job)

	timeout := p.timeoutFor(job.Type)
	jobCtx := ctx
	var jobCancel context.CancelFunc
	if timeout > 0 {
		jobCtx, jobCancel = context.WithTimeout(ctx, timeout)
	} else {
		jobCtx, jobCancel = context.WithCancel(ctx)
	}
	p.dispatcher.RegisterActiveJob(job.JobID, jobCancel)
	defer func() {
		jobCancel()
		p.dispatcher.UnregisterActiveJob(job.JobID)
	}()

	result := p.invokeHandler(jobCtx, job, timeout)

	started := *status.StartedAt
	durationMs := p.clock.Since(started).Milliseconds()

	if result.Succeeded {
		p.completeSuccess(ctx, job, status, durationMs)
		return
	}

	p.resolveFailure(ctx, job, status, result, durationMs)
}

// invokeHandler looks up the registered handler and runs it, converting a
// panic or an exceeded deadline into a Failure result so the worker loop
// never dies from a handler bug (spec §7's propagation policy).
func (p *Processor) invokeHandler(ctx context.Context, job *models.Job, timeout time.Duration) (result models.JobResult) {
	handler, ok := p.dispatcher.HandlerFor(job.Type)
	if !ok {
		return models.Failure("no handler registered for type "+job.Type, false)
	}

	resultCh := make(chan models.JobResult, 1)
	p.safeGoHandler(func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- models.Failure(fmt.Sprintf("handler panic: %v", r), false)
			}
		}()
		res, err := handler.Execute(ctx, job)
		if err != nil {
			resultCh <- models.Failure(err.Error(), false)
			return
		}
		resultCh <- res
	})

	select {
	case result = <-resultCh:
		return result
	case <-ctx.Done():
		if timeout > 0 {
			return models.Failure(fmt.Sprintf("timed out after %d seconds", int(timeout.Seconds())), false)
		}
		return models.Failure("cancelled", false)
	}
}

// safeGoHandler runs fn on its own goroutine with panic recovery, separate
// from the worker-pool's own safeGo bookkeeping (no WaitGroup entry; the
// caller already blocks on resultCh/ctx.Done()).
func (p *Processor) safeGoHandler(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in job handler")
			}
		}()
		fn()
	}()
}

func (p *Processor) completeSuccess(ctx context.Context, job *models.Job, status *models.JobStatus, durationMs int64) {
	now := p.clock.Now()
	status.State = models.JobStateCompleted
	status.CompletedAt = &now
	status.ProcessingDurationMs = &durationMs
	status.ErrorMessage = ""
	_ = p.dispatcher.Statuses().Set(ctx, status)
	p.dispatcher.Dedup().Unregister(job.JobID)
	p.recordTransition(ctx, job, status)
	p.publish("completed", job)
}

func (p *Processor) resolveFailure(ctx context.Context, job *models.Job, status *models.JobStatus, result models.JobResult, durationMs int64) {
	if retry.ShouldRetry(p.policy, status.RetryCount, status.MaxRetries, result.ShouldRetry) {
		p.retryJob(ctx, job, status, result)
		return
	}

	now := p.clock.Now()
	status.CompletedAt = &now
	status.ProcessingDurationMs = &durationMs
	status.ErrorMessage = result.Message

	if status.RetryCount >= status.MaxRetries && result.ShouldRetry {
		status.State = models.JobStateDeadLetter
	} else {
		status.State = models.JobStateFailed
	}
	_ = p.dispatcher.Statuses().Set(ctx, status)
	p.dispatcher.Dedup().Unregister(job.JobID)
	p.recordTransition(ctx, job, status)

	eventType := "failed"
	if status.State == models.JobStateDeadLetter {
		eventType = "dead_letter"
	}
	p.publish(eventType, job)
}

// retryJob computes backoff delay, sleeps cooperatively, increments
// retry-count, and re-enqueues the job preserving its identity (spec §4.4
// step 6).
func (p *Processor) retryJob(ctx context.Context, job *models.Job, status *models.JobStatus, result models.JobResult) {
	delayMs := p.calculator.Delay(p.policy, status.RetryCount)
	if err := p.clock.Sleep(ctx, time.Duration(delayMs)*time.Millisecond); err != nil {
		// Shutdown raced the retry sleep; finalize as Failed so the job is
		// not left dangling with no terminal status.
		now := p.clock.Now()
		status.State = models.JobStateFailed
		status.CompletedAt = &now
		status.ErrorMessage = "shutdown"
		_ = p.dispatcher.Statuses().Set(ctx, status)
		p.dispatcher.Dedup().Unregister(job.JobID)
		return
	}

	status.RetryCount++
	now := p.clock.Now()
	status.State = models.JobStateRetried
	status.LastRetryAt = &now
	status.ErrorMessage = result.Message
	_ = p.dispatcher.Statuses().Set(ctx, status)

	retried := *job
	retried.RetryCount = status.RetryCount
	if !p.dispatcher.Queue().Enqueue(&retried) {
		status.State = models.JobStateFailed
		status.ErrorMessage = "queue full during retry"
		completedAt := p.clock.Now()
		status.CompletedAt = &completedAt
		_ = p.dispatcher.Statuses().Set(ctx, status)
		p.dispatcher.Dedup().Unregister(job.JobID)
		return
	}
	p.publish("retried", job)
}

func (p *Processor) transitionCancelled(ctx context.Context, job *models.Job) {
	status, _ := p.dispatcher.Statuses().Get(ctx, job.JobID)
	if status == nil {
		status = models.NewQueuedStatus(job, p.clock.Now())
	}
	now := p.clock.Now()
	status.State = models.JobStateCancelled
	status.CompletedAt = &now
	_ = p.dispatcher.Statuses().Set(ctx, status)
	p.dispatcher.Dedup().Unregister(job.JobID)
	p.recordTransition(ctx, job, status)
	p.publish("cancelled", job)
}

func (p *Processor) recordTransition(ctx context.Context, job *models.Job, status *models.JobStatus) {
	if p.audit == nil {
		return
	}
	_ = p.audit.Record(ctx, &models.AuditEvent{
		Kind:          models.AuditJobStateTransition,
		CorrelationID: job.CorrelationID,
		Description:   fmt.Sprintf("job %s transitioned to %s", job.JobID, status.State),
		Target:        job.JobID,
		Result:        string(status.State),
		ErrorMessage:  status.ErrorMessage,
	})
}

func (p *Processor) publish(eventType string, job *models.Job) {
	p.sink.Publish(JobLifecycleEvent{
		Type:      eventType,
		Job:       job,
		Timestamp: p.clock.Now(),
		QueueSize: p.dispatcher.Queue().Count(),
	})
}
