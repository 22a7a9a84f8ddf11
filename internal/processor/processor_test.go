package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/audit"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dedup"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/jobstatus"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/queue"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/retry"
)

type fnHandler struct {
	typ string
	fn  func(ctx context.Context, job *models.Job) (models.JobResult, error)
}

func (h fnHandler) Type() string { return h.typ }
func (h fnHandler) Execute(ctx context.Context, job *models.Job) (models.JobResult, error) {
	return h.fn(ctx, job)
}

type testHarness struct {
	disp  *dispatcher.Dispatcher
	proc  *Processor
	clock *common.FrozenClock
}

func newHarness(t *testing.T, cfg Config, handler fnHandler) *testHarness {
	t.Helper()
	q := queue.New(10, true)
	d := dedup.NewRegistry()
	st := jobstatus.NewStore()
	clock := common.NewFrozenClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := common.NewSilentLogger()
	disp := dispatcher.New(q, d, st, clock, logger)
	disp.RegisterHandler(handler)
	al := audit.NewLog(logger, clock)

	proc := New(disp, al, clock, logger, cfg)
	return &testHarness{disp: disp, proc: proc, clock: clock}
}

func waitForTerminal(t *testing.T, disp *dispatcher.Dispatcher, jobID string, timeout time.Duration) *models.JobStatus {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, _ := disp.Statuses().Get(context.Background(), jobID)
		if status != nil && status.State.IsTerminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %s", jobID, timeout)
	return nil
}

func TestProcessor_SuccessfulJob_CompletesAndUnregistersDedup(t *testing.T) {
	h := newHarness(t, Config{MaxConcurrency: 1}, fnHandler{
		typ: "Echo",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			return models.Success(), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	result, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Echo", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, dispatcher.OutcomeAccepted, result.Outcome)

	status := waitForTerminal(t, h.disp, "j1", time.Second)
	assert.Equal(t, models.JobStateCompleted, status.State)
	assert.Equal(t, "", h.disp.Dedup().LookupInFlight("k1"))
}

func TestProcessor_FailureNoRetry_TransitionsFailed(t *testing.T) {
	h := newHarness(t, Config{MaxConcurrency: 1}, fnHandler{
		typ: "Echo",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			return models.Failure("boom", false), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Echo"})
	require.NoError(t, err)

	status := waitForTerminal(t, h.disp, "j1", time.Second)
	assert.Equal(t, models.JobStateFailed, status.State)
	assert.Equal(t, "boom", status.ErrorMessage)
}

func TestProcessor_FailureWithRetry_EventuallyCompletes(t *testing.T) {
	attempts := 0
	h := newHarness(t, Config{
		MaxConcurrency: 1,
		RetryPolicy: retry.Policy{
			Enabled:         true,
			MaxRetries:      3,
			BaseDelayMs:     1,
			MaxDelayMs:      5,
			BackoffStrategy: retry.BackoffConstant,
		},
	}, fnHandler{
		typ: "Flaky",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			attempts++
			if attempts < 3 {
				return models.Failure("transient", true), nil
			}
			return models.Success(), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Flaky", MaxRetries: models.Retries(3)})
	require.NoError(t, err)

	status := waitForTerminal(t, h.disp, "j1", 2*time.Second)
	assert.Equal(t, models.JobStateCompleted, status.State)
	assert.Equal(t, 3, attempts)
}

func TestProcessor_RetriesExhausted_TransitionsDeadLetter(t *testing.T) {
	h := newHarness(t, Config{
		MaxConcurrency: 1,
		RetryPolicy: retry.Policy{
			Enabled:         true,
			MaxRetries:      2,
			BaseDelayMs:     1,
			MaxDelayMs:      5,
			BackoffStrategy: retry.BackoffConstant,
		},
	}, fnHandler{
		typ: "AlwaysFails",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			return models.Failure("nope", true), nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "AlwaysFails", MaxRetries: models.Retries(2)})
	require.NoError(t, err)

	status := waitForTerminal(t, h.disp, "j1", 2*time.Second)
	assert.Equal(t, models.JobStateDeadLetter, status.State)
}

func TestProcessor_HandlerTimeout_ProducesTimeoutMessage(t *testing.T) {
	h := newHarness(t, Config{
		MaxConcurrency: 1,
		TimeoutFor:     func(string) time.Duration { return 20 * time.Millisecond },
	}, fnHandler{
		typ: "Slow",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			<-ctx.Done()
			return models.JobResult{}, errors.New("should not reach here normally")
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Slow"})
	require.NoError(t, err)

	status := waitForTerminal(t, h.disp, "j1", time.Second)
	assert.Equal(t, models.JobStateFailed, status.State)
	assert.Contains(t, status.ErrorMessage, "timed out after")
}

func TestProcessor_HandlerPanic_ConvertedToFailure(t *testing.T) {
	h := newHarness(t, Config{MaxConcurrency: 1}, fnHandler{
		typ: "Panicky",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			panic("kaboom")
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Panicky"})
	require.NoError(t, err)

	status := waitForTerminal(t, h.disp, "j1", time.Second)
	assert.Equal(t, models.JobStateFailed, status.State)
	assert.Contains(t, status.ErrorMessage, "handler panic")
}

func TestProcessor_CancelQueuedJob_TransitionsCancelledWithoutExecuting(t *testing.T) {
	executed := false
	h := newHarness(t, Config{MaxConcurrency: 1}, fnHandler{
		typ: "Echo",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			executed = true
			return models.Success(), nil
		},
	})
	h.disp.CancelJob("j1")

	_, err := h.disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "Echo"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.proc.Start(ctx)
	defer h.proc.StopAsync()

	status := waitForTerminal(t, h.disp, "j1", time.Second)
	assert.Equal(t, models.JobStateCancelled, status.State)
	assert.False(t, executed)
}

func TestProcessor_StopAsync_IsIdempotentAndDrains(t *testing.T) {
	h := newHarness(t, Config{MaxConcurrency: 1, DrainTimeout: 100 * time.Millisecond}, fnHandler{
		typ: "Echo",
		fn: func(ctx context.Context, job *models.Job) (models.JobResult, error) {
			return models.Success(), nil
		},
	})
	ctx := context.Background()
	h.proc.Start(ctx)
	h.proc.StopAsync()
	h.proc.StopAsync() // must not panic or block
}
