package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dedup"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/jobstatus"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/queue"
)

type stubHandler struct{ typ string }

func (s stubHandler) Type() string { return s.typ }
func (s stubHandler) Execute(_ context.Context, _ *models.Job) (models.JobResult, error) {
	return models.Success(), nil
}

func newTestDispatcher(qDepth int) *Dispatcher {
	q := queue.New(qDepth, true)
	d := dedup.NewRegistry()
	st := jobstatus.NewStore()
	disp := New(q, d, st, common.NewSystemClock(), common.NewSilentLogger())
	disp.RegisterHandler(stubHandler{typ: "GeneratePlan"})
	return disp
}

func TestDispatch_UnknownType_Rejected(t *testing.T) {
	disp := newTestDispatcher(10)
	result, err := disp.Dispatch(context.Background(), &models.Job{JobID: "j1", Type: "NoSuchHandler"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
}

func TestDispatch_Accepted_WritesQueuedStatus(t *testing.T) {
	disp := newTestDispatcher(10)
	ctx := context.Background()
	result, err := disp.Dispatch(ctx, &models.Job{JobID: "j1", Type: "GeneratePlan", Source: "Webhook"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, result.Outcome)

	status, err := disp.Statuses().Get(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.JobStateQueued, status.State)
	assert.Equal(t, 1, disp.Queue().Count())
}

func TestDispatch_Deduplicated(t *testing.T) {
	disp := newTestDispatcher(10)
	ctx := context.Background()

	first, err := disp.Dispatch(ctx, &models.Job{JobID: "j1", Type: "GeneratePlan", IdempotencyKey: "acme/proj/issues/42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, first.Outcome)

	second, err := disp.Dispatch(ctx, &models.Job{JobID: "j2", Type: "GeneratePlan", IdempotencyKey: "acme/proj/issues/42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeduplicated, second.Outcome)
	assert.Equal(t, "j1", second.JobID)
	assert.Equal(t, 1, disp.Queue().Count())
}

func TestDispatch_QueueFull_RejectedWithFailedStatus(t *testing.T) {
	disp := newTestDispatcher(1)
	ctx := context.Background()

	first, err := disp.Dispatch(ctx, &models.Job{JobID: "j1", Type: "GeneratePlan", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, first.Outcome)

	second, err := disp.Dispatch(ctx, &models.Job{JobID: "j2", Type: "GeneratePlan", IdempotencyKey: "k2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, second.Outcome)
	assert.Equal(t, "queue full", second.Reason)

	status, _ := disp.Statuses().Get(ctx, "j2")
	require.NotNil(t, status)
	assert.Equal(t, models.JobStateFailed, status.State)
	assert.Equal(t, "", disp.Dedup().LookupInFlight("k2"))
}

func TestCancelJob_QueuedIntentObservedByProcessor(t *testing.T) {
	disp := newTestDispatcher(10)
	assert.False(t, disp.IsCancelled("j1"))
	disp.CancelJob("j1")
	assert.True(t, disp.IsCancelled("j1"))
	disp.ClearCancelIntent("j1")
	assert.False(t, disp.IsCancelled("j1"))
}

func TestCancelJob_ActiveJob_CancelsContext(t *testing.T) {
	disp := newTestDispatcher(10)
	ctx, cancel := context.WithCancel(context.Background())
	disp.RegisterActiveJob("j1", cancel)

	disp.CancelJob("j1")

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected job context to be cancelled")
	}
}
