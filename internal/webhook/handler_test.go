package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/audit"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dedup"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/jobstatus"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/queue"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/taskstore"
)

type noopHandler struct{ typ string }

func (n noopHandler) Type() string { return n.typ }
func (n noopHandler) Execute(context.Context, *models.Job) (models.JobResult, error) {
	return models.Success(), nil
}

func newTestHandler(t *testing.T) (*Handler, *taskstore.Store, *dispatcher.Dispatcher) {
	t.Helper()
	clock := common.NewFrozenClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := common.NewSilentLogger()
	tasks := taskstore.NewStore()
	disp := dispatcher.New(queue.New(10, true), dedup.NewRegistry(), jobstatus.NewStore(), clock, logger)
	disp.RegisterHandler(noopHandler{typ: "GeneratePlan"})
	al := audit.NewLog(logger, clock)
	return New(tasks, disp, al, clock), tasks, disp
}

func TestHandle_NonLabeledAction_Ignored(t *testing.T) {
	h, _, _ := newTestHandler(t)
	outcome, err := h.Handle(context.Background(), IssueEvent{Action: "opened"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredAction, outcome)
}

func TestHandle_WrongLabel_Ignored(t *testing.T) {
	h, _, _ := newTestHandler(t)
	outcome, err := h.Handle(context.Background(), IssueEvent{Action: "labeled", Label: Label{Name: "bug"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredLabel, outcome)
}

func TestHandle_NewQualifyingEvent_CreatesTaskAndDispatches(t *testing.T) {
	h, tasks, disp := newTestHandler(t)
	ctx := context.Background()
	outcome, err := h.Handle(ctx, IssueEvent{
		Action: "labeled", Label: Label{Name: "copilot-assisted"},
		Owner: "acme", Repo: "proj", IssueNumber: 42, InstallationID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)

	task, err := tasks.Get(ctx, "acme/proj/issues/42")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, models.TaskStatePendingPlanning, task.Status)
	assert.Equal(t, 1, disp.Queue().Count())
}

func TestHandle_ExistingTask_Ignored(t *testing.T) {
	h, tasks, disp := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, models.NewTask("acme", "proj", 42, 7, time.Now())))

	outcome, err := h.Handle(ctx, IssueEvent{
		Action: "labeled", Label: Label{Name: "copilot-assisted"},
		Owner: "acme", Repo: "proj", IssueNumber: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredExists, outcome)
	assert.Equal(t, 0, disp.Queue().Count())
}

func TestHandle_SameIssueTwice_OnlyFirstDispatches(t *testing.T) {
	h, _, disp := newTestHandler(t)
	ctx := context.Background()
	event := IssueEvent{Action: "labeled", Label: Label{Name: "copilot-assisted"}, Owner: "acme", Repo: "proj", IssueNumber: 99}

	first, err := h.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, first)

	second, err := h.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredExists, second)
	assert.Equal(t, 1, disp.Queue().Count())
}

func TestHandle_RateLimitExhausted_ReturnsThrottled(t *testing.T) {
	clock := common.NewFrozenClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := common.NewSilentLogger()
	tasks := taskstore.NewStore()
	disp := dispatcher.New(queue.New(10, true), dedup.NewRegistry(), jobstatus.NewStore(), clock, logger)
	disp.RegisterHandler(noopHandler{typ: "GeneratePlan"})
	al := audit.NewLog(logger, clock)
	h := New(tasks, disp, al, clock, WithRateLimiter(rate.NewLimiter(rate.Limit(0), 1)))

	ctx := context.Background()
	first, err := h.Handle(ctx, IssueEvent{Action: "labeled", Label: Label{Name: "copilot-assisted"}, Owner: "acme", Repo: "proj", IssueNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, first)

	second, err := h.Handle(ctx, IssueEvent{Action: "labeled", Label: Label{Name: "copilot-assisted"}, Owner: "acme", Repo: "proj", IssueNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeThrottled, second)
	assert.Equal(t, 1, disp.Queue().Count())
}

func TestHandle_NoExplicitCorrelationID_DerivesStableOne(t *testing.T) {
	h, _, _ := newTestHandler(t)
	event := IssueEvent{
		Action: "labeled", Label: Label{Name: "copilot-assisted"},
		Owner: "acme", Repo: "proj", IssueNumber: 7, InstallationID: 42, WebhookID: "delivery-1",
	}

	first := common.DeriveCorrelationID(event.InstallationID, event.Owner, event.Repo, event.IssueNumber, event.WebhookID)
	second := common.DeriveCorrelationID(event.InstallationID, event.Owner, event.Repo, event.IssueNumber, event.WebhookID)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	outcome, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, outcome)
}
