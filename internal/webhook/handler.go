// Package webhook implements WebhookHandler: the boundary between the
// (out-of-scope) HTTP endpoint and signature verifier and the core job
// subsystem. Grounded on the teacher's JobManager.enqueue entry-point
// validation (internal/services/jobmanager/jobs.go), generalized from a
// price-refresh trigger into the labeled-issue-event intake spec §4.8
// describes.
package webhook

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// IssueEvent is the deserialized shape of the issue-labeled webhook payload
// the (out-of-scope) HTTP endpoint hands to Handle after signature
// verification.
type IssueEvent struct {
	Action         string `json:"action"`
	InstallationID int64  `json:"installation_id"`
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	IssueNumber    int    `json:"issue_number"`
	IssueTitle     string `json:"issue_title"`
	IssueBody      string `json:"issue_body"`
	WebhookID      string `json:"webhook_id"`
	Label          Label  `json:"label"`
}

// Label is the GitHub-style label sub-object of an IssueEvent.
type Label struct {
	Name string `json:"name"`
}

// GeneratePlanPayload is serialized into the GeneratePlan job's Payload.
type GeneratePlanPayload struct {
	TaskID         string `json:"task_id"`
	InstallationID int64  `json:"installation_id"`
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	IssueNumber    int    `json:"issue_number"`
	IssueTitle     string `json:"issue_title"`
	IssueBody      string `json:"issue_body"`
	WebhookID      string `json:"webhook_id"`
}

// TriggerLabel is the label name that opts an issue into automation.
const TriggerLabel = "copilot-assisted"

// Outcome describes what Handle did with an event, for callers that want to
// log or respond differently per case.
type Outcome string

const (
	OutcomeIgnoredAction Outcome = "ignored_action"
	OutcomeIgnoredLabel  Outcome = "ignored_label"
	OutcomeIgnoredExists Outcome = "ignored_exists"
	OutcomeDispatched    Outcome = "dispatched"
	OutcomeThrottled     Outcome = "throttled"
)

// Handler is the WebhookHandler of spec §4.8.
type Handler struct {
	tasks   interfaces.TaskStore
	disp    *dispatcher.Dispatcher
	audit   interfaces.AuditLog
	clock   common.Clock
	limiter *rate.Limiter
}

// Option configures optional Handler behavior.
type Option func(*Handler)

// WithRateLimiter guards webhook intake with a token-bucket limiter: once
// its tokens are exhausted, Handle returns OutcomeThrottled instead of
// dispatching, so a burst of labeled issues cannot starve the worker pool.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(h *Handler) { h.limiter = limiter }
}

// New returns a Handler wired to its collaborators.
func New(tasks interfaces.TaskStore, disp *dispatcher.Dispatcher, audit interfaces.AuditLog, clock common.Clock, opts ...Option) *Handler {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	h := &Handler{tasks: tasks, disp: disp, audit: audit, clock: clock}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs the decision sequence of spec §4.8 against a deserialized
// issue event and dispatches a GeneratePlan job when it qualifies.
func (h *Handler) Handle(ctx context.Context, event IssueEvent) (Outcome, error) {
	if h.limiter != nil && !h.limiter.Allow() {
		return OutcomeThrottled, nil
	}

	if common.CorrelationIDFromContext(ctx) == "" {
		ctx = common.WithCorrelationID(ctx, common.DeriveCorrelationID(
			event.InstallationID, event.Owner, event.Repo, event.IssueNumber, event.WebhookID,
		))
	}

	h.recordReceived(ctx, event)

	if event.Action != "labeled" {
		return OutcomeIgnoredAction, nil
	}
	if event.Label.Name != TriggerLabel {
		return OutcomeIgnoredLabel, nil
	}

	taskID := models.TaskIDFor(event.Owner, event.Repo, event.IssueNumber)

	existing, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return OutcomeIgnoredExists, nil
	}

	now := h.clock.Now()
	task := models.NewTask(event.Owner, event.Repo, event.IssueNumber, event.InstallationID, now)
	if err := h.tasks.Create(ctx, task); err != nil {
		return "", err
	}

	payload, err := json.Marshal(GeneratePlanPayload{
		TaskID:         taskID,
		InstallationID: event.InstallationID,
		Owner:          event.Owner,
		Repo:           event.Repo,
		IssueNumber:    event.IssueNumber,
		IssueTitle:     event.IssueTitle,
		IssueBody:      event.IssueBody,
		WebhookID:      event.WebhookID,
	})
	if err != nil {
		return "", err
	}

	job := &models.Job{
		JobID:          common.NewCorrelationID(),
		Type:           "GeneratePlan",
		Payload:        payload,
		IdempotencyKey: taskID,
		ParentJobID:    "",
		CorrelationID:  common.CorrelationIDFromContext(ctx),
		Source:         "Webhook",
		CreatedAt:      now,
	}

	if _, err := h.disp.Dispatch(ctx, job); err != nil {
		return "", err
	}

	return OutcomeDispatched, nil
}

func (h *Handler) recordReceived(ctx context.Context, event IssueEvent) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(ctx, &models.AuditEvent{
		Kind:          models.AuditWebhookReceived,
		CorrelationID: common.CorrelationIDFromContext(ctx),
		Description:   "webhook received: " + event.Action,
		Target:        event.WebhookID,
		Data: map[string]interface{}{
			"owner": event.Owner, "repo": event.Repo, "issue_number": event.IssueNumber, "label": event.Label.Name,
		},
	})
}
