// GeneratePlanJobHandler and ExecutePlanJobHandler are the two registered
// JobHandlers that close the plan-then-execute loop: the former drives a
// Task from PendingPlanning to Planned and dispatches an ExecutePlan
// follow-up; the latter drives Planned to Completed. Grounded on the
// teacher's executor.go job-handler shape (internal/services/jobmanager/
// executor.go), generalized from portfolio/report generation to the
// Task/Plan state machine.
package llm

import (
	"context"
	"encoding/json"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dispatcher"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// GeneratePlanPayload is the expected shape of a GeneratePlan job's Payload,
// matching webhook.GeneratePlanPayload field-for-field.
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

// ExecutePlanPayload is the Payload shape of the follow-up ExecutePlan job.
type ExecutePlanPayload struct {
	TaskID string `json:"task_id"`
}

// GeneratePlanJobHandler implements interfaces.JobHandler for "GeneratePlan".
type GeneratePlanJobHandler struct {
	provider Provider
	tasks    interfaces.TaskStore
	disp     *dispatcher.Dispatcher
	audit    interfaces.AuditLog
	clock    common.Clock
}

var _ interfaces.JobHandler = (*GeneratePlanJobHandler)(nil)

// NewGeneratePlanJobHandler returns a handler wired to its collaborators.
func NewGeneratePlanJobHandler(provider Provider, tasks interfaces.TaskStore, disp *dispatcher.Dispatcher, audit interfaces.AuditLog, clock common.Clock) *GeneratePlanJobHandler {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	return &GeneratePlanJobHandler{provider: provider, tasks: tasks, disp: disp, audit: audit, clock: clock}
}

// Type returns "GeneratePlan".
func (h *GeneratePlanJobHandler) Type() string { return "GeneratePlan" }

// Execute generates a Plan, advances the Task to Planned, and dispatches the
// follow-up ExecutePlan job, per spec.md S1.
func (h *GeneratePlanJobHandler) Execute(ctx context.Context, job *models.Job) (models.JobResult, error) {
	var payload GeneratePlanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return models.Failure("invalid GeneratePlan payload: "+err.Error(), false), nil
	}

	task, err := h.tasks.Get(ctx, payload.TaskID)
	if err != nil {
		return models.Failure(err.Error(), true), nil
	}
	if task == nil {
		return models.Failure("task not found: "+payload.TaskID, false), nil
	}

	plan, err := h.provider.GeneratePlan(ctx, PlanRequest{
		Owner:       payload.Owner,
		Repo:        payload.Repo,
		IssueNumber: payload.IssueNumber,
		IssueTitle:  payload.IssueTitle,
		IssueBody:   payload.IssueBody,
	})
	if err != nil {
		return models.Failure("plan generation failed: "+err.Error(), true), nil
	}

	now := h.clock.Now()
	task.Plan = &plan
	task.Status = models.TaskStatePlanned
	task.UpdatedAt = now
	if err := h.tasks.Update(ctx, task); err != nil {
		return models.Failure(err.Error(), true), nil
	}
	h.recordTransition(ctx, task, "plan generated")

	execPayload, err := json.Marshal(ExecutePlanPayload{TaskID: task.TaskID})
	if err != nil {
		return models.Failure(err.Error(), false), nil
	}
	followUp := &models.Job{
		JobID:          common.NewCorrelationID(),
		Type:           "ExecutePlan",
		Payload:        execPayload,
		IdempotencyKey: task.TaskID + "/execute",
		ParentJobID:    job.JobID,
		CorrelationID:  job.CorrelationID,
		Source:         "GeneratePlanJobHandler",
		CreatedAt:      now,
	}
	if _, err := h.disp.Dispatch(ctx, followUp); err != nil {
		return models.Failure(err.Error(), true), nil
	}

	return models.Success(), nil
}

func (h *GeneratePlanJobHandler) recordTransition(ctx context.Context, task *models.Task, description string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(ctx, &models.AuditEvent{
		Kind:          models.AuditPlanGeneration,
		CorrelationID: common.CorrelationIDFromContext(ctx),
		Description:   description,
		Target:        task.TaskID,
		Result:        string(task.Status),
	})
}

// ExecutePlanJobHandler implements interfaces.JobHandler for "ExecutePlan".
type ExecutePlanJobHandler struct {
	provider Provider
	tasks    interfaces.TaskStore
	audit    interfaces.AuditLog
	clock    common.Clock
}

var _ interfaces.JobHandler = (*ExecutePlanJobHandler)(nil)

// NewExecutePlanJobHandler returns a handler wired to its collaborators.
func NewExecutePlanJobHandler(provider Provider, tasks interfaces.TaskStore, audit interfaces.AuditLog, clock common.Clock) *ExecutePlanJobHandler {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	return &ExecutePlanJobHandler{provider: provider, tasks: tasks, audit: audit, clock: clock}
}

// Type returns "ExecutePlan".
func (h *ExecutePlanJobHandler) Type() string { return "ExecutePlan" }

// Execute runs every step of the Task's Plan in order, marking the Task
// Completed on full success or Blocked on the first step failure.
func (h *ExecutePlanJobHandler) Execute(ctx context.Context, job *models.Job) (models.JobResult, error) {
	var payload ExecutePlanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return models.Failure("invalid ExecutePlan payload: "+err.Error(), false), nil
	}

	task, err := h.tasks.Get(ctx, payload.TaskID)
	if err != nil {
		return models.Failure(err.Error(), true), nil
	}
	if task == nil {
		return models.Failure("task not found: "+payload.TaskID, false), nil
	}
	if task.Plan == nil {
		return models.Failure("task has no plan: "+payload.TaskID, false), nil
	}

	now := h.clock.Now()
	task.Status = models.TaskStateExecuting
	task.UpdatedAt = now
	if err := h.tasks.Update(ctx, task); err != nil {
		return models.Failure(err.Error(), true), nil
	}

	for i := range task.Plan.Steps {
		step := &task.Plan.Steps[i]
		result, err := h.provider.ExecuteStep(ctx, ExecRequest{Owner: task.Owner, Repo: task.Repo, Step: *step, Plan: *task.Plan})
		if err != nil || !result.Succeeded {
			task.Status = models.TaskStateBlocked
			task.UpdatedAt = h.clock.Now()
			_ = h.tasks.Update(ctx, task)
			h.recordExecution(ctx, task, "step execution blocked: "+step.Title)
			msg := "step execution failed"
			if err != nil {
				msg = err.Error()
			}
			return models.Failure(msg, true), nil
		}
		step.Done = true
	}

	task.Status = models.TaskStateCompleted
	task.UpdatedAt = h.clock.Now()
	if err := h.tasks.Update(ctx, task); err != nil {
		return models.Failure(err.Error(), true), nil
	}
	h.recordExecution(ctx, task, "plan executed to completion")

	return models.Success(), nil
}

func (h *ExecutePlanJobHandler) recordExecution(ctx context.Context, task *models.Task, description string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(ctx, &models.AuditEvent{
		Kind:          models.AuditPlanExecution,
		CorrelationID: common.CorrelationIDFromContext(ctx),
		Description:   description,
		Target:        task.TaskID,
		Result:        string(task.Status),
	})
}
