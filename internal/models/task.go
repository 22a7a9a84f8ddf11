package models

import (
	"fmt"
	"time"
)

// TaskState is the planning/execution lifecycle state of a Task.
type TaskState string

const (
	TaskStatePendingPlanning TaskState = "PendingPlanning"
	TaskStatePlanned         TaskState = "Planned"
	TaskStateExecuting       TaskState = "Executing"
	TaskStateCompleted       TaskState = "Completed"
	TaskStateFailed          TaskState = "Failed"
	TaskStateBlocked         TaskState = "Blocked"
)

// Task is the unit of agent work for one issue: plan it, then execute the
// plan. Task-id is derived deterministically from owner/repo/issue-number so
// the WebhookHandler can test existence without a separate lookup table.
type Task struct {
	TaskID         string    `json:"task_id"`
	InstallationID int64     `json:"installation_id"`
	Owner          string    `json:"owner"`
	Repo           string    `json:"repo"`
	IssueNumber    int       `json:"issue_number"`
	Plan           *Plan     `json:"plan,omitempty"`
	Status         TaskState `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TaskIDFor formats the canonical task identity "{owner}/{repo}/issues/{number}".
func TaskIDFor(owner, repo string, issueNumber int) string {
	return fmt.Sprintf("%s/%s/issues/%d", owner, repo, issueNumber)
}

// NewTask constructs a Task in its initial PendingPlanning state.
func NewTask(owner, repo string, issueNumber int, installationID int64, now time.Time) *Task {
	return &Task{
		TaskID:         TaskIDFor(owner, repo, issueNumber),
		InstallationID: installationID,
		Owner:          owner,
		Repo:           repo,
		IssueNumber:    issueNumber,
		Status:         TaskStatePendingPlanning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Plan is the structured output of the planning phase: a problem summary,
// ordered constraints, ordered steps, an ordered checklist and the ordered
// set of files the executor is expected to touch. Order within every
// sequence is significant to the executor.
type Plan struct {
	ProblemSummary string     `json:"problem_summary"`
	Constraints    []string   `json:"constraints"`
	Steps          []PlanStep `json:"steps"`
	Checklist      []string   `json:"checklist"`
	FileTargets    []string   `json:"file_targets"`
}

// PlanStep is one ordered step of a Plan.
type PlanStep struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Details string `json:"details"`
	Done    bool   `json:"done"`
}
