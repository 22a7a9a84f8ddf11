// Package llm declares Provider: the narrow planning/execution surface the
// GeneratePlan/ExecutePlan job handlers depend on. The model's prompt
// templates and planning strategy are themselves out of scope (spec.md's
// Non-goals) — Provider is the boundary those stay behind.
package llm

import (
	"context"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// PlanRequest is the input to Provider.GeneratePlan.
type PlanRequest struct {
	Owner       string
	Repo        string
	IssueNumber int
	IssueTitle  string
	IssueBody   string
}

// ExecRequest is the input to Provider.ExecuteStep.
type ExecRequest struct {
	Owner string
	Repo  string
	Step  models.PlanStep
	Plan  models.Plan
}

// StepResult is the outcome of executing one plan step.
type StepResult struct {
	Succeeded bool
	Summary   string
}

// Provider is the capability contract every planning/execution backend
// implements. Config validation rules (spec §6) live on the per-provider
// LLMConfig, not here.
type Provider interface {
	GeneratePlan(ctx context.Context, req PlanRequest) (models.Plan, error)
	ExecuteStep(ctx context.Context, req ExecRequest) (StepResult, error)
}
