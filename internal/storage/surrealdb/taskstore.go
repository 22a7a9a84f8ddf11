package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

const taskTable = "task"

// TaskStore is the SurrealDB-backed TaskStore implementation.
type TaskStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.TaskStore = (*TaskStore)(nil)

// Create inserts task. A second Create for an existing task-id is a no-op.
func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	existing, err := s.Get(ctx, task.TaskID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.Update(ctx, task)
}

// Get returns the task for taskID, or nil if unknown.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := surrealdb.Select[models.Task](ctx, s.db, surrealmodels.NewRecordID(taskTable, taskID))
	if err != nil {
		return nil, nil
	}
	return task, nil
}

// Update overwrites the stored Task.
func (s *TaskStore) Update(ctx context.Context, task *models.Task) error {
	sql := `UPSERT $rid SET
		task_id = $task_id, installation_id = $installation_id, owner = $owner, repo = $repo,
		issue_number = $issue_number, plan = $plan, status = $status,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":             surrealmodels.NewRecordID(taskTable, task.TaskID),
		"task_id":         task.TaskID,
		"installation_id": task.InstallationID,
		"owner":           task.Owner,
		"repo":            task.Repo,
		"issue_number":    task.IssueNumber,
		"plan":            task.Plan,
		"status":          task.Status,
		"created_at":      task.CreatedAt,
		"updated_at":      task.UpdatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.TaskID, err)
	}
	return nil
}
