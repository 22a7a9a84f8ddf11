package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

func TestCreateGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	task := models.NewTask("acme", "proj", 42, 7, time.Now())
	require.NoError(t, s.Create(ctx, task))

	got, err := s.Get(ctx, task.TaskID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskStatePendingPlanning, got.Status)
	assert.Equal(t, "acme/proj/issues/42", got.TaskID)
}

func TestCreate_Duplicate_IsNoOp(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	task := models.NewTask("acme", "proj", 42, 7, time.Now())
	require.NoError(t, s.Create(ctx, task))

	mutated := *task
	mutated.Status = models.TaskStatePlanned
	require.NoError(t, s.Create(ctx, &mutated))

	got, _ := s.Get(ctx, task.TaskID)
	assert.Equal(t, models.TaskStatePendingPlanning, got.Status)
}

func TestUpdate_OverwritesState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	task := models.NewTask("acme", "proj", 42, 7, time.Now())
	require.NoError(t, s.Create(ctx, task))

	task.Status = models.TaskStatePlanned
	require.NoError(t, s.Update(ctx, task))

	got, _ := s.Get(ctx, task.TaskID)
	assert.Equal(t, models.TaskStatePlanned, got.Status)
}

func TestExists(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	assert.False(t, s.Exists(ctx, "acme/proj/issues/1"))
	require.NoError(t, s.Create(ctx, models.NewTask("acme", "proj", 1, 7, time.Now())))
	assert.True(t, s.Exists(ctx, "acme/proj/issues/1"))
}
