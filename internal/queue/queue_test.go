package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

func job(id string, priority int) *models.Job {
	return &models.Job{JobID: id, Type: "test", Priority: priority}
}

func TestEnqueueDequeue_FIFO(t *testing.T) {
	q := New(10, false)
	require.True(t, q.Enqueue(job("a", 0)))
	require.True(t, q.Enqueue(job("b", 0)))
	require.True(t, q.Enqueue(job("c", 0)))

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.JobID)
	}
}

func TestPrioritized_LowerNumberDrainsFirst(t *testing.T) {
	q := New(10, true)
	require.True(t, q.Enqueue(job("low-pri", 5)))
	require.True(t, q.Enqueue(job("high-pri", 0)))
	require.True(t, q.Enqueue(job("mid-pri", 2)))

	ctx := context.Background()
	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high-pri", first.JobID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mid-pri", second.JobID)

	third, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "low-pri", third.JobID)
}

func TestPrioritized_FIFOWithinPriority(t *testing.T) {
	q := New(10, true)
	require.True(t, q.Enqueue(job("first", 3)))
	require.True(t, q.Enqueue(job("second", 3)))

	ctx := context.Background()
	got1, _ := q.Dequeue(ctx)
	got2, _ := q.Dequeue(ctx)
	assert.Equal(t, "first", got1.JobID)
	assert.Equal(t, "second", got2.JobID)
}

func TestEnqueue_OverflowReturnsFalse(t *testing.T) {
	q := New(1, false)
	require.True(t, q.Enqueue(job("a", 0)))
	assert.False(t, q.Enqueue(job("b", 0)))
	assert.Equal(t, 1, q.Count())
}

func TestDequeue_BlocksUntilCancelled(t *testing.T) {
	q := New(10, false)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	job, err := q.Dequeue(ctx)
	assert.Nil(t, job)
	assert.Error(t, err)
}

func TestDequeue_UnblocksWhenJobArrives(t *testing.T) {
	q := New(10, false)
	ctx := context.Background()

	done := make(chan *models.Job, 1)
	go func() {
		got, _ := q.Dequeue(ctx)
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Enqueue(job("late", 0)))

	select {
	case got := <-done:
		assert.Equal(t, "late", got.JobID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestCount(t *testing.T) {
	q := New(10, false)
	assert.Equal(t, 0, q.Count())
	q.Enqueue(job("a", 0))
	q.Enqueue(job("b", 0))
	assert.Equal(t, 2, q.Count())
}
