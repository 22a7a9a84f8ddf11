// Package queue implements JobQueue: a bounded, optionally prioritized,
// FIFO-within-priority in-memory queue of Job. Grounded on the shape of the
// teacher's JobQueueStore contract (Enqueue/Dequeue/Count in
// internal/services/jobmanager/queue.go) generalized from a durable-store
// delegate into a genuine in-process queue guarded by a condition variable,
// the idiomatic Go shape for a cancellable blocking consumer (mirrors the
// bounded-channel-with-select pattern used throughout the reference pack's
// worker-pool examples).
package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Queue is the in-memory JobQueue implementation.
type Queue struct {
	mu            sync.Mutex
	notEmpty      *sync.Cond
	byPriority    map[int][]*models.Job
	priorities    []int // kept sorted ascending; 0 = highest
	depth         int
	maxDepth      int
	prioritized   bool
	closed        bool
}

var _ interfaces.JobQueue = (*Queue)(nil)

// New returns a Queue bounded at maxDepth. When prioritized is false, all
// jobs are treated as a single FIFO lane regardless of Job.Priority.
func New(maxDepth int, prioritized bool) *Queue {
	q := &Queue{
		byPriority:  make(map[int][]*models.Job),
		maxDepth:    maxDepth,
		prioritized: prioritized,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends job to its priority lane. Returns false without blocking
// if the queue is already at maxDepth; never silently drops the job (the
// caller — Dispatcher — is responsible for recording the rejection).
func (q *Queue) Enqueue(job *models.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.maxDepth > 0 && q.depth >= q.maxDepth {
		return false
	}

	priority := job.Priority
	if !q.prioritized {
		priority = 0
	}
	if _, ok := q.byPriority[priority]; !ok {
		q.priorities = append(q.priorities, priority)
		sort.Ints(q.priorities)
	}
	q.byPriority[priority] = append(q.byPriority[priority], job)
	q.depth++
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until a job is available or ctx is cancelled. Lower
// priority numbers drain first; within a priority level, FIFO holds.
func (q *Queue) Dequeue(ctx context.Context) (*models.Job, error) {
	// stopWatcher lets a goroutine wake the condition variable when ctx is
	// cancelled, since sync.Cond has no native context support.
	stopWatcher := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		case <-stopWatcher:
		}
	}()
	defer close(stopWatcher)

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if job, ok := q.popLocked(); ok {
			return job, nil
		}
		if q.closed && q.depth == 0 {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.notEmpty.Wait()
	}
}

// popLocked removes and returns the head of the lowest-numbered non-empty
// priority lane. Caller must hold q.mu.
func (q *Queue) popLocked() (*models.Job, bool) {
	for _, p := range q.priorities {
		lane := q.byPriority[p]
		if len(lane) == 0 {
			continue
		}
		job := lane[0]
		q.byPriority[p] = lane[1:]
		q.depth--
		return job, true
	}
	return nil, false
}

// Count returns the current approximate depth across all priority lanes.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Close stops accepting new enqueues and wakes any blocked Dequeue callers
// once the remaining buffered jobs have drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}
