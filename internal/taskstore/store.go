// Package taskstore implements TaskStore: an in-memory map from task-id to
// Task. Grounded on the teacher's plan service's CRUD-over-a-guarded-map
// shape (internal/services/plan/service.go in the reference repo this
// module started from), generalized from the financial plan domain to the
// Task/Plan state machine spec §3 and §4.7 define.
package taskstore

import (
	"context"
	"sync"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Store is the in-memory TaskStore implementation.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

var _ interfaces.TaskStore = (*Store)(nil)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*models.Task)}
}

// Create inserts task. A second Create for an existing task-id is a no-op
// (spec §4.7 leaves the choice between fail/no-op to the implementation;
// no-op keeps WebhookHandler's "already exists -> ignore" check simple).
func (s *Store) Create(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.TaskID]; exists {
		return nil
	}
	copied := *task
	s.tasks[task.TaskID] = &copied
	return nil
}

// Get returns the task for taskID, or nil if unknown.
func (s *Store) Get(_ context.Context, taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

// Update overwrites the stored Task. No state-machine legality is enforced
// here; callers (WebhookHandler, the plan/execute job handlers) own that.
func (s *Store) Update(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.TaskID] = &copied
	return nil
}

// Exists reports whether taskID is already tracked. It is not part of the
// TaskStore interface; the WebhookHandler checks existence through Get.
func (s *Store) Exists(_ context.Context, taskID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[taskID]
	return ok
}
