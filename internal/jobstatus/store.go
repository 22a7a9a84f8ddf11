// Package jobstatus implements JobStatusStore: an in-memory CRUD+metrics
// store for JobStatus records, grounded on the teacher's SurrealDB job-queue
// store's field-by-field status tracking (internal/storage/surrealdb/
// jobqueue.go) reimplemented over a guarded map for the default in-process
// deployment, with List/Metrics aggregation added per spec §4.6.
package jobstatus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Store is the in-memory JobStatusStore implementation.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]*models.JobStatus
}

var _ interfaces.JobStatusStore = (*Store)(nil)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{statuses: make(map[string]*models.JobStatus)}
}

// Set upserts status keyed on JobID. A defensive copy is stored so later
// caller-side mutation of the pointer passed in does not corrupt state.
func (s *Store) Set(_ context.Context, status *models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *status
	s.statuses[status.JobID] = &copied
	return nil
}

// Get returns the status for jobID, or nil if unknown.
func (s *Store) Get(_ context.Context, jobID string) (*models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[jobID]
	if !ok {
		return nil, nil
	}
	copied := *st
	return &copied, nil
}

// Delete removes the status for jobID, if present.
func (s *Store) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, jobID)
	return nil
}

func (s *Store) snapshotLocked() []*models.JobStatus {
	all := make([]*models.JobStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		copied := *st
		all = append(all, &copied)
	}
	return all
}

// sortByCreatedDesc orders by created-at descending, tie-broken by job-id,
// per spec §4.6's List ordering contract.
func sortByCreatedDesc(statuses []*models.JobStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		if !statuses[i].CreatedAt.Equal(statuses[j].CreatedAt) {
			return statuses[i].CreatedAt.After(statuses[j].CreatedAt)
		}
		return statuses[i].JobID > statuses[j].JobID
	})
}

func page(statuses []*models.JobStatus, skip, take int) []*models.JobStatus {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(statuses) {
		return []*models.JobStatus{}
	}
	end := len(statuses)
	if take > 0 && skip+take < end {
		end = skip + take
	}
	return statuses[skip:end]
}

// ListByStatus returns statuses in state, newest first, paged.
func (s *Store) ListByStatus(_ context.Context, state models.JobState, skip, take int) ([]*models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.JobStatus
	for _, st := range s.snapshotLocked() {
		if st.State == state {
			matched = append(matched, st)
		}
	}
	sortByCreatedDesc(matched)
	return page(matched, skip, take), nil
}

// ListByType returns statuses of jobType, newest first, paged.
func (s *Store) ListByType(_ context.Context, jobType string, skip, take int) ([]*models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.JobStatus
	for _, st := range s.snapshotLocked() {
		if st.Type == jobType {
			matched = append(matched, st)
		}
	}
	sortByCreatedDesc(matched)
	return page(matched, skip, take), nil
}

// ListBySource returns statuses from source, newest first, paged.
func (s *Store) ListBySource(_ context.Context, source string, skip, take int) ([]*models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.JobStatus
	for _, st := range s.snapshotLocked() {
		if st.Source == source {
			matched = append(matched, st)
		}
	}
	sortByCreatedDesc(matched)
	return page(matched, skip, take), nil
}

// List applies filter (zero fields unfiltered), orders newest first, pages.
func (s *Store) List(_ context.Context, filter interfaces.JobStatusFilter, skip, take int) ([]*models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.JobStatus
	for _, st := range s.snapshotLocked() {
		if filter.State != "" && st.State != filter.State {
			continue
		}
		if filter.Type != "" && st.Type != filter.Type {
			continue
		}
		if filter.Source != "" && st.Source != filter.Source {
			continue
		}
		matched = append(matched, st)
	}
	sortByCreatedDesc(matched)
	return page(matched, skip, take), nil
}

// Metrics aggregates the current status set per spec §4.6.
func (s *Store) Metrics(_ context.Context) (*models.JobMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &models.JobMetrics{MetricsByType: make(map[string]*models.JobMetricsByType)}

	var totalProcDur, totalQueueWait int64
	var countProcDur, countQueueWait int64
	typeProcDur := make(map[string]int64)
	typeProcCount := make(map[string]int64)

	for _, st := range s.statuses {
		m.TotalJobs++
		switch st.State {
		case models.JobStateQueued:
			m.QueueDepth++
		case models.JobStateProcessing:
			m.ProcessingCount++
		case models.JobStateCompleted:
			m.CompletedCount++
		case models.JobStateFailed:
			m.FailedCount++
		case models.JobStateCancelled:
			m.CancelledCount++
		case models.JobStateDeadLetter:
			m.DeadLetterCount++
		}

		if st.ProcessingDurationMs != nil {
			totalProcDur += *st.ProcessingDurationMs
			countProcDur++
			typeProcDur[st.Type] += *st.ProcessingDurationMs
			typeProcCount[st.Type]++
		}
		if st.QueueWaitMs != nil {
			totalQueueWait += *st.QueueWaitMs
			countQueueWait++
		}

		byType, ok := m.MetricsByType[st.Type]
		if !ok {
			byType = &models.JobMetricsByType{}
			m.MetricsByType[st.Type] = byType
		}
		byType.TotalCount++
		switch st.State {
		case models.JobStateCompleted:
			byType.SuccessCount++
		case models.JobStateFailed:
			byType.FailureCount++
		}
	}

	if m.TotalJobs > 0 {
		m.FailureRate = float64(m.FailedCount) / float64(m.TotalJobs)
	}
	if countProcDur > 0 {
		m.AverageProcessingDurationMs = float64(totalProcDur) / float64(countProcDur)
	}
	if countQueueWait > 0 {
		m.AverageQueueWaitMs = float64(totalQueueWait) / float64(countQueueWait)
	}
	for jobType, byType := range m.MetricsByType {
		if byType.TotalCount > 0 {
			byType.FailureRate = float64(byType.FailureCount) / float64(byType.TotalCount)
		}
		if n := typeProcCount[jobType]; n > 0 {
			byType.AverageProcessingDurationMs = float64(typeProcDur[jobType]) / float64(n)
		}
	}

	return m, nil
}

// DeleteOlderThan removes terminal-state status records with CompletedAt
// before cutoff, returning the count removed. Non-terminal records are never
// pruned regardless of age.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.statuses {
		if !st.State.IsTerminal() || st.CompletedAt == nil {
			continue
		}
		if st.CompletedAt.Before(cutoff) {
			delete(s.statuses, id)
			removed++
		}
	}
	return removed, nil
}
