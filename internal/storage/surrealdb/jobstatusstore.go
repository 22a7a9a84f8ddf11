package surrealdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

const jobStatusTable = "job_status"

// JobStatusStore is the SurrealDB-backed JobStatusStore implementation.
type JobStatusStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.JobStatusStore = (*JobStatusStore)(nil)

// Set upserts status keyed on JobID, mirroring the teacher's
// UPSERT-by-record-id write (jobqueue.go's Enqueue).
func (s *JobStatusStore) Set(ctx context.Context, status *models.JobStatus) error {
	sql := `UPSERT $rid SET
		job_id = $job_id, type = $type, state = $state, created_at = $created_at,
		started_at = $started_at, completed_at = $completed_at,
		processing_duration_ms = $processing_duration_ms, queue_wait_ms = $queue_wait_ms,
		retry_count = $retry_count, max_retries = $max_retries, last_retry_at = $last_retry_at,
		error_message = $error_message, parent_job_id = $parent_job_id,
		correlation_id = $correlation_id, source = $source, metadata = $metadata`
	vars := map[string]any{
		"rid":                    surrealmodels.NewRecordID(jobStatusTable, status.JobID),
		"job_id":                 status.JobID,
		"type":                   status.Type,
		"state":                  status.State,
		"created_at":             status.CreatedAt,
		"started_at":             status.StartedAt,
		"completed_at":           status.CompletedAt,
		"processing_duration_ms": status.ProcessingDurationMs,
		"queue_wait_ms":          status.QueueWaitMs,
		"retry_count":            status.RetryCount,
		"max_retries":            status.MaxRetries,
		"last_retry_at":          status.LastRetryAt,
		"error_message":          status.ErrorMessage,
		"parent_job_id":          status.ParentJobID,
		"correlation_id":         status.CorrelationID,
		"source":                 status.Source,
		"metadata":               status.Metadata,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

// Get returns the status for jobID, or nil if unknown.
func (s *JobStatusStore) Get(ctx context.Context, jobID string) (*models.JobStatus, error) {
	status, err := surrealdb.Select[models.JobStatus](ctx, s.db, surrealmodels.NewRecordID(jobStatusTable, jobID))
	if err != nil {
		return nil, nil
	}
	return status, nil
}

// Delete removes the status for jobID, if present.
func (s *JobStatusStore) Delete(ctx context.Context, jobID string) error {
	_, err := surrealdb.Delete[models.JobStatus](ctx, s.db, surrealmodels.NewRecordID(jobStatusTable, jobID))
	if err != nil {
		return fmt.Errorf("failed to delete job status %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStatusStore) all(ctx context.Context) ([]models.JobStatus, error) {
	results, err := surrealdb.Select[[]models.JobStatus](ctx, s.db, surrealmodels.Table(jobStatusTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list job statuses: %w", err)
	}
	if results == nil {
		return nil, nil
	}
	return *results, nil
}

func sortStatusesByCreatedDesc(statuses []*models.JobStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		if !statuses[i].CreatedAt.Equal(statuses[j].CreatedAt) {
			return statuses[i].CreatedAt.After(statuses[j].CreatedAt)
		}
		return statuses[i].JobID > statuses[j].JobID
	})
}

func pageStatuses(statuses []*models.JobStatus, skip, take int) []*models.JobStatus {
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
func (s *JobStatusStore) ListByStatus(ctx context.Context, state models.JobState, skip, take int) ([]*models.JobStatus, error) {
	return s.List(ctx, interfaces.JobStatusFilter{State: state}, skip, take)
}

// ListByType returns statuses of jobType, newest first, paged.
func (s *JobStatusStore) ListByType(ctx context.Context, jobType string, skip, take int) ([]*models.JobStatus, error) {
	return s.List(ctx, interfaces.JobStatusFilter{Type: jobType}, skip, take)
}

// ListBySource returns statuses from source, newest first, paged.
func (s *JobStatusStore) ListBySource(ctx context.Context, source string, skip, take int) ([]*models.JobStatus, error) {
	return s.List(ctx, interfaces.JobStatusFilter{Source: source}, skip, take)
}

// List applies filter (zero fields unfiltered), orders newest first, pages.
// Filtering and paging happen in Go after a full-table fetch, the same
// simple strategy the teacher's queryJobs helper uses for anything beyond a
// direct indexed lookup.
func (s *JobStatusStore) List(ctx context.Context, filter interfaces.JobStatusFilter, skip, take int) ([]*models.JobStatus, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*models.JobStatus
	for i := range all {
		st := &all[i]
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
	sortStatusesByCreatedDesc(matched)
	return pageStatuses(matched, skip, take), nil
}

// Metrics aggregates the current status set, in Go, over a full-table fetch.
func (s *JobStatusStore) Metrics(ctx context.Context) (*models.JobMetrics, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	m := &models.JobMetrics{MetricsByType: make(map[string]*models.JobMetricsByType)}
	var totalProcDur, totalQueueWait, countProcDur, countQueueWait int64
	typeProcDur := make(map[string]int64)
	typeProcCount := make(map[string]int64)

	for i := range all {
		st := &all[i]
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

// DeleteOlderThan deletes terminal-state status records with CompletedAt
// before cutoff, returning the count removed.
func (s *JobStatusStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range all {
		st := &all[i]
		if !st.State.IsTerminal() || st.CompletedAt == nil || !st.CompletedAt.Before(cutoff) {
			continue
		}
		if _, err := surrealdb.Delete[models.JobStatus](ctx, s.db, surrealmodels.NewRecordID(jobStatusTable, st.JobID)); err != nil {
			return removed, fmt.Errorf("failed to delete job status %s: %w", st.JobID, err)
		}
		removed++
	}
	return removed, nil
}
