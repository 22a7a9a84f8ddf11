package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

const auditTable = "audit_event"

// AuditLog is the SurrealDB-backed AuditLog implementation.
type AuditLog struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.AuditLog = (*AuditLog)(nil)

// Record appends event, assigning it a record id derived from a fresh uuid
// since AuditEvent itself carries no identity field.
func (s *AuditLog) Record(ctx context.Context, event *models.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	id := uuid.New().String()
	sql := `CREATE $rid SET
		kind = $kind, timestamp = $timestamp, correlation_id = $correlation_id,
		description = $description, data = $data, initiator = $initiator,
		target = $target, result = $result, duration_ms = $duration_ms,
		error_message = $error_message`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID(auditTable, id),
		"kind":           event.Kind,
		"timestamp":      event.Timestamp,
		"correlation_id": event.CorrelationID,
		"description":    event.Description,
		"data":           event.Data,
		"initiator":      event.Initiator,
		"target":         event.Target,
		"result":         event.Result,
		"duration_ms":    event.DurationMs,
		"error_message":  event.ErrorMessage,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// LogPlatformApiCall is the dedicated entry point handlers use to audit
// platform-API calls.
func (s *AuditLog) LogPlatformApiCall(ctx context.Context, operation string, duration time.Duration, success bool, errMsg string) error {
	result := "success"
	if !success {
		result = "failure"
	}
	durationMs := duration.Milliseconds()
	return s.Record(ctx, &models.AuditEvent{
		Kind:         models.AuditPlatformApiCall,
		Description:  operation,
		Target:       operation,
		Result:       result,
		DurationMs:   &durationMs,
		ErrorMessage: errMsg,
	})
}

// List returns events recorded at or after since, most recent first.
func (s *AuditLog) List(ctx context.Context, since time.Time, skip, take int) ([]*models.AuditEvent, error) {
	if take <= 0 {
		take = 100
	}
	sql := `SELECT kind, timestamp, correlation_id, description, data, initiator, target,
		result, duration_ms, error_message FROM audit_event
		WHERE timestamp >= $since ORDER BY timestamp DESC LIMIT $limit START $skip`
	vars := map[string]any{"since": since, "limit": take, "skip": skip}

	results, err := surrealdb.Query[[]models.AuditEvent](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	var events []*models.AuditEvent
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			events = append(events, &(*results)[0].Result[i])
		}
	}
	return events, nil
}

// DeleteOlderThan deletes records older than cutoff, returning the count
// removed.
func (s *AuditLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	countSQL := "SELECT count() AS cnt FROM audit_event WHERE timestamp < $cutoff GROUP ALL"
	vars := map[string]any{"cutoff": cutoff}

	type countResult struct {
		Cnt int `json:"cnt"`
	}
	countResults, err := surrealdb.Query[[]countResult](ctx, s.db, countSQL, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale audit events: %w", err)
	}
	removed := 0
	if countResults != nil && len(*countResults) > 0 && len((*countResults)[0].Result) > 0 {
		removed = (*countResults)[0].Result[0].Cnt
	}

	deleteSQL := "DELETE FROM audit_event WHERE timestamp < $cutoff"
	if _, err := surrealdb.Query[any](ctx, s.db, deleteSQL, vars); err != nil {
		return 0, fmt.Errorf("failed to delete stale audit events: %w", err)
	}
	return removed, nil
}
