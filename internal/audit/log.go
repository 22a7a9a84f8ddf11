// Package audit implements AuditLog: an append-only event recorder with a
// typed event kind and structured payload, additionally emitting each event
// through the configured Logger tagged "AUDIT" (spec §6's "structured log
// entry tagged AUDIT"), grounded on the teacher's arbor-based structured
// logging idiom (internal/common/logging.go).
package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Log is the in-memory AuditLog implementation, additionally mirroring every
// record into structured logs.
type Log struct {
	mu     sync.RWMutex
	events []*models.AuditEvent
	logger *common.Logger
	clock  common.Clock
}

var _ interfaces.AuditLog = (*Log)(nil)

// NewLog returns an empty Log that mirrors records through logger.
func NewLog(logger *common.Logger, clock common.Clock) *Log {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	return &Log{logger: logger, clock: clock}
}

// Record appends event to the log and mirrors it through the logger at
// "AUDIT" tag. Kind and Description are stored as given; Record does not
// reject an event with either one empty.
func (l *Log) Record(_ context.Context, event *models.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now()
	}

	l.mu.Lock()
	copied := *event
	l.events = append(l.events, &copied)
	l.mu.Unlock()

	entry := l.logger.Info().
		Str("tag", "AUDIT").
		Str("kind", string(event.Kind)).
		Str("correlation_id", event.CorrelationID).
		Str("description", event.Description)
	if event.ErrorMessage != "" {
		entry = entry.Str("error", event.ErrorMessage)
	}
	entry.Msg(event.Description)

	return nil
}

// LogPlatformApiCall is the dedicated entry point handlers use to audit a
// platform-API call (spec §6).
func (l *Log) LogPlatformApiCall(ctx context.Context, operation string, duration time.Duration, success bool, errMsg string) error {
	result := "success"
	if !success {
		result = "failure"
	}
	durMs := duration.Milliseconds()
	return l.Record(ctx, &models.AuditEvent{
		Kind:          models.AuditPlatformApiCall,
		CorrelationID: common.CorrelationIDFromContext(ctx),
		Description:   "platform API call: " + operation,
		Target:        operation,
		Result:        result,
		DurationMs:    &durMs,
		ErrorMessage:  errMsg,
	})
}

// List returns events recorded at or after since, most recent first, paged.
func (l *Log) List(_ context.Context, since time.Time, skip, take int) ([]*models.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []*models.AuditEvent
	for _, e := range l.events {
		if e.Timestamp.Before(since) {
			continue
		}
		copied := *e
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) {
		return []*models.AuditEvent{}, nil
	}
	end := len(matched)
	if take > 0 && skip+take < end {
		end = skip + take
	}
	return matched[skip:end], nil
}

// DeleteOlderThan deletes records older than cutoff, returning the count
// removed. Used by the RetentionCleaner.
func (l *Log) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[:0]
	removed := 0
	for _, e := range l.events {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.events = kept
	return removed, nil
}
