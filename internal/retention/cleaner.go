// Package retention implements RetentionCleaner: a periodic task an external
// scheduler invokes to prune audit records older than the configured
// retention window (spec §4.10). Grounded on the teacher's watchLoop
// scheduled-maintenance idiom (internal/services/jobmanager/watcher.go).
package retention

import (
	"context"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Cleaner deletes audit records older than a retention window.
type Cleaner struct {
	audit     interfaces.AuditLog
	clock     common.Clock
	logger    *common.Logger
	retention time.Duration
}

// New returns a Cleaner that prunes records older than retention, measured
// against clock.Now().
func New(audit interfaces.AuditLog, clock common.Clock, logger *common.Logger, retention time.Duration) *Cleaner {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Cleaner{audit: audit, clock: clock, logger: logger, retention: retention}
}

// CleanupAsync deletes audit records older than the retention window. On
// store failure the error is propagated and an error audit entry is
// recorded (spec §4.10).
func (c *Cleaner) CleanupAsync(ctx context.Context) (int, error) {
	cutoff := c.clock.Now().Add(-c.retention)
	removed, err := c.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		c.logger.Error().Str("error", err.Error()).Msg("audit retention cleanup failed")
		_ = c.audit.Record(ctx, &models.AuditEvent{
			Kind:         models.AuditRetentionCleanup,
			Description:  "retention cleanup failed",
			Result:       "failure",
			ErrorMessage: err.Error(),
		})
		return 0, err
	}
	c.logger.Info().Int("removed", removed).Msg("audit retention cleanup completed")
	return removed, nil
}
