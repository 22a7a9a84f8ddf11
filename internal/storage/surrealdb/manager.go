// Package surrealdb implements the persistent, multi-process-safe
// JobStatusStore, TaskStore and AuditLog backends on SurrealDB, for
// deployments that need state to survive a process restart instead of the
// default in-memory stores (internal/jobstatus, internal/taskstore,
// internal/audit). Grounded directly on the teacher's SurrealDB storage
// layer (internal/storage/surrealdb/{manager,jobqueue,internalstore}.go):
// same connect/sign-in/use-namespace bootstrap, same UPSERT-by-record-id
// write pattern, same surrealdb.Query[T] read pattern.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
)

// Manager owns the SurrealDB connection shared by JobStatusStore,
// TaskStore and AuditLog.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// Connect opens a SurrealDB connection per cfg, signs in, selects the
// namespace/database, and ensures the tables this package writes to exist.
func Connect(cfg *common.StorageConfig, logger *common.Logger) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	tables := []string{"job_status", "task", "audit_event"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	return &Manager{db: db, logger: logger}, nil
}

// JobStatusStore returns a JobStatusStore backed by this connection.
func (m *Manager) JobStatusStore() *JobStatusStore {
	return &JobStatusStore{db: m.db, logger: m.logger}
}

// TaskStore returns a TaskStore backed by this connection.
func (m *Manager) TaskStore() *TaskStore {
	return &TaskStore{db: m.db, logger: m.logger}
}

// AuditLog returns an AuditLog backed by this connection.
func (m *Manager) AuditLog() *AuditLog {
	return &AuditLog{db: m.db, logger: m.logger}
}

// Close releases the underlying SurrealDB connection.
func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}
