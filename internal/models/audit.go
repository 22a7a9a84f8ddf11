package models

import "time"

// AuditEventKind tags the kind of event recorded in the append-only audit log.
type AuditEventKind string

const (
	AuditWebhookReceived   AuditEventKind = "WebhookReceived"
	AuditWebhookValidation AuditEventKind = "WebhookValidation"
	AuditTaskStateTransition AuditEventKind = "TaskStateTransition"
	AuditPlatformApiCall   AuditEventKind = "PlatformApiCall"
	AuditJobStateTransition AuditEventKind = "JobStateTransition"
	AuditContainerOperation AuditEventKind = "ContainerOperation"
	AuditFileOperation     AuditEventKind = "FileOperation"
	AuditPlanGeneration    AuditEventKind = "PlanGeneration"
	AuditPlanExecution     AuditEventKind = "PlanExecution"
	AuditRetentionCleanup  AuditEventKind = "RetentionCleanup"
)

// AuditEvent is one append-only audit log record. The Kind and Description
// fields must both be present and machine-searchable; the exact text of the
// rest is not load-bearing (spec §6).
type AuditEvent struct {
	Kind          AuditEventKind         `json:"kind"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Description   string                 `json:"description"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Initiator     string                 `json:"initiator,omitempty"`
	Target        string                 `json:"target,omitempty"`
	Result        string                 `json:"result,omitempty"`
	DurationMs    *int64                 `json:"duration_ms,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
}
