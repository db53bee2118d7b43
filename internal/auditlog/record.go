package auditlog

import "time"

const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeUnresolved = "unresolved"
)

// AuditEntry represents one recorded façade operation.
type AuditEntry struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Route        string    `json:"route"`
	Request      string    `json:"request,omitempty"`
	Cloud        string    `json:"cloud,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceName string    `json:"resource_name,omitempty"`
	Status       int       `json:"status"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}
