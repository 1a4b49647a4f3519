// Package domain defines the audit log entry shape.
package domain

import "time"

// Result values recorded on an audit entry.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuditLog is one structured audit event: who did what action on which
// resource, and how it ended.
type AuditLog struct {
	ID        string
	ActorID   string
	Action    string
	Resource  string
	Result    string
	Metadata  string
	CreatedAt time.Time
}
