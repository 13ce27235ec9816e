package types

import "time"

// AuditAction names what an audit record describes.
type AuditAction string

const (
	AuditAdded    AuditAction = "added"
	AuditBackup   AuditAction = "backup"
	AuditDecision AuditAction = "decision"
)

// AuditRecord is one journal line describing a change or a resolver decision.
type AuditRecord struct {
	ID      string
	Session string
	Time    time.Time
	Action  AuditAction
	File    string
	Key     string
	Value   string
	Backup  string
	Detail  string
}
