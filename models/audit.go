package models

import "time"

// AuditAction is the kind of an audit log row.
type AuditAction string

const (
	ActionGreet         AuditAction = "GREET"
	ActionAnswered      AuditAction = "ANSWERED"
	ActionResolved      AuditAction = "RESOLVED"
	ActionLock          AuditAction = "LOCK"
	ActionCancel        AuditAction = "CANCEL"
	ActionThreadRenewed AuditAction = "THREAD_RENEWED"
	ActionDuplicate     AuditAction = "DUPLICATE"
	ActionStaleWarning  AuditAction = "STALE_WARNING"
	ActionAutoClose     AuditAction = "AUTO_CLOSE"
	ActionLinkSet       AuditAction = "LINK_SET"
	ActionLinkRemoved   AuditAction = "LINK_REMOVED"
	ActionSetup         AuditAction = "SETUP"
	ActionDenied        AuditAction = "DENIED"
	ActionError         AuditAction = "ERROR"
)

// AuditEntry is one append-only row of the audit trail.
type AuditEntry struct {
	ID          int64       `db:"id"`
	GuildID     string      `db:"guild_id"`
	Action      AuditAction `db:"action"`
	Details     string      `db:"details"`
	ActorID     string      `db:"actor_id"`
	ActorName   string      `db:"actor_name"`
	CommandText string      `db:"command_text"`
	ThreadID    string      `db:"thread_id"`
	MessageID   string      `db:"message_id"`
	CreatedAt   time.Time   `db:"created_at"`
}
