// Package audit persists the append-only trail of lifecycle actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"forum-keeper/models"

	"go.uber.org/zap"
)

// Store is where audit rows are appended.
type Store interface {
	InsertAuditEntry(ctx context.Context, e models.AuditEntry) error
}

// Mirror receives a copy of every entry at its severity, typically the admin channel.
// Implementations must not block.
type Mirror interface {
	Info(module, operation, details string)
	Warn(module, operation, details string)
	Error(module, operation, details string)
}

// Recorder writes audit entries to the store, the log and an optional mirror.
// Recording is fire-and-forget: failures are logged, never returned.
type Recorder struct {
	store  Store
	mirror Mirror
	log    *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder. mirror may be nil.
func NewRecorder(store Store, mirror Mirror, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, mirror: mirror, log: logger, now: time.Now}
}

// Record appends e to the audit trail.
func (r *Recorder) Record(ctx context.Context, e models.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	fields := []zap.Field{
		zap.String("action", string(e.Action)),
		zap.String("guild_id", e.GuildID),
	}
	if e.ThreadID != "" {
		fields = append(fields, zap.String("thread_id", e.ThreadID))
	}
	if e.ActorID != "" {
		fields = append(fields, zap.String("actor_id", e.ActorID))
	}
	if e.Details != "" {
		fields = append(fields, zap.String("details", e.Details))
	}
	r.log.Info("audit", fields...)

	// Audit rows outlive the request that produced them.
	if err := r.store.InsertAuditEntry(context.WithoutCancel(ctx), e); err != nil {
		r.log.Error("failed to write audit entry", append(fields, zap.Error(err))...)
	}

	if r.mirror != nil {
		r.mirrorEntry(e)
	}
}

func (r *Recorder) mirrorEntry(e models.AuditEntry) {
	op, details := string(e.Action), summary(e)
	switch e.Action {
	case models.ActionError:
		r.mirror.Error("lifecycle", op, details)
	case models.ActionDenied, models.ActionStaleWarning, models.ActionAutoClose:
		r.mirror.Warn("lifecycle", op, details)
	default:
		r.mirror.Info("lifecycle", op, details)
	}
}

func summary(e models.AuditEntry) string {
	s := fmt.Sprintf("guild: %s", e.GuildID)
	if e.ThreadID != "" {
		s += fmt.Sprintf("\nthread: <#%s>", e.ThreadID)
	}
	if e.ActorID != "" {
		s += fmt.Sprintf("\nby: <@%s>", e.ActorID)
	}
	if e.CommandText != "" {
		s += "\ncommand: " + e.CommandText
	}
	if e.Details != "" {
		s += "\n" + e.Details
	}
	return s
}
