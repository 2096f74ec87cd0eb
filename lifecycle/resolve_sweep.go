package lifecycle

import (
	"context"
	"errors"
	"time"

	"forum-keeper/models"
	"forum-keeper/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// maxAppliedTags is Discord's limit of tags on one forum thread.
const maxAppliedTags = 5

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	PassID  string
	Locked  int // resolve locks applied
	Warned  int
	Closed  int
	Removed int // rows finalized without an action
	Skipped int // rows left in place (unconfigured guild, cancelled, renewed)
	Failed  int // rows whose gateway action failed
}

// RunLockSweep fires every PendingLock whose fire time has arrived.
// A row is deleted after its attempt whether or not the gateway calls succeed.
// Only registry failures abort the pass.
func (e *Engine) RunLockSweep(ctx context.Context) (SweepReport, error) {
	start := e.now()
	rep := SweepReport{PassID: uuid.NewString()}
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "lifecycle.lock_sweep", telemetry.AttrPassID.String(rep.PassID))
	defer span.End()
	defer e.observeSweep(ctx, "lock", start)

	due, err := e.registry.DuePendingLocks(ctx, start)
	if err != nil {
		span.RecordError(err)
		return rep, err
	}
	span.SetAttributes(telemetry.AttrRows.Int(len(due)))

	for _, row := range due {
		if err := e.fireLock(ctx, row, &rep); err != nil {
			e.log.Error("lock sweep aborted on registry failure",
				zap.String("pass_id", rep.PassID),
				zap.String("thread_id", row.ThreadID),
				zap.Error(err),
			)
			span.RecordError(err)
			return rep, err
		}
	}

	if len(due) > 0 {
		e.log.Info("lock sweep finished",
			zap.String("pass_id", rep.PassID),
			zap.Int("due", len(due)),
			zap.Int("locked", rep.Locked),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed),
		)
	}
	return rep, nil
}

func (e *Engine) fireLock(ctx context.Context, row models.PendingLock, rep *SweepReport) error {
	unlock := e.locks.Lock(row.ThreadID)
	defer unlock()

	// Re-read under the thread lock: a cancel or a newer /resolved may have committed first.
	current, err := e.registry.PendingLock(ctx, row.ThreadID)
	if err != nil {
		return err
	}
	now := e.now()
	if current == nil || current.FireAt.After(now) {
		rep.Skipped++
		return nil
	}

	g, err := e.guildSettings(ctx, current.GuildID)
	if errors.Is(err, ErrGuildNotConfigured) {
		e.log.Warn("pending lock for unconfigured guild left in place",
			zap.String("pass_id", rep.PassID),
			zap.String("guild_id", current.GuildID),
			zap.String("thread_id", current.ThreadID),
		)
		e.metrics.RowsSkipped.Add(ctx, 1, metric.WithAttributes(telemetry.AttrGuildID.String(current.GuildID)))
		rep.Skipped++
		return nil
	}
	if err != nil {
		return err
	}

	if e.applyResolvedLock(ctx, g, current) {
		rep.Locked++
		telemetry.Inc(ctx, e.metrics.LocksFired, "resolve")
		if err := e.registry.DeleteTrackedThread(ctx, current.ThreadID); err != nil {
			return err
		}
	} else {
		rep.Failed++
	}

	_, err = e.registry.DeletePendingLock(ctx, current.ThreadID)
	return err
}

// applyResolvedLock tags, locks and notifies. It reports whether the lock itself took effect.
func (e *Engine) applyResolvedLock(ctx context.Context, g *models.GuildSettings, row *models.PendingLock) bool {
	t := target{guildID: row.GuildID, threadID: row.ThreadID}

	th, err := e.fetchThread(ctx, t)
	if err != nil {
		return false
	}

	tagErr := e.attempt(ctx, "set_tags", t, func(ctx context.Context) error {
		return e.gw.SetTags(ctx, row.ThreadID, resolvedTags(th.AppliedTags, g))
	})
	lockErr := e.attempt(ctx, "set_locked", t, func(ctx context.Context) error {
		return e.gw.SetLocked(ctx, row.ThreadID, true)
	})
	if lockErr != nil {
		return false
	}
	_ = e.attempt(ctx, "send_resolved", t, func(ctx context.Context) error {
		return e.gw.SendMessage(ctx, row.ThreadID, resolvedMessage())
	})

	details := "thread tagged resolved and locked"
	if tagErr != nil {
		details = "thread locked; resolved tag could not be applied"
	}
	e.record(ctx, models.AuditEntry{
		GuildID:  row.GuildID,
		ThreadID: row.ThreadID,
		Action:   models.ActionLock,
		Details:  details,
	})
	return true
}

// resolvedTags drops the unanswered tag and puts the resolved tag first, within Discord's tag limit.
func resolvedTags(existing []string, g *models.GuildSettings) []string {
	tags := []string{g.ResolvedTagID}
	for _, id := range existing {
		if id == g.ResolvedTagID || (g.UnansweredTag != "" && id == g.UnansweredTag) {
			continue
		}
		tags = append(tags, id)
	}
	if len(tags) > maxAppliedTags {
		tags = tags[:maxAppliedTags]
	}
	return tags
}

func withoutTag(existing []string, tag string) []string {
	out := make([]string, 0, len(existing))
	for _, id := range existing {
		if id != tag {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) observeSweep(ctx context.Context, kind string, start time.Time) {
	e.metrics.SweepDuration.Record(ctx, e.now().Sub(start).Seconds(),
		metric.WithAttributes(telemetry.AttrSweep.String(kind)))
}
