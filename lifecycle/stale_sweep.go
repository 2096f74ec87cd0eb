package lifecycle

import (
	"context"
	"errors"

	"forum-keeper/gateway"
	"forum-keeper/models"
	"forum-keeper/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RunStaleSweep closes warned threads idle past the close window, then warns
// threads idle past the warning window. Both windows run from max(createdAt, lastRenewedAt).
// Closing runs first so a thread is never warned and closed in the same pass.
func (e *Engine) RunStaleSweep(ctx context.Context) (SweepReport, error) {
	start := e.now()
	rep := SweepReport{PassID: uuid.NewString()}
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "lifecycle.stale_sweep", telemetry.AttrPassID.String(rep.PassID))
	defer span.End()
	defer e.observeSweep(ctx, "stale", start)

	closing, err := e.registry.ThreadsNeedingClose(ctx, start, e.cfg.CloseWindow)
	if err != nil {
		span.RecordError(err)
		return rep, err
	}
	for _, row := range closing {
		if err := e.closeStale(ctx, row.ThreadID, &rep); err != nil {
			span.RecordError(err)
			return rep, err
		}
	}

	warning, err := e.registry.ThreadsNeedingWarning(ctx, start, e.cfg.WarningWindow)
	if err != nil {
		span.RecordError(err)
		return rep, err
	}
	for _, row := range warning {
		if err := e.warnStale(ctx, row.ThreadID, &rep); err != nil {
			span.RecordError(err)
			return rep, err
		}
	}

	span.SetAttributes(telemetry.AttrRows.Int(len(closing) + len(warning)))
	e.log.Info("stale sweep finished",
		zap.String("pass_id", rep.PassID),
		zap.Int("warned", rep.Warned),
		zap.Int("closed", rep.Closed),
		zap.Int("removed", rep.Removed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

// closeStale locks one warned thread. The row is deleted whatever the gateway outcome,
// except for an archived thread, which stays tracked until it is unarchived.
func (e *Engine) closeStale(ctx context.Context, threadID string, rep *SweepReport) error {
	unlock := e.locks.Lock(threadID)
	defer unlock()

	row, err := e.registry.TrackedThread(ctx, threadID)
	if err != nil {
		return err
	}
	now := e.now()
	if row == nil || !row.StaleWarningSent || now.Sub(row.LastActivity()) < e.cfg.CloseWindow {
		rep.Skipped++
		return nil
	}

	g, err := e.guildSettings(ctx, row.GuildID)
	if errors.Is(err, ErrGuildNotConfigured) {
		e.skipUnconfigured(ctx, rep, row)
		return nil
	}
	if err != nil {
		return err
	}

	t := target{guildID: g.GuildID, threadID: threadID}
	th, err := e.fetchThread(ctx, t)
	switch {
	case errors.Is(err, gateway.ErrThreadNotFound):
		rep.Removed++
	case err != nil:
		rep.Failed++
	case th.Locked:
		rep.Removed++
	case th.Archived:
		// 归档不是关闭：任何新消息都会解除归档，保留记录等下一轮
		rep.Skipped++
		return nil
	default:
		lockErr := e.attempt(ctx, "set_locked", t, func(ctx context.Context) error {
			return e.gw.SetLocked(ctx, threadID, true)
		})
		if lockErr != nil {
			rep.Failed++
			break
		}
		_ = e.attempt(ctx, "send_auto_close", t, func(ctx context.Context) error {
			return e.gw.SendMessage(ctx, threadID, autoCloseMessage())
		})
		rep.Closed++
		telemetry.Inc(ctx, e.metrics.AutoCloses, "stale")
		e.record(ctx, models.AuditEntry{
			GuildID:  g.GuildID,
			ThreadID: threadID,
			Action:   models.ActionAutoClose,
			Details:  "closed after " + humanDays(now.Sub(row.LastActivity())) + " of inactivity",
		})
	}

	return e.registry.DeleteTrackedThread(ctx, threadID)
}

// warnStale sends the inactivity warning to one thread.
// A failed send leaves the row unwarned so the next pass retries it.
func (e *Engine) warnStale(ctx context.Context, threadID string, rep *SweepReport) error {
	unlock := e.locks.Lock(threadID)
	defer unlock()

	row, err := e.registry.TrackedThread(ctx, threadID)
	if err != nil {
		return err
	}
	now := e.now()
	if row == nil || row.StaleWarningSent || now.Sub(row.LastActivity()) < e.cfg.WarningWindow {
		rep.Skipped++
		return nil
	}

	g, err := e.guildSettings(ctx, row.GuildID)
	if errors.Is(err, ErrGuildNotConfigured) {
		e.skipUnconfigured(ctx, rep, row)
		return nil
	}
	if err != nil {
		return err
	}

	t := target{guildID: g.GuildID, threadID: threadID}
	th, err := e.fetchThread(ctx, t)
	if errors.Is(err, gateway.ErrThreadNotFound) {
		rep.Removed++
		return e.registry.DeleteTrackedThread(ctx, threadID)
	}
	if err != nil {
		rep.Failed++
		return nil
	}
	if th.Locked || th.HasTag(g.ResolvedTagID) || th.HasTag(g.DuplicateTagID) {
		rep.Removed++
		return e.registry.DeleteTrackedThread(ctx, threadID)
	}
	if th.Archived {
		// 归档的帖子不提醒，记录保留到解除归档
		rep.Skipped++
		return nil
	}

	closeIn := e.cfg.CloseWindow - e.cfg.WarningWindow
	sendErr := e.attempt(ctx, "send_stale_warning", t, func(ctx context.Context) error {
		return e.gw.SendMessage(ctx, threadID, staleWarningMessage(th.OwnerID, closeIn))
	})
	if sendErr != nil {
		rep.Failed++
		return nil
	}

	// Anchor the close countdown at the warning so a late warning still leaves the owner the full grace period.
	anchor := now.Add(-e.cfg.WarningWindow)
	if _, err := e.registry.SetStaleWarningSent(ctx, threadID, true, &anchor); err != nil {
		return err
	}
	rep.Warned++
	telemetry.Inc(ctx, e.metrics.StaleWarnings, "stale")
	e.record(ctx, models.AuditEntry{
		GuildID:  g.GuildID,
		ThreadID: threadID,
		ActorID:  th.OwnerID,
		Action:   models.ActionStaleWarning,
		Details:  "inactive for " + humanDays(now.Sub(row.LastActivity())) + "; closes in " + humanDays(closeIn),
	})
	return nil
}

func (e *Engine) skipUnconfigured(ctx context.Context, rep *SweepReport, row *models.TrackedThread) {
	e.log.Warn("tracked thread for unconfigured guild left in place",
		zap.String("pass_id", rep.PassID),
		zap.String("guild_id", row.GuildID),
		zap.String("thread_id", row.ThreadID),
	)
	e.metrics.RowsSkipped.Add(ctx, 1, metric.WithAttributes(telemetry.AttrGuildID.String(row.GuildID)))
	rep.Skipped++
}
