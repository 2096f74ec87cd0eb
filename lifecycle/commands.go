package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forum-keeper/models"
)

// Actor is the member behind a command, carried into audit rows.
type Actor struct {
	ID          string
	Name        string
	CommandText string
}

func (a Actor) entry(guildID, threadID string, action models.AuditAction, details string) models.AuditEntry {
	return models.AuditEntry{
		GuildID:     guildID,
		ThreadID:    threadID,
		Action:      action,
		Details:     details,
		ActorID:     a.ID,
		ActorName:   a.Name,
		CommandText: a.CommandText,
	}
}

// CancelOutcome tells the caller which concern Cancel cleared.
type CancelOutcome int

const (
	// CancelledLock means a pending resolve lock was removed.
	CancelledLock CancelOutcome = iota + 1
	// RenewedThread means a stale warning was withdrawn.
	RenewedThread
)

// Resolve arms the resolve timer for a thread. A zero delay uses the configured default.
// Calling it again replaces the previous fire time. Locked threads are final and rejected.
func (e *Engine) Resolve(ctx context.Context, guildID, threadID string, delay time.Duration, actor Actor) (time.Time, error) {
	if delay == 0 {
		delay = e.cfg.ResolveDelay
	}
	if delay < 0 || delay > e.cfg.MaxResolveDelay {
		return time.Time{}, fmt.Errorf("%w: %s (max %s)", ErrInvalidDelay, delay, e.cfg.MaxResolveDelay)
	}
	g, err := e.guildSettings(ctx, guildID)
	if err != nil {
		return time.Time{}, err
	}
	th, err := e.forumThread(ctx, g, threadID)
	if err != nil {
		return time.Time{}, err
	}
	if th.Locked {
		return time.Time{}, ErrThreadLocked
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	fireAt := e.now().Add(delay)
	if err := e.registry.UpsertPendingLock(ctx, threadID, guildID, fireAt); err != nil {
		return time.Time{}, err
	}
	e.record(ctx, actor.entry(guildID, threadID, models.ActionResolved,
		fmt.Sprintf("lock scheduled in %s", delay)))
	return fireAt, nil
}

// Cancel removes a pending lock, or failing that withdraws a stale warning.
// It returns ErrNothingToCancel when neither exists.
func (e *Engine) Cancel(ctx context.Context, guildID, threadID string, actor Actor) (CancelOutcome, error) {
	if _, err := e.guildSettings(ctx, guildID); err != nil {
		return 0, err
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	removed, err := e.registry.DeletePendingLock(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if removed {
		e.record(ctx, actor.entry(guildID, threadID, models.ActionCancel, "pending lock cancelled"))
		return CancelledLock, nil
	}

	row, err := e.registry.TrackedThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if row == nil || !row.StaleWarningSent {
		return 0, ErrNothingToCancel
	}
	if err := e.renew(ctx, row, actor.entry(guildID, threadID, models.ActionThreadRenewed, "stale warning withdrawn")); err != nil {
		return 0, err
	}
	return RenewedThread, nil
}

// KeepOpen answers the stale warning button: the thread's stale clock restarts
// from now and any warning is withdrawn. A pending resolve lock is left alone;
// /cancel is the way to withdraw that. It returns ErrNothingToCancel for an untracked thread.
func (e *Engine) KeepOpen(ctx context.Context, guildID, threadID string, actor Actor) error {
	if _, err := e.guildSettings(ctx, guildID); err != nil {
		return err
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	row, err := e.registry.TrackedThread(ctx, threadID)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNothingToCancel
	}
	return e.renew(ctx, row, actor.entry(guildID, threadID, models.ActionThreadRenewed, "kept open from the stale warning"))
}

// Duplicate closes a thread immediately as a duplicate of originalLink:
// its tags are replaced by the duplicate tag, a notice is posted and the thread is locked.
// Any pending resolve lock is dropped since the thread is already closed.
func (e *Engine) Duplicate(ctx context.Context, guildID, threadID, originalLink string, actor Actor) error {
	g, err := e.guildSettings(ctx, guildID)
	if err != nil {
		return err
	}
	if _, err := e.forumThread(ctx, g, threadID); err != nil {
		return err
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	t := target{guildID: guildID, threadID: threadID}
	tagErr := e.attempt(ctx, "set_tags", t, func(ctx context.Context) error {
		return e.gw.SetTags(ctx, threadID, []string{g.DuplicateTagID})
	})
	_ = e.attempt(ctx, "send_duplicate", t, func(ctx context.Context) error {
		return e.gw.SendMessage(ctx, threadID, duplicateMessage(originalLink))
	})
	lockErr := e.attempt(ctx, "set_locked", t, func(ctx context.Context) error {
		return e.gw.SetLocked(ctx, threadID, true)
	})
	if err := errors.Join(tagErr, lockErr); err != nil {
		return fmt.Errorf("mark thread %s duplicate: %w", threadID, err)
	}

	if _, err := e.registry.DeletePendingLock(ctx, threadID); err != nil {
		return err
	}
	e.record(ctx, actor.entry(guildID, threadID, models.ActionDuplicate, "duplicate of "+originalLink))
	return nil
}

// SaveSettings writes a guild's settings wholesale.
func (e *Engine) SaveSettings(ctx context.Context, g models.GuildSettings, actor Actor) error {
	if !g.Valid() {
		return ErrInvalidSettings
	}
	if err := e.settings.SaveSettings(ctx, g); err != nil {
		return err
	}
	e.record(ctx, actor.entry(g.GuildID, "", models.ActionSetup,
		fmt.Sprintf("forum=%s resolved=%s duplicate=%s unanswered=%s helpers=%d",
			g.ForumChannelID, g.ResolvedTagID, g.DuplicateTagID, g.UnansweredTag, len(g.HelperRoleIDs))))
	return nil
}

// Settings returns the settings of a guild or ErrGuildNotConfigured.
func (e *Engine) Settings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	return e.guildSettings(ctx, guildID)
}
