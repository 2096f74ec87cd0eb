package lifecycle

import (
	"context"
	"errors"
	"slices"

	"forum-keeper/models"

	"go.uber.org/zap"
)

// ThreadEvent is a thread created under some forum channel.
type ThreadEvent struct {
	ThreadID string
	GuildID  string
	ForumID  string
	OwnerID  string
}

// MessageEvent is a message posted by a non-bot author.
type MessageEvent struct {
	ThreadID  string
	GuildID   string
	AuthorID  string
	MessageID string
}

// ThreadCreated starts tracking a new forum thread, tags it unanswered and greets the owner.
// A row left by the startup backfill is preserved.
func (e *Engine) ThreadCreated(ctx context.Context, ev ThreadEvent) error {
	g, err := e.guildSettings(ctx, ev.GuildID)
	if err != nil {
		return err
	}
	if ev.ForumID != g.ForumChannelID {
		return ErrNotForumThread
	}

	unlock := e.locks.Lock(ev.ThreadID)
	defer unlock()

	if _, err := e.registry.InsertTrackedThread(ctx, ev.ThreadID, ev.GuildID, e.now()); err != nil {
		return err
	}

	t := target{guildID: ev.GuildID, threadID: ev.ThreadID}
	if g.UnansweredTag != "" {
		if th, err := e.fetchThread(ctx, t); err == nil && !th.HasTag(g.UnansweredTag) && len(th.AppliedTags) < maxAppliedTags {
			tags := append(slices.Clone(th.AppliedTags), g.UnansweredTag)
			_ = e.attempt(ctx, "set_tags", t, func(ctx context.Context) error {
				return e.gw.SetTags(ctx, ev.ThreadID, tags)
			})
		}
	}

	_ = e.attempt(ctx, "send_welcome", t, func(ctx context.Context) error {
		return e.gw.SendMessage(ctx, ev.ThreadID, welcomeMessage(ev.OwnerID))
	})

	e.record(ctx, models.AuditEntry{
		GuildID:  ev.GuildID,
		ThreadID: ev.ThreadID,
		ActorID:  ev.OwnerID,
		Action:   models.ActionGreet,
		Details:  "new forum thread",
	})
	return nil
}

// MessagePosted reacts to a reply in a forum thread. A non-owner reply clears the
// unanswered tag; an owner reply renews the stale clock.
func (e *Engine) MessagePosted(ctx context.Context, ev MessageEvent) error {
	g, err := e.guildSettings(ctx, ev.GuildID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(ev.ThreadID)
	defer unlock()

	// Fetched under the lock so concurrent replies see each other's tag edits.
	th, err := e.forumThread(ctx, g, ev.ThreadID)
	if err != nil {
		return err
	}

	if ev.AuthorID == th.OwnerID {
		row, err := e.registry.TrackedThread(ctx, ev.ThreadID)
		if err != nil || row == nil {
			return err
		}
		return e.renew(ctx, row, models.AuditEntry{
			GuildID:   ev.GuildID,
			ThreadID:  ev.ThreadID,
			MessageID: ev.MessageID,
			ActorID:   ev.AuthorID,
			Details:   "owner replied",
		})
	}

	if g.UnansweredTag == "" || !th.HasTag(g.UnansweredTag) {
		return nil
	}
	t := target{guildID: ev.GuildID, threadID: ev.ThreadID}
	if err := e.attempt(ctx, "set_tags", t, func(ctx context.Context) error {
		return e.gw.SetTags(ctx, ev.ThreadID, withoutTag(th.AppliedTags, g.UnansweredTag))
	}); err != nil {
		return nil
	}
	e.record(ctx, models.AuditEntry{
		GuildID:   ev.GuildID,
		ThreadID:  ev.ThreadID,
		MessageID: ev.MessageID,
		ActorID:   ev.AuthorID,
		Action:    models.ActionAnswered,
		Details:   "first reply from someone other than the owner",
	})
	return nil
}

// renew clears the warning flag and restarts both stale windows from now.
// The thread lock must be held. entry is recorded only if the thread had been warned.
func (e *Engine) renew(ctx context.Context, row *models.TrackedThread, entry models.AuditEntry) error {
	now := e.now()
	if _, err := e.registry.SetStaleWarningSent(ctx, row.ThreadID, false, &now); err != nil {
		return err
	}
	if !row.StaleWarningSent {
		return nil
	}
	e.log.Info("stale warning withdrawn",
		zap.String("guild_id", row.GuildID),
		zap.String("thread_id", row.ThreadID),
		zap.String("actor_id", entry.ActorID),
	)
	entry.Action = models.ActionThreadRenewed
	e.record(ctx, entry)
	return nil
}

// ThreadDeleted forgets every row kept for a deleted thread.
// It needs no settings: rows of a guild that was unconfigured later are dropped too.
func (e *Engine) ThreadDeleted(ctx context.Context, guildID, threadID string) error {
	unlock := e.locks.Lock(threadID)
	defer unlock()

	lockRemoved, err := e.registry.DeletePendingLock(ctx, threadID)
	if err != nil {
		return err
	}
	if err := e.registry.DeleteTrackedThread(ctx, threadID); err != nil {
		return err
	}
	linkRemoved, err := e.registry.DeleteThreadLink(ctx, threadID)
	if err != nil {
		return err
	}
	e.log.Info("thread deleted, rows dropped",
		zap.String("guild_id", guildID),
		zap.String("thread_id", threadID),
		zap.Bool("pending_lock", lockRemoved),
		zap.Bool("link", linkRemoved),
	)
	return nil
}

// IsSkippable reports whether an event error only means "not ours to handle".
func IsSkippable(err error) bool {
	return errors.Is(err, ErrGuildNotConfigured) || errors.Is(err, ErrNotForumThread)
}
