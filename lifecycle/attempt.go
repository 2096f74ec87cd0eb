package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"forum-keeper/gateway"
	"forum-keeper/models"
	"forum-keeper/telemetry"

	"go.uber.org/zap"
)

// target identifies the thread a gateway call acts on.
type target struct {
	guildID  string
	threadID string
}

// attempt runs one gateway action under the gateway timeout.
// Every failure path (error, timeout, panic) is logged, counted and audited
// the same way and returned to the caller, which decides how to finalize its row.
// A missing thread is logged but not audited as an error.
func (e *Engine) attempt(ctx context.Context, op string, t target, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
			e.log.Error("gateway call panicked",
				zap.String("op", op),
				zap.String("thread_id", t.threadID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		if err == nil {
			return
		}
		telemetry.Inc(ctx, e.metrics.GatewayFailures, op)
		if errors.Is(err, gateway.ErrThreadNotFound) {
			e.log.Info("thread no longer exists",
				zap.String("op", op),
				zap.String("guild_id", t.guildID),
				zap.String("thread_id", t.threadID),
			)
			return
		}
		e.log.Warn("gateway call failed",
			zap.String("op", op),
			zap.String("guild_id", t.guildID),
			zap.String("thread_id", t.threadID),
			zap.Error(err),
		)
		e.record(context.WithoutCancel(ctx), models.AuditEntry{
			GuildID:  t.guildID,
			ThreadID: t.threadID,
			Action:   models.ActionError,
			Details:  fmt.Sprintf("%s: %v", op, err),
		})
	}()

	return fn(ctx)
}

// fetchThread loads a thread through attempt.
func (e *Engine) fetchThread(ctx context.Context, t target) (*gateway.Thread, error) {
	var th *gateway.Thread
	err := e.attempt(ctx, "fetch_thread", t, func(ctx context.Context) error {
		var err error
		th, err = e.gw.FetchThread(ctx, t.threadID)
		return err
	})
	return th, err
}

// forumThread fetches a thread and checks that it lives under the guild's forum.
func (e *Engine) forumThread(ctx context.Context, g *models.GuildSettings, threadID string) (*gateway.Thread, error) {
	th, err := e.fetchThread(ctx, target{guildID: g.GuildID, threadID: threadID})
	if errors.Is(err, gateway.ErrThreadNotFound) {
		return nil, ErrNotForumThread
	}
	if err != nil {
		return nil, err
	}
	if th.ParentID != g.ForumChannelID {
		return nil, ErrNotForumThread
	}
	return th, nil
}
