package lifecycle

import (
	"context"
	"fmt"
	"net/url"

	"forum-keeper/models"
)

// SetLink attaches rawURL to a forum thread, replacing any previous link.
func (e *Engine) SetLink(ctx context.Context, guildID, threadID, rawURL string, actor Actor) (*models.ThreadLink, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLink, rawURL)
	}
	g, err := e.guildSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if _, err := e.forumThread(ctx, g, threadID); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	l := models.ThreadLink{
		ThreadID:  threadID,
		GuildID:   guildID,
		URL:       u.String(),
		CreatorID: actor.ID,
		CreatedAt: e.now().UTC(),
	}
	if err := e.registry.SetThreadLink(ctx, l); err != nil {
		return nil, err
	}
	e.record(ctx, actor.entry(guildID, threadID, models.ActionLinkSet, l.URL))
	return &l, nil
}

// Link returns the thread's link or ErrNoLink.
func (e *Engine) Link(ctx context.Context, threadID string) (*models.ThreadLink, error) {
	l, err := e.registry.ThreadLink(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNoLink
	}
	return l, nil
}

// RemoveLink deletes the thread's link, returning ErrNoLink when there was none.
func (e *Engine) RemoveLink(ctx context.Context, guildID, threadID string, actor Actor) error {
	if _, err := e.guildSettings(ctx, guildID); err != nil {
		return err
	}

	unlock := e.locks.Lock(threadID)
	defer unlock()

	removed, err := e.registry.DeleteThreadLink(ctx, threadID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNoLink
	}
	e.record(ctx, actor.entry(guildID, threadID, models.ActionLinkRemoved, "link removed"))
	return nil
}
