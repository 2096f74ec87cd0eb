package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"forum-keeper/models"
)

// SetThreadLink stores the link of a thread, replacing any previous one.
func (s *Store) SetThreadLink(ctx context.Context, l models.ThreadLink) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT OR REPLACE INTO thread_links (thread_id, guild_id, url, creator_id, created_at)
    VALUES (?, ?, ?, ?, ?)`, l.ThreadID, l.GuildID, l.URL, l.CreatorID, unix(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save link for thread %s: %w", l.ThreadID, err)
	}
	return nil
}

// ThreadLink returns the link of a thread, or nil.
func (s *Store) ThreadLink(ctx context.Context, threadID string) (*models.ThreadLink, error) {
	var l models.ThreadLink
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, guild_id, url, creator_id, created_at FROM thread_links WHERE thread_id = ?`, threadID,
	).Scan(&l.ThreadID, &l.GuildID, &l.URL, &l.CreatorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link for thread %s: %w", threadID, err)
	}
	l.CreatedAt = fromUnix(createdAt)
	return &l, nil
}

// DeleteThreadLink removes the link of a thread and reports whether one existed.
func (s *Store) DeleteThreadLink(ctx context.Context, threadID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM thread_links WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to delete link for thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
