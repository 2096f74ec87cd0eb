package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forum-keeper/models"
)

// UpsertPendingLock arms the resolve timer of a thread. A second call for the
// same thread overwrites the fire time (last write wins).
func (s *Store) UpsertPendingLock(ctx context.Context, threadID, guildID string, fireAt time.Time) error {
	query := `INSERT OR REPLACE INTO pending_locks (thread_id, guild_id, fire_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, threadID, guildID, unix(fireAt)); err != nil {
		return fmt.Errorf("failed to upsert pending lock for thread %s: %w", threadID, err)
	}
	return nil
}

// DeletePendingLock removes the pending lock of a thread and reports whether one existed.
func (s *Store) DeletePendingLock(ctx context.Context, threadID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_locks WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending lock for thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for thread %s: %w", threadID, err)
	}
	return n > 0, nil
}

// PendingLock returns the pending lock of a thread, or nil.
func (s *Store) PendingLock(ctx context.Context, threadID string) (*models.PendingLock, error) {
	var p models.PendingLock
	var fireAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, guild_id, fire_at FROM pending_locks WHERE thread_id = ?`, threadID,
	).Scan(&p.ThreadID, &p.GuildID, &fireAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending lock for thread %s: %w", threadID, err)
	}
	p.FireAt = fromUnix(fireAt)
	return &p, nil
}

// DuePendingLocks returns every pending lock with fire_at <= now.
func (s *Store) DuePendingLocks(ctx context.Context, now time.Time) ([]models.PendingLock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, guild_id, fire_at FROM pending_locks WHERE fire_at <= ? ORDER BY fire_at`, unix(now))
	if err != nil {
		return nil, fmt.Errorf("failed to query due pending locks: %w", err)
	}
	defer rows.Close()

	var due []models.PendingLock
	for rows.Next() {
		var p models.PendingLock
		var fireAt int64
		if err := rows.Scan(&p.ThreadID, &p.GuildID, &fireAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending lock: %w", err)
		}
		p.FireAt = fromUnix(fireAt)
		due = append(due, p)
	}
	return due, rows.Err()
}
