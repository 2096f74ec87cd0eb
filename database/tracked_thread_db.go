package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forum-keeper/models"
)

const trackedColumns = `thread_id, guild_id, created_at, stale_warning_sent, last_renewed_at`

// InsertTrackedThread starts tracking a thread. An existing row is preserved;
// the returned bool reports whether a new row was written.
func (s *Store) InsertTrackedThread(ctx context.Context, threadID, guildID string, createdAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
    INSERT OR IGNORE INTO tracked_threads (thread_id, guild_id, created_at, stale_warning_sent, last_renewed_at)
    VALUES (?, ?, ?, 0, NULL)`, threadID, guildID, unix(createdAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert tracked thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for thread %s: %w", threadID, err)
	}
	return n > 0, nil
}

// TrackedThread returns the tracking row of a thread, or nil.
func (s *Store) TrackedThread(ctx context.Context, threadID string) (*models.TrackedThread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackedColumns+` FROM tracked_threads WHERE thread_id = ?`, threadID)
	t, err := scanTracked(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked thread %s: %w", threadID, err)
	}
	return t, nil
}

// SetStaleWarningSent updates the warning flag and, when renewedAt is non-nil,
// last_renewed_at. It reports whether the thread was tracked.
func (s *Store) SetStaleWarningSent(ctx context.Context, threadID string, sent bool, renewedAt *time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if renewedAt != nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tracked_threads SET stale_warning_sent = ?, last_renewed_at = ? WHERE thread_id = ?`,
			sent, unix(*renewedAt), threadID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tracked_threads SET stale_warning_sent = ? WHERE thread_id = ?`, sent, threadID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update warning flag for thread %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for thread %s: %w", threadID, err)
	}
	return n > 0, nil
}

// ThreadsNeedingWarning returns unwarned threads idle for at least window.
func (s *Store) ThreadsNeedingWarning(ctx context.Context, now time.Time, window time.Duration) ([]models.TrackedThread, error) {
	return s.staleCandidates(ctx, false, now.Add(-window))
}

// ThreadsNeedingClose returns warned threads idle for at least window.
func (s *Store) ThreadsNeedingClose(ctx context.Context, now time.Time, window time.Duration) ([]models.TrackedThread, error) {
	return s.staleCandidates(ctx, true, now.Add(-window))
}

func (s *Store) staleCandidates(ctx context.Context, warned bool, cutoff time.Time) ([]models.TrackedThread, error) {
	c := unix(cutoff)
	rows, err := s.db.QueryContext(ctx, `
    SELECT `+trackedColumns+` FROM tracked_threads
    WHERE created_at <= ?
      AND stale_warning_sent = ?
      AND (last_renewed_at IS NULL OR last_renewed_at <= ?)
    ORDER BY created_at`, c, warned, c)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale threads: %w", err)
	}
	defer rows.Close()

	var out []models.TrackedThread
	for rows.Next() {
		t, err := scanTracked(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked thread: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTrackedThread stops tracking a thread.
func (s *Store) DeleteTrackedThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracked_threads WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete tracked thread %s: %w", threadID, err)
	}
	return nil
}

func scanTracked(r rowScanner) (*models.TrackedThread, error) {
	var (
		t         models.TrackedThread
		createdAt int64
		renewed   sql.NullInt64
	)
	if err := r.Scan(&t.ThreadID, &t.GuildID, &createdAt, &t.StaleWarningSent, &renewed); err != nil {
		return nil, err
	}
	t.CreatedAt = fromUnix(createdAt)
	if renewed.Valid {
		renewedAt := fromUnix(renewed.Int64)
		t.LastRenewedAt = &renewedAt
	}
	return &t, nil
}
