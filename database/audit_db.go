package database

import (
	"context"
	"fmt"
	"time"

	"forum-keeper/models"
)

// InsertAuditEntry appends one row to the audit log.
func (s *Store) InsertAuditEntry(ctx context.Context, e models.AuditEntry) error {
	query := `
    INSERT INTO audit_log (
        guild_id, action, details, actor_id, actor_name, command_text, thread_id, message_id, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for audit entry: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		e.GuildID,
		string(e.Action),
		e.Details,
		e.ActorID,
		e.ActorName,
		e.CommandText,
		e.ThreadID,
		e.MessageID,
		unix(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %s for guild %s: %w", e.Action, e.GuildID, err)
	}
	return nil
}

// ListAuditEntries returns the newest entries of a guild, newest first.
func (s *Store) ListAuditEntries(ctx context.Context, guildID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, guild_id, action, details, actor_id, actor_name, command_text, thread_id, message_id, created_at
    FROM audit_log WHERE guild_id = ? ORDER BY id DESC LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var action string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.GuildID, &action, &e.Details, &e.ActorID, &e.ActorName,
			&e.CommandText, &e.ThreadID, &e.MessageID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = models.AuditAction(action)
		e.CreatedAt = fromUnix(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneAuditLog deletes audit rows created before the cutoff.
func (s *Store) PruneAuditLog(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, unix(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return res.RowsAffected()
}
