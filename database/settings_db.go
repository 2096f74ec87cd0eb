package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"forum-keeper/models"
)

// SaveSettings creates or wholesale overwrites the settings of a guild.
func (s *Store) SaveSettings(ctx context.Context, g models.GuildSettings) error {
	query := `
    INSERT OR REPLACE INTO guild_settings (
        guild_id, guild_name, forum_channel_id, resolved_tag_id, duplicate_tag_id,
        unanswered_tag_id, helper_role_ids, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for saving settings: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		g.GuildID,
		g.GuildName,
		g.ForumChannelID,
		g.ResolvedTagID,
		g.DuplicateTagID,
		g.UnansweredTag,
		encodeIDs(g.HelperRoleIDs),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings for guild %s: %w", g.GuildID, err)
	}
	return nil
}

// GetSettings returns the settings of a guild, or nil when the guild is unconfigured.
func (s *Store) GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
    SELECT guild_id, guild_name, forum_channel_id, resolved_tag_id, duplicate_tag_id, unanswered_tag_id, helper_role_ids
    FROM guild_settings WHERE guild_id = ?`, guildID)

	g, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for guild %s: %w", guildID, err)
	}
	return g, nil
}

// ListSettings returns every configured guild.
func (s *Store) ListSettings(ctx context.Context) ([]models.GuildSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT guild_id, guild_name, forum_channel_id, resolved_tag_id, duplicate_tag_id, unanswered_tag_id, helper_role_ids
    FROM guild_settings ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var out []models.GuildSettings
	for rows.Next() {
		g, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(r rowScanner) (*models.GuildSettings, error) {
	var g models.GuildSettings
	var roles string
	if err := r.Scan(&g.GuildID, &g.GuildName, &g.ForumChannelID, &g.ResolvedTagID, &g.DuplicateTagID, &g.UnansweredTag, &roles); err != nil {
		return nil, err
	}
	g.HelperRoleIDs = decodeIDs(roles)
	return &g, nil
}

// Role ids are kept comma-joined in a single column.
func encodeIDs(ids []string) string {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	return strings.Join(clean, ",")
}

func decodeIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
