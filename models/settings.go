package models

import "slices"

// GuildSettings is the per-guild configuration written by the setup flow.
// A guild without a row is unconfigured.
type GuildSettings struct {
	GuildID        string   `json:"guild_id"`
	GuildName      string   `json:"guild_name"`
	ForumChannelID string   `json:"forum_channel_id"`
	ResolvedTagID  string   `json:"resolved_tag_id"`
	DuplicateTagID string   `json:"duplicate_tag_id"`
	UnansweredTag  string   `json:"unanswered_tag_id,omitempty"` // optional
	HelperRoleIDs  []string `json:"helper_role_ids"`
}

// IsHelper reports whether any of roles is one of the guild's helper roles.
func (g GuildSettings) IsHelper(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(g.HelperRoleIDs, r) {
			return true
		}
	}
	return false
}

// Valid reports whether the settings carry every required id.
func (g GuildSettings) Valid() bool {
	return g.GuildID != "" && g.ForumChannelID != "" && g.ResolvedTagID != "" && g.DuplicateTagID != ""
}
