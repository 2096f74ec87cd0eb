package models

import "time"

// PendingLock is an armed resolve timer. Presence of the row is the pending state.
type PendingLock struct {
	ThreadID string    `db:"thread_id"`
	GuildID  string    `db:"guild_id"`
	FireAt   time.Time `db:"fire_at"`
}

// TrackedThread is the stale-detection bookkeeping row for a forum thread.
type TrackedThread struct {
	ThreadID         string     `db:"thread_id"`
	GuildID          string     `db:"guild_id"`
	CreatedAt        time.Time  `db:"created_at"`
	StaleWarningSent bool       `db:"stale_warning_sent"`
	LastRenewedAt    *time.Time `db:"last_renewed_at"`
}

// LastActivity returns max(CreatedAt, LastRenewedAt), the instant both stale windows run from.
func (t TrackedThread) LastActivity() time.Time {
	if t.LastRenewedAt != nil && t.LastRenewedAt.After(t.CreatedAt) {
		return *t.LastRenewedAt
	}
	return t.CreatedAt
}

// ThreadLink is a single reference link attached to a thread.
type ThreadLink struct {
	ThreadID  string    `db:"thread_id"`
	GuildID   string    `db:"guild_id"`
	URL       string    `db:"url"`
	CreatorID string    `db:"creator_id"`
	CreatedAt time.Time `db:"created_at"`
}
