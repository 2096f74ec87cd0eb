package lifecycle

import "errors"

var (
	// ErrGuildNotConfigured is returned for any intent aimed at a guild without settings.
	ErrGuildNotConfigured = errors.New("guild is not configured")
	// ErrNothingToCancel means neither a pending lock nor a stale warning exists for the thread.
	ErrNothingToCancel = errors.New("nothing to cancel")
	// ErrNotForumThread means the channel is not a thread of the guild's configured forum.
	ErrNotForumThread = errors.New("not a thread in the configured forum")
	// ErrInvalidDelay means the requested resolve delay is outside (0, maxResolveDelay].
	ErrInvalidDelay = errors.New("invalid resolve delay")
	// ErrNoLink means the thread has no link attached.
	ErrNoLink = errors.New("no link set for this thread")
	// ErrInvalidLink rejects a thread link that is not an absolute http(s) URL.
	ErrInvalidLink = errors.New("link must be an http(s) url")
	// ErrThreadLocked means the thread is already closed, as a duplicate or otherwise.
	ErrThreadLocked = errors.New("thread is already locked")
	// ErrInvalidSettings rejects a setup missing the forum or tag ids.
	ErrInvalidSettings = errors.New("settings are missing a required id")
)
