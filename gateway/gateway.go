// Package gateway is the lifecycle engine's view of the chat platform:
// fetch a thread, change its tags or lock state, post into it.
package gateway

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrThreadNotFound is returned when the thread no longer exists or is not visible to the bot.
var ErrThreadNotFound = errors.New("thread not found")

// Thread is a snapshot of a forum thread.
type Thread struct {
	ID          string
	GuildID     string
	ParentID    string
	OwnerID     string
	Name        string
	AppliedTags []string
	Locked      bool
	Archived    bool
	CreatedAt   time.Time
}

// HasTag reports whether tagID is applied to the thread.
func (t *Thread) HasTag(tagID string) bool {
	return tagID != "" && slices.Contains(t.AppliedTags, tagID)
}

// Gateway is implemented by Discord and by test fakes. Every call may fail.
type Gateway interface {
	FetchThread(ctx context.Context, threadID string) (*Thread, error)
	SetTags(ctx context.Context, threadID string, tagIDs []string) error
	SetLocked(ctx context.Context, threadID string, locked bool) error
	SendMessage(ctx context.Context, threadID string, msg *discordgo.MessageSend) error
	ActiveForumThreads(ctx context.Context, guildID, forumID string) ([]*Thread, error)
}
