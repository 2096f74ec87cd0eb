package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Gateway on a discordgo session. Every call is bounded by Timeout.
type Discord struct {
	Session *discordgo.Session
	Timeout time.Duration
}

// NewDiscord wraps a session. A non-positive timeout defaults to 10s.
func NewDiscord(s *discordgo.Session, timeout time.Duration) *Discord {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Discord{Session: s, Timeout: timeout}
}

func (d *Discord) call(ctx context.Context, fn func(opt discordgo.RequestOption) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	err := fn(discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrThreadNotFound, err)
	}
	return err
}

// FetchThread loads a thread from the API.
func (d *Discord) FetchThread(ctx context.Context, threadID string) (*Thread, error) {
	var ch *discordgo.Channel
	err := d.call(ctx, func(opt discordgo.RequestOption) error {
		var err error
		ch, err = d.Session.Channel(threadID, opt)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !ch.IsThread() {
		return nil, fmt.Errorf("%w: channel %s is not a thread", ErrThreadNotFound, threadID)
	}
	return ThreadFromChannel(ch), nil
}

// SetTags replaces the applied tags of a thread.
func (d *Discord) SetTags(ctx context.Context, threadID string, tagIDs []string) error {
	tags := append([]string{}, tagIDs...)
	return d.call(ctx, func(opt discordgo.RequestOption) error {
		_, err := d.Session.ChannelEdit(threadID, &discordgo.ChannelEdit{AppliedTags: &tags}, opt)
		return err
	})
}

// SetLocked locks or unlocks a thread.
func (d *Discord) SetLocked(ctx context.Context, threadID string, locked bool) error {
	return d.call(ctx, func(opt discordgo.RequestOption) error {
		_, err := d.Session.ChannelEdit(threadID, &discordgo.ChannelEdit{Locked: &locked}, opt)
		return err
	})
}

// SendMessage posts a message into a thread.
func (d *Discord) SendMessage(ctx context.Context, threadID string, msg *discordgo.MessageSend) error {
	return d.call(ctx, func(opt discordgo.RequestOption) error {
		_, err := d.Session.ChannelMessageSendComplex(threadID, msg, opt)
		return err
	})
}

// ActiveForumThreads lists the active threads of a guild that live under forumID.
func (d *Discord) ActiveForumThreads(ctx context.Context, guildID, forumID string) ([]*Thread, error) {
	var list *discordgo.ThreadsList
	err := d.call(ctx, func(opt discordgo.RequestOption) error {
		var err error
		list, err = d.Session.GuildThreadsActive(guildID, opt)
		return err
	})
	if err != nil {
		return nil, err
	}

	var threads []*Thread
	for _, ch := range list.Threads {
		if ch.ParentID == forumID {
			threads = append(threads, ThreadFromChannel(ch))
		}
	}
	return threads, nil
}

// ThreadFromChannel converts a discordgo thread channel into a Thread.
func ThreadFromChannel(ch *discordgo.Channel) *Thread {
	t := &Thread{
		ID:          ch.ID,
		GuildID:     ch.GuildID,
		ParentID:    ch.ParentID,
		OwnerID:     ch.OwnerID,
		Name:        ch.Name,
		AppliedTags: append([]string{}, ch.AppliedTags...),
	}
	if ch.ThreadMetadata != nil {
		t.Locked = ch.ThreadMetadata.Locked
		t.Archived = ch.ThreadMetadata.Archived
	}
	// The thread id is a snowflake minted at creation time.
	if created, err := discordgo.SnowflakeTimestamp(ch.ID); err == nil {
		t.CreatedAt = created.UTC()
	}
	return t
}

// IsNotFound reports whether err is a Discord 404 / unknown channel error.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrThreadNotFound) {
		return true
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
