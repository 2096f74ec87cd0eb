package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"forum-keeper/command"
	"forum-keeper/gateway"
	"forum-keeper/lifecycle"
	"forum-keeper/models"
	"forum-keeper/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	guildID  = "G1"
	threadID = "T1"
	ownerID  = "owner-1"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	method string
	actor  lifecycle.Actor
	delay  time.Duration
	arg    string
}

type fakeEngine struct {
	settings *models.GuildSettings
	errs     map[string]error
	outcome  lifecycle.CancelOutcome
	link     *models.ThreadLink
	saved    *models.GuildSettings
	threadEv *lifecycle.ThreadEvent
	msgEv    *lifecycle.MessageEvent
	calls    []call
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		settings: &models.GuildSettings{
			GuildID:        guildID,
			ForumChannelID: "F1",
			ResolvedTagID:  "tag-resolved",
			DuplicateTagID: "tag-dup",
			HelperRoleIDs:  []string{"role-helper"},
		},
		errs:    make(map[string]error),
		outcome: lifecycle.CancelledLock,
	}
}

func (f *fakeEngine) record(c call) error {
	f.calls = append(f.calls, c)
	return f.errs[c.method]
}

func (f *fakeEngine) methods() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeEngine) Resolve(_ context.Context, _, _ string, delay time.Duration, actor lifecycle.Actor) (time.Time, error) {
	if delay == 0 {
		delay = 30 * time.Minute
	}
	return t0.Add(delay), f.record(call{method: "resolve", actor: actor, delay: delay})
}

func (f *fakeEngine) Cancel(_ context.Context, _, _ string, actor lifecycle.Actor) (lifecycle.CancelOutcome, error) {
	if err := f.record(call{method: "cancel", actor: actor}); err != nil {
		return 0, err
	}
	return f.outcome, nil
}

func (f *fakeEngine) KeepOpen(_ context.Context, _, _ string, actor lifecycle.Actor) error {
	return f.record(call{method: "keep_open", actor: actor})
}

func (f *fakeEngine) Duplicate(_ context.Context, _, _, link string, actor lifecycle.Actor) error {
	return f.record(call{method: "duplicate", actor: actor, arg: link})
}

func (f *fakeEngine) SetLink(_ context.Context, _, tid, rawURL string, actor lifecycle.Actor) (*models.ThreadLink, error) {
	if err := f.record(call{method: "set_link", actor: actor, arg: rawURL}); err != nil {
		return nil, err
	}
	return &models.ThreadLink{ThreadID: tid, URL: rawURL, CreatorID: actor.ID, CreatedAt: t0}, nil
}

func (f *fakeEngine) Link(context.Context, string) (*models.ThreadLink, error) {
	if err := f.record(call{method: "link"}); err != nil {
		return nil, err
	}
	if f.link == nil {
		return nil, lifecycle.ErrNoLink
	}
	return f.link, nil
}

func (f *fakeEngine) RemoveLink(_ context.Context, _, _ string, actor lifecycle.Actor) error {
	return f.record(call{method: "remove_link", actor: actor})
}

func (f *fakeEngine) SaveSettings(_ context.Context, g models.GuildSettings, actor lifecycle.Actor) error {
	f.saved = &g
	return f.record(call{method: "save_settings", actor: actor})
}

func (f *fakeEngine) Settings(context.Context, string) (*models.GuildSettings, error) {
	if f.settings == nil {
		return nil, lifecycle.ErrGuildNotConfigured
	}
	return f.settings, nil
}

func (f *fakeEngine) ThreadCreated(_ context.Context, ev lifecycle.ThreadEvent) error {
	f.threadEv = &ev
	return f.record(call{method: "thread_created"})
}

func (f *fakeEngine) MessagePosted(_ context.Context, ev lifecycle.MessageEvent) error {
	f.msgEv = &ev
	return f.record(call{method: "message_posted"})
}

func (f *fakeEngine) ThreadDeleted(_ context.Context, _, tid string) error {
	return f.record(call{method: "thread_deleted", arg: tid})
}

func (f *fakeEngine) Config() models.LifecycleConfig { return lifecycle.DefaultConfig() }

type fakeResponder struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, e *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, e)
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) last(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1]
}

type fakeState struct {
	channels map[string]*discordgo.Channel
}

func (f *fakeState) Channel(id string) (*discordgo.Channel, error) {
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, discordgo.ErrStateNotFound
}

func (f *fakeState) Guild(id string) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: id, Name: "Help Server"}, nil
}

type stubThreads struct{}

func (stubThreads) FetchThread(context.Context, string) (*gateway.Thread, error) {
	return nil, gateway.ErrThreadNotFound
}

type memAudit struct {
	entries []models.AuditEntry
}

func (m *memAudit) Record(_ context.Context, e models.AuditEntry) { m.entries = append(m.entries, e) }

type fixture struct {
	h      *Handlers
	engine *fakeEngine
	resp   *fakeResponder
	audit  *memAudit
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{engine: newFakeEngine(), resp: &fakeResponder{}, audit: &memAudit{}}
	state := &fakeState{channels: map[string]*discordgo.Channel{
		threadID: {ID: threadID, GuildID: guildID, ParentID: "F1", OwnerID: ownerID, Type: discordgo.ChannelTypeGuildPublicThread},
		"C1":     {ID: "C1", GuildID: guildID, Type: discordgo.ChannelTypeGuildText},
	}}
	f.h = New(context.Background(), Deps{
		Engine:  f.engine,
		Threads: stubThreads{},
		State:   state,
		Auth:    utils.NewAuth([]string{"dev-1"}),
		Audit:   f.audit,
		Logger:  zaptest.NewLogger(t),
	})
	return f
}

func member(id string, perms int64, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id, Username: id}, Permissions: perms, Roles: roles}
}

var (
	owner    = member(ownerID, 0)
	stranger = member("user-2", 0)
	helper   = member("user-3", 0, "role-helper")
	admin    = member("user-4", discordgo.PermissionManageServer)
)

func slash(m *discordgo.Member, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: threadID,
		Member:    m,
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func button(m *discordgo.Member) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i2",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: threadID,
		Member:    m,
		Data:      discordgo.MessageComponentInteractionData{CustomID: lifecycle.KeepOpenButtonID},
	}}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func TestResolvedCommand(t *testing.T) {
	f := newFixture(t)
	f.h.InteractionCreate(f.resp, slash(owner, command.NameResolved, intOpt(command.OptMinutes, 10)))

	require.Equal(t, []string{"resolve"}, f.engine.methods())
	c := f.engine.calls[0]
	assert.Equal(t, 10*time.Minute, c.delay)
	assert.Equal(t, ownerID, c.actor.ID)
	assert.Equal(t, "/resolved minutes:10", c.actor.CommandText)

	r := f.resp.last(t)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, r.Type)
	assert.Contains(t, r.Data.Content, "10 minutes")
	assert.Zero(t, r.Data.Flags)
}

func TestResolvedDefaultDelay(t *testing.T) {
	f := newFixture(t)
	f.h.InteractionCreate(f.resp, slash(helper, command.NameResolved))

	require.Len(t, f.engine.calls, 1)
	assert.Contains(t, f.resp.last(t).Data.Content, "30 minutes")
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.h.InteractionCreate(f.resp, slash(stranger, command.NameResolved))
	f.h.InteractionCreate(f.resp, slash(owner, command.NameDuplicate, strOpt(command.OptOriginal, "https://x")))
	f.h.InteractionCreate(f.resp, slash(helper, command.NameSetup))

	assert.Empty(t, f.engine.calls)
	require.Len(t, f.audit.entries, 3)
	for _, e := range f.audit.entries {
		assert.Equal(t, models.ActionDenied, e.Action)
	}
	assert.Equal(t, "/duplicate link:https://x", f.audit.entries[1].CommandText)
	assert.Contains(t, f.resp.responses[1].Data.Content, "Only helpers")
	for _, r := range f.resp.responses {
		assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Data.Flags)
	}
}

func TestUnconfiguredGuild(t *testing.T) {
	f := newFixture(t)
	f.engine.settings = nil

	f.h.InteractionCreate(f.resp, slash(owner, command.NameCancel))
	assert.Empty(t, f.engine.calls)
	assert.Contains(t, f.resp.last(t).Data.Content, "/setup")
	assert.Empty(t, f.audit.entries)
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t)
	f.h.InteractionCreate(f.resp, slash(owner, command.NameCancel))
	assert.Contains(t, f.resp.last(t).Data.Content, "Lock cancelled")

	f.engine.outcome = lifecycle.RenewedThread
	f.h.InteractionCreate(f.resp, slash(owner, command.NameCancel))
	assert.Contains(t, f.resp.last(t).Data.Content, "Closure cancelled")

	f.engine.errs["cancel"] = lifecycle.ErrNothingToCancel
	f.h.InteractionCreate(f.resp, slash(owner, command.NameCancel))
	r := f.resp.last(t)
	assert.Contains(t, r.Data.Content, "nothing to cancel")
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Data.Flags)
}

func TestDuplicateCommand(t *testing.T) {
	f := newFixture(t)
	f.h.InteractionCreate(f.resp, slash(helper, command.NameDuplicate, strOpt(command.OptOriginal, "https://discord.com/channels/1/2")))

	require.Equal(t, []string{"duplicate"}, f.engine.methods())
	assert.Equal(t, "https://discord.com/channels/1/2", f.engine.calls[0].arg)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, f.resp.last(t).Type)
	require.Len(t, f.resp.edits, 1)
	assert.Equal(t, "Marked as duplicate.", *f.resp.edits[0].Content)

	f.engine.errs["duplicate"] = errors.New("lock failed")
	f.h.InteractionCreate(f.resp, slash(helper, command.NameDuplicate, strOpt(command.OptOriginal, "https://x")))
	require.Len(t, f.resp.edits, 2)
	assert.Contains(t, *f.resp.edits[1].Content, "Something went wrong")
}

func TestLinkCommand(t *testing.T) {
	f := newFixture(t)

	// Anyone may look at the link.
	f.h.InteractionCreate(f.resp, slash(stranger, command.NameLink, sub(command.SubShow)))
	assert.Contains(t, f.resp.last(t).Data.Content, "no link")

	f.h.InteractionCreate(f.resp, slash(stranger, command.NameLink, sub(command.SubSet, strOpt(command.OptURL, "https://a"))))
	assert.Equal(t, models.ActionDenied, f.audit.entries[0].Action)

	f.h.InteractionCreate(f.resp, slash(owner, command.NameLink, sub(command.SubSet, strOpt(command.OptURL, "https://a"))))
	assert.Contains(t, f.resp.last(t).Data.Content, "https://a")
	assert.Equal(t, "/link set url:https://a", f.engine.calls[1].actor.CommandText)

	f.engine.errs["remove_link"] = lifecycle.ErrNoLink
	f.h.InteractionCreate(f.resp, slash(helper, command.NameLink, sub(command.SubRemove)))
	assert.Contains(t, f.resp.last(t).Data.Content, "no link")
	assert.Equal(t, []string{"link", "set_link", "remove_link"}, f.engine.methods())
}

func TestSetupCommand(t *testing.T) {
	f := newFixture(t)
	f.engine.settings = nil

	f.h.InteractionCreate(f.resp, slash(admin, command.NameSetup,
		&discordgo.ApplicationCommandInteractionDataOption{Name: command.OptForum, Type: discordgo.ApplicationCommandOptionChannel, Value: "F9"},
		strOpt(command.OptResolvedTag, "R9"),
		strOpt(command.OptDuplicateTag, "D9"),
		&discordgo.ApplicationCommandInteractionDataOption{Name: command.OptHelperRole, Type: discordgo.ApplicationCommandOptionRole, Value: "H9"},
	))

	require.NotNil(t, f.engine.saved)
	assert.Equal(t, models.GuildSettings{
		GuildID:        guildID,
		GuildName:      "Help Server",
		ForumChannelID: "F9",
		ResolvedTagID:  "R9",
		DuplicateTagID: "D9",
		HelperRoleIDs:  []string{"H9"},
	}, *f.engine.saved)
	assert.Contains(t, f.resp.last(t).Data.Content, "<#F9>")
}

func TestKeepOpenButton(t *testing.T) {
	f := newFixture(t)

	f.h.InteractionCreate(f.resp, button(helper))
	assert.Empty(t, f.engine.calls)
	assert.Contains(t, f.resp.last(t).Data.Content, "Only the person who made this post")

	f.h.InteractionCreate(f.resp, button(owner))
	r := f.resp.last(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, r.Type)
	assert.Empty(t, r.Data.Components)
	// The button never goes through Cancel, which would drop a pending resolve lock instead of the warning.
	assert.Equal(t, []string{"keep_open"}, f.engine.methods())
	assert.Equal(t, "button:keep_open", f.engine.calls[0].actor.CommandText)

	// A press on an untracked thread still clears the button.
	f.engine.errs["keep_open"] = lifecycle.ErrNothingToCancel
	f.h.InteractionCreate(f.resp, button(owner))
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, f.resp.last(t).Type)

	f.engine.errs["keep_open"] = errors.New("database is locked")
	f.h.InteractionCreate(f.resp, button(owner))
	r = f.resp.last(t)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, r.Type)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Data.Flags)
}

func TestMessageCreate(t *testing.T) {
	f := newFixture(t)
	self := &discordgo.User{ID: "bot"}
	msg := func(channelID string, author *discordgo.User) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{ID: "m1", ChannelID: channelID, GuildID: guildID, Author: author}}
	}

	f.h.MessageCreate(self, msg(threadID, self))
	f.h.MessageCreate(self, msg(threadID, &discordgo.User{ID: "other-bot", Bot: true}))
	f.h.MessageCreate(self, msg("C1", &discordgo.User{ID: "u"}))
	assert.Empty(t, f.engine.calls)

	f.h.MessageCreate(self, msg(threadID, &discordgo.User{ID: "u"}))
	// Channels missing from the cache go to the engine, which checks the forum itself.
	f.h.MessageCreate(self, msg("T-uncached", &discordgo.User{ID: "u"}))
	assert.Equal(t, []string{"message_posted", "message_posted"}, f.engine.methods())
	assert.Equal(t, lifecycle.MessageEvent{ThreadID: "T-uncached", GuildID: guildID, AuthorID: "u", MessageID: "m1"}, *f.engine.msgEv)
}

func TestThreadEvents(t *testing.T) {
	f := newFixture(t)
	ch := &discordgo.Channel{ID: "T2", GuildID: guildID, ParentID: "F1", OwnerID: ownerID, Type: discordgo.ChannelTypeGuildPublicThread}

	f.h.ThreadCreate(&discordgo.ThreadCreate{Channel: ch, NewlyCreated: false})
	assert.Empty(t, f.engine.calls)

	f.engine.errs["thread_created"] = lifecycle.ErrNotForumThread
	f.h.ThreadCreate(&discordgo.ThreadCreate{Channel: ch, NewlyCreated: true})
	assert.Equal(t, lifecycle.ThreadEvent{ThreadID: "T2", GuildID: guildID, ForumID: "F1", OwnerID: ownerID}, *f.engine.threadEv)

	f.h.ThreadDelete(&discordgo.ThreadDelete{Channel: ch})
	assert.Equal(t, []string{"thread_created", "thread_deleted"}, f.engine.methods())
	assert.Equal(t, "T2", f.engine.calls[1].arg)
}

func TestUserMessage(t *testing.T) {
	msg, known := userMessage(errors.Join(errors.New("ctx"), lifecycle.ErrInvalidDelay))
	assert.True(t, known)
	assert.Equal(t, "That delay is not allowed.", msg)

	msg, known = userMessage(fmt.Errorf("resolve: %w", lifecycle.ErrThreadLocked))
	assert.True(t, known)
	assert.Equal(t, "🔒 This thread is already closed.", msg)

	_, known = userMessage(errors.New("boom"))
	assert.False(t, known)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "3 hours", humanDuration(3*time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}
