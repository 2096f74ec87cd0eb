// Package handlers turns Discord gateway events and interactions into lifecycle intents.
package handlers

import (
	"context"
	"time"

	"forum-keeper/gateway"
	"forum-keeper/lifecycle"
	"forum-keeper/models"
	"forum-keeper/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Engine is the part of the lifecycle engine the front end drives.
type Engine interface {
	Resolve(ctx context.Context, guildID, threadID string, delay time.Duration, actor lifecycle.Actor) (time.Time, error)
	Cancel(ctx context.Context, guildID, threadID string, actor lifecycle.Actor) (lifecycle.CancelOutcome, error)
	KeepOpen(ctx context.Context, guildID, threadID string, actor lifecycle.Actor) error
	Duplicate(ctx context.Context, guildID, threadID, originalLink string, actor lifecycle.Actor) error
	SetLink(ctx context.Context, guildID, threadID, rawURL string, actor lifecycle.Actor) (*models.ThreadLink, error)
	Link(ctx context.Context, threadID string) (*models.ThreadLink, error)
	RemoveLink(ctx context.Context, guildID, threadID string, actor lifecycle.Actor) error
	SaveSettings(ctx context.Context, g models.GuildSettings, actor lifecycle.Actor) error
	Settings(ctx context.Context, guildID string) (*models.GuildSettings, error)
	ThreadCreated(ctx context.Context, ev lifecycle.ThreadEvent) error
	MessagePosted(ctx context.Context, ev lifecycle.MessageEvent) error
	ThreadDeleted(ctx context.Context, guildID, threadID string) error
	Config() models.LifecycleConfig
}

// Threads looks up thread owners for permission checks.
type Threads interface {
	FetchThread(ctx context.Context, threadID string) (*gateway.Thread, error)
}

// StateCache is satisfied by *discordgo.State.
type StateCache interface {
	Channel(channelID string) (*discordgo.Channel, error)
	Guild(guildID string) (*discordgo.Guild, error)
}

// Responder answers interactions; satisfied by *discordgo.Session.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Deps wires a Handlers. State defaults to the session state in Register.
type Deps struct {
	Engine  Engine
	Threads Threads
	State   StateCache
	Auth    *utils.Auth
	Audit   lifecycle.AuditSink
	Logger  *zap.Logger
}

// Handlers holds everything the event callbacks need.
type Handlers struct {
	ctx     context.Context
	engine  Engine
	threads Threads
	state   StateCache
	auth    *utils.Auth
	audit   lifecycle.AuditSink
	log     *zap.Logger
}

// New creates Handlers; ctx bounds every engine call they make.
func New(ctx context.Context, d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Auth == nil {
		d.Auth = utils.NewAuth(nil)
	}
	return &Handlers{
		ctx:     ctx,
		engine:  d.Engine,
		threads: d.Threads,
		state:   d.State,
		auth:    d.Auth,
		audit:   d.Audit,
		log:     d.Logger,
	}
}

// Register all handlers to the session.
func (h *Handlers) Register(s *discordgo.Session) {
	if h.state == nil {
		h.state = s.State
	}

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h.InteractionCreate(s, i)
	})
	s.AddHandler(func(_ *discordgo.Session, t *discordgo.ThreadCreate) {
		h.ThreadCreate(t)
	})
	s.AddHandler(func(_ *discordgo.Session, t *discordgo.ThreadDelete) {
		h.ThreadDelete(t)
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		h.MessageCreate(s.State.User, m)
	})

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		h.log.Info("logged in", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
}
