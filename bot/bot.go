package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrNoToken is returned by NewBot when BOT_TOKEN is empty.
var ErrNoToken = errors.New("no bot token provided")

// Bot encapsulates the bot's Discord session.
type Bot struct {
	Session *discordgo.Session

	log            *zap.Logger
	commandGuildID string
	commands       []*discordgo.ApplicationCommand
	openTimeout    time.Duration
}

// NewBot creates the session with the intents forum tracking needs.
// commandGuildID limits slash command registration to one guild; empty registers globally.
func NewBot(token, commandGuildID string, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	// MessageContent 用不到，只需要作者和频道信息
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return &Bot{
		Session:        dg,
		log:            logger,
		commandGuildID: commandGuildID,
		openTimeout:    2 * time.Minute,
	}, nil
}

// RegisterCommands sets the slash commands published on Start.
func (b *Bot) RegisterCommands(defs []*discordgo.ApplicationCommand) {
	b.commands = append(b.commands[:0], defs...)
}

// Commands returns the definitions that will be published.
func (b *Bot) Commands() []*discordgo.ApplicationCommand { return b.commands }

// Start registers handlers, opens the gateway connection and publishes the slash commands.
func (b *Bot) Start(ctx context.Context, registerHandlers func(*discordgo.Session)) error {
	if registerHandlers != nil {
		registerHandlers(b.Session)
	}

	if err := b.open(ctx); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	if len(b.commands) > 0 {
		created, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, b.commandGuildID, b.commands)
		if err != nil {
			// 命令注册失败不影响后台清扫
			b.log.Error("cannot register slash commands", zap.Error(err))
		} else {
			b.log.Info("slash commands registered", zap.Int("count", len(created)), zap.String("guild_id", b.commandGuildID))
		}
	}

	b.log.Info("bot is now running", zap.String("user", b.Session.State.User.Username))
	return nil
}

func (b *Bot) open(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = b.openTimeout

	return backoff.RetryNotify(b.Session.Open, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		b.log.Warn("discord session open failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
}

// Stop gracefully closes the bot's session.
func (b *Bot) Stop() {
	if b.Session != nil {
		if err := b.Session.Close(); err != nil {
			b.log.Warn("error closing session", zap.Error(err))
		}
	}
	b.log.Info("bot stopped gracefully")
}

// Ready reports whether the gateway connection has received READY.
func (b *Bot) Ready() bool {
	return b.Session != nil && b.Session.DataReady
}
