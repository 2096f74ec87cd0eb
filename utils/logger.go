package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// maxFieldLen is Discord's limit for an embed field value.
const maxFieldLen = 1024

// NewLogger builds the process logger. development switches to the console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// EmbedSender is the part of a discordgo session the channel logger needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

const (
	// channelQueueSize bounds the embeds waiting for the admin channel.
	channelQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// ChannelLogger mirrors log lines into the admin channel as colored embeds.
// Embeds are queued and sent by a single goroutine, so callers never wait on Discord;
// when the queue is full the embed is dropped. Without a session or channel it only
// writes to the zap logger.
type ChannelLogger struct {
	sender    EmbedSender
	channelID string
	log       *zap.Logger
	now       func() time.Time
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *discordgo.MessageEmbed
	done   chan struct{}
}

// NewChannelLogger creates a ChannelLogger. An empty channelID disables the mirror.
// Each send is bounded by sendTimeout. Call Close to flush and stop it.
func NewChannelLogger(sender EmbedSender, channelID string, sendTimeout time.Duration, logger *zap.Logger) *ChannelLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channelID == "" {
		logger.Warn("bot.adminChannelId is not set; logging to channel is disabled")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	c := &ChannelLogger{
		sender:    sender,
		channelID: channelID,
		log:       logger,
		now:       time.Now,
		timeout:   sendTimeout,
		done:      make(chan struct{}),
	}
	if c.Enabled() {
		c.queue = make(chan *discordgo.MessageEmbed, channelQueueSize)
		go c.drain()
	} else {
		close(c.done)
	}
	return c
}

// Enabled reports whether embeds are sent.
func (c *ChannelLogger) Enabled() bool {
	return c != nil && c.sender != nil && c.channelID != ""
}

// Log queues a log message for the admin channel.
func (c *ChannelLogger) Log(level, module, operation, details string) {
	if !c.Enabled() {
		if c != nil {
			c.log.Info("admin log",
				zap.String("level", level),
				zap.String("module", module),
				zap.String("operation", operation),
				zap.String("details", details),
			)
		}
		return
	}

	embed := buildLogEmbed(level, module, operation, details, c.now())
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.queue <- embed:
	default:
		c.log.Warn("admin log queue full, dropping entry",
			zap.String("module", module), zap.String("operation", operation))
	}
}

// Info logs an informational message.
func (c *ChannelLogger) Info(module, operation, details string) {
	c.Log("INFO", module, operation, details)
}

// Warn logs a warning message.
func (c *ChannelLogger) Warn(module, operation, details string) {
	c.Log("WARN", module, operation, details)
}

// Error logs an error message.
func (c *ChannelLogger) Error(module, operation, details string) {
	c.Log("ERROR", module, operation, details)
}

// Close stops accepting entries and waits until the queued ones are sent or ctx ends.
func (c *ChannelLogger) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if !c.closed && c.queue != nil {
		close(c.queue)
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChannelLogger) drain() {
	defer close(c.done)
	for embed := range c.queue {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		_, err := c.sender.ChannelMessageSendEmbed(c.channelID, embed, discordgo.WithContext(ctx))
		cancel()
		if err != nil {
			c.log.Warn("failed to send log message to Discord", zap.Error(err))
		}
	}
}

func buildLogEmbed(level, module, operation, details string, at time.Time) *discordgo.MessageEmbed {
	var color int
	switch strings.ToUpper(level) {
	case "WARN":
		color = ColorWarn
	case "ERROR":
		color = ColorError
	default:
		color = ColorInfo
	}
	if details == "" {
		details = "-"
	}
	if utf8.RuneCountInString(details) > maxFieldLen {
		// 按字符截断，避免切开多字节字符
		details = string([]rune(details)[:maxFieldLen-3]) + "..."
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: at.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Module",
				Value:  module,
				Inline: true,
			},
			{
				Name:   "Operation",
				Value:  operation,
				Inline: true,
			},
			{
				Name:  "Details",
				Value: details,
			},
		},
	}
}
