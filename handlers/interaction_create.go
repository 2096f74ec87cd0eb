package handlers

import (
	"errors"
	"fmt"
	"strings"

	"forum-keeper/command"
	"forum-keeper/gateway"
	"forum-keeper/lifecycle"
	"forum-keeper/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// InteractionCreate handles slash commands and the keep-open button.
func (h *Handlers) InteractionCreate(r Responder, i *discordgo.InteractionCreate) {
	if i.Interaction == nil {
		return
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.CommandDispatcher(r, i)
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == lifecycle.KeepOpenButtonID {
			h.handleKeepOpen(r, i)
		}
	}
}

// commandPermissions 每个命令需要的权限等级
var commandPermissions = map[string]level{
	command.NameResolved:  levelOwnerOrHelper,
	command.NameCancel:    levelOwnerOrHelper,
	command.NameDuplicate: levelHelper,
	command.NameLink:      levelOwnerOrHelper,
	command.NameSetup:     levelManager,
}

type level int

const (
	levelOwnerOrHelper level = iota + 1
	levelHelper
	levelManager
)

// CommandDispatcher is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func (h *Handlers) CommandDispatcher(r Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if i.GuildID == "" {
		h.reply(r, i, "🚫 This command only works inside a server.", true)
		return
	}

	required, ok := commandPermissions[data.Name]
	if !ok {
		h.reply(r, i, "🚫 Unknown command.", true)
		return
	}

	// /setup 必须在服务器未配置时也能使用
	var settings *models.GuildSettings
	if required != levelManager {
		g, err := h.engine.Settings(h.ctx, i.GuildID)
		if err != nil {
			h.replyError(r, i, err)
			return
		}
		settings = g
	}

	// /link show 不需要权限
	sub := subcommand(data)
	if !(data.Name == command.NameLink && sub != nil && sub.Name == command.SubShow) {
		if !h.allowed(required, i, settings) {
			h.deny(r, i, data.Name)
			return
		}
	}

	switch data.Name {
	case command.NameResolved:
		h.handleResolved(r, i)
	case command.NameCancel:
		h.handleCancel(r, i)
	case command.NameDuplicate:
		h.handleDuplicate(r, i)
	case command.NameLink:
		h.handleLink(r, i, sub)
	case command.NameSetup:
		h.handleSetup(r, i)
	}
}

func (h *Handlers) allowed(required level, i *discordgo.InteractionCreate, g *models.GuildSettings) bool {
	switch required {
	case levelManager:
		return h.auth.CanManageGuild(i.Member)
	case levelHelper:
		return h.auth.IsHelper(i.Member, g)
	default:
		return h.auth.IsOwnerOrHelper(i.Member, h.threadOwner(i.ChannelID), g)
	}
}

// threadOwner returns "" when the channel is not a known thread.
func (h *Handlers) threadOwner(channelID string) string {
	if h.state != nil {
		if ch, err := h.state.Channel(channelID); err == nil && ch.IsThread() {
			return ch.OwnerID
		}
	}
	if h.threads == nil {
		return ""
	}
	th, err := h.threads.FetchThread(h.ctx, channelID)
	if err != nil {
		if !errors.Is(err, gateway.ErrThreadNotFound) {
			h.log.Warn("owner lookup failed", zap.String("thread_id", channelID), zap.Error(err))
		}
		return ""
	}
	return th.OwnerID
}

func (h *Handlers) deny(r Responder, i *discordgo.InteractionCreate, name string) {
	actor := actorOf(i)
	if h.audit != nil {
		h.audit.Record(h.ctx, models.AuditEntry{
			GuildID:     i.GuildID,
			ThreadID:    i.ChannelID,
			Action:      models.ActionDenied,
			Details:     "missing permission for /" + name,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			CommandText: actor.CommandText,
		})
	}
	msg := "🚫 You do not have permission to use this command."
	if name == command.NameDuplicate {
		msg = "🚫 Only helpers can mark posts as duplicates!"
	}
	h.reply(r, i, msg, true)
}

// handleKeepOpen renews the thread from the stale warning button. Only the thread owner may press it.
func (h *Handlers) handleKeepOpen(r Responder, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil || user.ID != h.threadOwner(i.ChannelID) {
		h.reply(r, i, "Only the person who made this post can keep it open!", true)
		return
	}

	err := h.engine.KeepOpen(h.ctx, i.GuildID, i.ChannelID, actorOf(i))
	// 已经续期过的警告也直接更新消息，去掉按钮
	if err != nil && !errors.Is(err, lifecycle.ErrNothingToCancel) {
		h.replyError(r, i, err)
		return
	}
	h.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: lifecycle.KeepOpenResponse(),
	})
}

func (h *Handlers) respond(r Responder, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := r.InteractionRespond(i.Interaction, resp); err != nil {
		h.log.Warn("interaction response failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

func (h *Handlers) reply(r Responder, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	h.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (h *Handlers) replyError(r Responder, i *discordgo.InteractionCreate, err error) {
	msg, known := userMessage(err)
	if !known {
		h.log.Error("command failed", zap.String("guild_id", i.GuildID), zap.String("channel_id", i.ChannelID), zap.Error(err))
	}
	h.reply(r, i, msg, true)
}

// userMessage maps engine errors to what the member sees.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, lifecycle.ErrGuildNotConfigured):
		return "⚙️ This server is not set up yet. Ask an admin to run /setup.", true
	case errors.Is(err, lifecycle.ErrNotForumThread):
		return "This command only works inside a thread of the help forum.", true
	case errors.Is(err, lifecycle.ErrInvalidDelay):
		return "That delay is not allowed.", true
	case errors.Is(err, lifecycle.ErrNothingToCancel):
		return "There is nothing to cancel in this thread.", true
	case errors.Is(err, lifecycle.ErrThreadLocked):
		return "🔒 This thread is already closed.", true
	case errors.Is(err, lifecycle.ErrNoLink):
		return "This thread has no link.", true
	case errors.Is(err, lifecycle.ErrInvalidLink):
		return "The link must be an http(s) URL.", true
	case errors.Is(err, lifecycle.ErrInvalidSettings):
		return "The forum, resolved tag and duplicate tag are all required.", true
	default:
		return "🚫 Something went wrong, please try again later.", false
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func actorOf(i *discordgo.InteractionCreate) lifecycle.Actor {
	var a lifecycle.Actor
	if u := interactionUser(i); u != nil {
		a.ID = u.ID
		a.Name = u.Username
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		a.CommandText = commandText(i.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		a.CommandText = "button:" + i.MessageComponentData().CustomID
	}
	return a
}

// commandText renders the invocation like "/link set url:https://…".
func commandText(data discordgo.ApplicationCommandInteractionData) string {
	var b strings.Builder
	b.WriteString("/" + data.Name)
	writeOptions(&b, data.Options)
	return b.String()
}

func writeOptions(b *strings.Builder, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			b.WriteString(" " + o.Name)
			writeOptions(b, o.Options)
		default:
			fmt.Fprintf(b, " %s:%v", o.Name, o.Value)
		}
	}
}

func subcommand(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	if len(data.Options) == 1 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0]
	}
	return nil
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}
