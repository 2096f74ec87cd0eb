package handlers

import (
	"fmt"
	"time"

	"forum-keeper/command"
	"forum-keeper/lifecycle"
	"forum-keeper/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// handleResolved handles /resolved [minutes].
func (h *Handlers) handleResolved(r Responder, i *discordgo.InteractionCreate) {
	var delay time.Duration
	if opt, ok := optionMap(i.ApplicationCommandData().Options)[command.OptMinutes]; ok {
		delay = time.Duration(opt.IntValue()) * time.Minute
		if delay <= 0 {
			h.replyError(r, i, lifecycle.ErrInvalidDelay)
			return
		}
	}

	fireAt, err := h.engine.Resolve(h.ctx, i.GuildID, i.ChannelID, delay, actorOf(i))
	if err != nil {
		h.replyError(r, i, err)
		return
	}
	if delay == 0 {
		delay = h.engine.Config().ResolveDelay
	}
	h.reply(r, i, fmt.Sprintf("**Thread marked as Resolved.** It will be tagged and locked in %s (<t:%d:R>). Use /cancel to keep it open.",
		humanDuration(delay), fireAt.Unix()), false)
}

// handleCancel handles /cancel.
func (h *Handlers) handleCancel(r Responder, i *discordgo.InteractionCreate) {
	outcome, err := h.engine.Cancel(h.ctx, i.GuildID, i.ChannelID, actorOf(i))
	if err != nil {
		h.replyError(r, i, err)
		return
	}
	switch outcome {
	case lifecycle.CancelledLock:
		h.reply(r, i, "✅ **Lock cancelled.** This thread will stay open.", false)
	case lifecycle.RenewedThread:
		h.reply(r, i, "✅ **Closure cancelled.** This thread will stay open for now!", false)
	}
}

// handleDuplicate handles /duplicate link. The engine posts the public notice itself,
// so the interaction is deferred and answered privately.
func (h *Handlers) handleDuplicate(r Responder, i *discordgo.InteractionCreate) {
	opt, ok := optionMap(i.ApplicationCommandData().Options)[command.OptOriginal]
	if !ok || opt.StringValue() == "" {
		h.reply(r, i, "Please provide a link to the original post.", true)
		return
	}

	h.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})

	content := "Marked as duplicate."
	if err := h.engine.Duplicate(h.ctx, i.GuildID, i.ChannelID, opt.StringValue(), actorOf(i)); err != nil {
		msg, known := userMessage(err)
		if !known {
			h.log.Error("duplicate failed", zap.String("guild_id", i.GuildID), zap.String("thread_id", i.ChannelID), zap.Error(err))
		}
		content = msg
	}
	if _, err := r.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		h.log.Warn("interaction edit failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
}

// handleLink handles /link set|show|remove.
func (h *Handlers) handleLink(r Responder, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if sub == nil {
		h.reply(r, i, "🚫 Unknown subcommand.", true)
		return
	}

	switch sub.Name {
	case command.SubSet:
		opt, ok := optionMap(sub.Options)[command.OptURL]
		if !ok {
			h.replyError(r, i, lifecycle.ErrInvalidLink)
			return
		}
		l, err := h.engine.SetLink(h.ctx, i.GuildID, i.ChannelID, opt.StringValue(), actorOf(i))
		if err != nil {
			h.replyError(r, i, err)
			return
		}
		h.reply(r, i, "🔗 Link set: "+l.URL, false)
	case command.SubShow:
		l, err := h.engine.Link(h.ctx, i.ChannelID)
		if err != nil {
			h.replyError(r, i, err)
			return
		}
		h.reply(r, i, fmt.Sprintf("🔗 %s (added by <@%s> <t:%d:R>)", l.URL, l.CreatorID, l.CreatedAt.Unix()), true)
	case command.SubRemove:
		if err := h.engine.RemoveLink(h.ctx, i.GuildID, i.ChannelID, actorOf(i)); err != nil {
			h.replyError(r, i, err)
			return
		}
		h.reply(r, i, "Link removed.", false)
	default:
		h.reply(r, i, "🚫 Unknown subcommand.", true)
	}
}

// handleSetup handles /setup, writing the guild settings wholesale.
func (h *Handlers) handleSetup(r Responder, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	g := models.GuildSettings{GuildID: i.GuildID}
	if h.state != nil {
		if guild, err := h.state.Guild(i.GuildID); err == nil {
			g.GuildName = guild.Name
		}
	}
	if opt, ok := opts[command.OptForum]; ok {
		g.ForumChannelID = opt.ChannelValue(nil).ID
	}
	if opt, ok := opts[command.OptResolvedTag]; ok {
		g.ResolvedTagID = opt.StringValue()
	}
	if opt, ok := opts[command.OptDuplicateTag]; ok {
		g.DuplicateTagID = opt.StringValue()
	}
	if opt, ok := opts[command.OptUnansweredTag]; ok {
		g.UnansweredTag = opt.StringValue()
	}
	if opt, ok := opts[command.OptHelperRole]; ok {
		g.HelperRoleIDs = []string{opt.RoleValue(nil, i.GuildID).ID}
	}

	if err := h.engine.SaveSettings(h.ctx, g, actorOf(i)); err != nil {
		h.replyError(r, i, err)
		return
	}
	h.reply(r, i, fmt.Sprintf("⚙️ Help forum set to <#%s>.", g.ForumChannelID), true)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
