package handlers

import (
	"forum-keeper/lifecycle"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ThreadCreate handles the THREAD_CREATE event.
func (h *Handlers) ThreadCreate(t *discordgo.ThreadCreate) {
	// 加入已有线程时也会收到 THREAD_CREATE，只处理新建的
	if t.Channel == nil || !t.NewlyCreated {
		return
	}

	err := h.engine.ThreadCreated(h.ctx, lifecycle.ThreadEvent{
		ThreadID: t.ID,
		GuildID:  t.GuildID,
		ForumID:  t.ParentID,
		OwnerID:  t.OwnerID,
	})
	if err != nil && !lifecycle.IsSkippable(err) {
		h.log.Error("thread create failed", zap.String("guild_id", t.GuildID), zap.String("thread_id", t.ID), zap.Error(err))
	}
}

// ThreadDelete handles the THREAD_DELETE event.
func (h *Handlers) ThreadDelete(t *discordgo.ThreadDelete) {
	if t.Channel == nil {
		return
	}
	if err := h.engine.ThreadDeleted(h.ctx, t.GuildID, t.ID); err != nil {
		h.log.Error("thread delete failed", zap.String("guild_id", t.GuildID), zap.String("thread_id", t.ID), zap.Error(err))
	}
}

// MessageCreate handles human messages posted in guild threads.
func (h *Handlers) MessageCreate(self *discordgo.User, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.GuildID == "" {
		return
	}
	// Ignore all messages created by bots, including this one
	if m.Author.Bot || (self != nil && m.Author.ID == self.ID) {
		return
	}
	// 缓存里能查到的普通频道直接跳过，避免每条消息都请求 API
	if h.state != nil {
		if ch, err := h.state.Channel(m.ChannelID); err == nil && !ch.IsThread() {
			return
		}
	}

	err := h.engine.MessagePosted(h.ctx, lifecycle.MessageEvent{
		ThreadID:  m.ChannelID,
		GuildID:   m.GuildID,
		AuthorID:  m.Author.ID,
		MessageID: m.ID,
	})
	if err != nil && !lifecycle.IsSkippable(err) {
		h.log.Error("message handling failed", zap.String("guild_id", m.GuildID), zap.String("thread_id", m.ChannelID), zap.Error(err))
	}
}
