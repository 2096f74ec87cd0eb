// Package scanner backfills stale tracking for forum threads that were created
// while the bot was offline.
package scanner

import (
	"context"
	"fmt"
	"time"

	"forum-keeper/gateway"
	"forum-keeper/models"

	"go.uber.org/zap"
)

// Registry is the part of the thread registry the backfill writes to.
type Registry interface {
	InsertTrackedThread(ctx context.Context, threadID, guildID string, createdAt time.Time) (bool, error)
}

// SettingsLister lists every configured guild.
type SettingsLister interface {
	ListSettings(ctx context.Context) ([]models.GuildSettings, error)
}

// Result summarizes a backfill run.
type Result struct {
	Guilds   int
	Inserted int
	Existing int
	Skipped  int
	// Failed maps a guild id to the gateway error that stopped its scan.
	Failed map[string]error
}

// Scanner walks the active threads of every configured forum.
type Scanner struct {
	gw       gateway.Gateway
	registry Registry
	settings SettingsLister
	log      *zap.Logger
	maxAge   time.Duration
	now      func() time.Time
}

// New creates a Scanner. Threads older than maxAge are not backfilled; zero means no limit.
func New(gw gateway.Gateway, registry Registry, settings SettingsLister, logger *zap.Logger, maxAge time.Duration) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		gw:       gw,
		registry: registry,
		settings: settings,
		log:      logger,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Backfill inserts a TrackedThread row for every recent, still open thread.
// Existing rows are preserved. A gateway failure only skips its own guild;
// a registry failure aborts the run.
func (s *Scanner) Backfill(ctx context.Context) (Result, error) {
	res := Result{Failed: make(map[string]error)}

	guilds, err := s.settings.ListSettings(ctx)
	if err != nil {
		return res, fmt.Errorf("list guild settings: %w", err)
	}

	for _, g := range guilds {
		res.Guilds++
		threads, err := s.gw.ActiveForumThreads(ctx, g.GuildID, g.ForumChannelID)
		if err != nil {
			s.log.Warn("backfill skipped guild",
				zap.String("guild_id", g.GuildID),
				zap.String("forum_id", g.ForumChannelID),
				zap.Error(err),
			)
			res.Failed[g.GuildID] = err
			continue
		}

		inserted, existing, skipped, err := s.backfillGuild(ctx, g, threads)
		res.Inserted += inserted
		res.Existing += existing
		res.Skipped += skipped
		if err != nil {
			return res, err
		}
		s.log.Info("backfilled guild",
			zap.String("guild_id", g.GuildID),
			zap.String("guild_name", g.GuildName),
			zap.Int("threads", len(threads)),
			zap.Int("inserted", inserted),
		)
	}
	return res, nil
}

func (s *Scanner) backfillGuild(ctx context.Context, g models.GuildSettings, threads []*gateway.Thread) (inserted, existing, skipped int, err error) {
	now := s.now()
	for _, th := range threads {
		if !s.eligible(g, th, now) {
			skipped++
			continue
		}
		ok, err := s.registry.InsertTrackedThread(ctx, th.ID, g.GuildID, th.CreatedAt)
		if err != nil {
			return inserted, existing, skipped, fmt.Errorf("track thread %s: %w", th.ID, err)
		}
		if ok {
			inserted++
		} else {
			existing++
		}
	}
	return inserted, existing, skipped, nil
}

// eligible filters out closed threads, finished threads and threads older than maxAge.
func (s *Scanner) eligible(g models.GuildSettings, th *gateway.Thread, now time.Time) bool {
	if th.ParentID != g.ForumChannelID || th.Locked || th.Archived {
		return false
	}
	if th.HasTag(g.ResolvedTagID) || th.HasTag(g.DuplicateTagID) {
		return false
	}
	if th.CreatedAt.IsZero() {
		return false
	}
	return s.maxAge <= 0 || now.Sub(th.CreatedAt) <= s.maxAge
}
