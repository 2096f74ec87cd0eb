package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"forum-keeper/models"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettingsSaver persists guild settings read from the seed file.
type SettingsSaver interface {
	SaveSettings(ctx context.Context, g models.GuildSettings) error
}

// ReadGuildSeeds parses the `guilds` map of a seed file, keyed by guild id.
// Entries missing a required id are returned in invalid.
func ReadGuildSeeds(v *viper.Viper) (valid []models.GuildSettings, invalid []string, err error) {
	seeds := make(map[string]models.GuildSeed)
	if err := v.UnmarshalKey("guilds", &seeds); err != nil {
		return nil, nil, fmt.Errorf("invalid guild seed file: %w", err)
	}
	for id, seed := range seeds {
		g := seed.Settings(id)
		if !g.Valid() {
			invalid = append(invalid, id)
			continue
		}
		valid = append(valid, g)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].GuildID < valid[j].GuildID })
	sort.Strings(invalid)
	return valid, invalid, nil
}

// GuildSeeds applies the seed file at path once and then on every change.
// A missing file disables seeding.
type GuildSeeds struct {
	v     *viper.Viper
	saver SettingsSaver
	log   *zap.Logger
	// onApply is called after every apply, for tests.
	onApply func(applied int)
}

// NewGuildSeeds reads the seed file with its own viper instance.
func NewGuildSeeds(path string, saver SettingsSaver, logger *zap.Logger) (*GuildSeeds, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read guild seed file %s: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuildSeeds{v: v, saver: saver, log: logger}, nil
}

// Apply upserts every valid seed entry and returns how many were written.
func (s *GuildSeeds) Apply(ctx context.Context) (int, error) {
	valid, invalid, err := ReadGuildSeeds(s.v)
	if err != nil {
		return 0, err
	}
	for _, id := range invalid {
		s.log.Warn("guild seed is missing forum or tag ids", zap.String("guild_id", id))
	}
	applied := 0
	for _, g := range valid {
		if err := s.saver.SaveSettings(ctx, g); err != nil {
			return applied, fmt.Errorf("save settings for guild %s: %w", g.GuildID, err)
		}
		applied++
	}
	s.log.Info("guild seeds applied", zap.String("file", s.v.ConfigFileUsed()), zap.Int("guilds", applied))
	if s.onApply != nil {
		s.onApply(applied)
	}
	return applied, nil
}

// Watch re-applies the seed file whenever it changes on disk.
func (s *GuildSeeds) Watch(ctx context.Context) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.log.Info("guild seed file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		if _, err := s.Apply(ctx); err != nil {
			s.log.Error("failed to apply guild seeds", zap.Error(err))
		}
	})
	s.v.WatchConfig()
}
