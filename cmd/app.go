package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forum-keeper/audit"
	"forum-keeper/bot"
	"forum-keeper/config"
	"forum-keeper/database"
	"forum-keeper/gateway"
	"forum-keeper/lifecycle"
	"forum-keeper/models"
	"forum-keeper/telemetry"
	"forum-keeper/utils"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app is the wiring shared by the subcommands.
type app struct {
	log       *zap.Logger
	store     *database.Store
	tel       *telemetry.Provider
	bot       *bot.Bot
	gw        *gateway.Discord
	recorder  *audit.Recorder
	mirror    *utils.ChannelLogger
	engine    *lifecycle.Engine
	lifecycle models.LifecycleConfig
	audit     models.AuditConfig
}

func newLogger(v *viper.Viper) (*zap.Logger, error) {
	return utils.NewLogger(v.GetString("log.level"), v.GetBool("log.development"))
}

// newApp opens the store, telemetry and Discord session and builds the engine.
// The session is created but not connected; REST calls work without the websocket.
func newApp(ctx context.Context, v *viper.Viper, logger *zap.Logger) (*app, error) {
	lcfg, err := config.Lifecycle(v)
	if err != nil {
		return nil, err
	}
	acfg, err := config.Audit(v)
	if err != nil {
		return nil, err
	}
	tcfg, err := config.Telemetry(v)
	if err != nil {
		return nil, err
	}

	a := &app{log: logger, lifecycle: lcfg, audit: acfg}

	a.bot, err = bot.NewBot(v.GetString("BOT_TOKEN"), v.GetString("bot.commandGuildId"), logger)
	if err != nil {
		return nil, err
	}

	a.store, err = database.OpenWithRetry(ctx, v.GetString("database.path"), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a.tel, err = telemetry.Init(ctx, tcfg)
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.gw = gateway.NewDiscord(a.bot.Session, lcfg.GatewayTimeout)

	var mirror audit.Mirror
	if acfg.Mirror {
		a.mirror = utils.NewChannelLogger(a.bot.Session, v.GetString("bot.adminChannelId"), lcfg.GatewayTimeout, logger)
		if a.mirror.Enabled() {
			mirror = a.mirror
		}
	}
	a.recorder = audit.NewRecorder(a.store, mirror, logger)

	a.engine, err = lifecycle.New(lifecycle.Deps{
		Registry:  a.store,
		Settings:  a.store,
		Gateway:   a.gw,
		Audit:     a.recorder,
		Logger:    logger,
		Telemetry: a.tel,
	}, lcfg)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.mirror.Close(ctx); err != nil {
		a.log.Warn("admin log flush failed", zap.Error(err))
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("database close failed", zap.Error(err))
	}
}

// seedSaver routes seed-file settings through the engine so they are audited.
type seedSaver struct {
	engine *lifecycle.Engine
}

func (s seedSaver) SaveSettings(ctx context.Context, g models.GuildSettings) error {
	return s.engine.SaveSettings(ctx, g, lifecycle.Actor{Name: "config", CommandText: "guilds seed file"})
}

var errNotReady = errors.New("discord session is not ready")
