package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"forum-keeper/bot"
	"forum-keeper/command"
	"forum-keeper/config"
	"forum-keeper/database"
	healthgrpc "forum-keeper/grpc"
	"forum-keeper/handlers"
	"forum-keeper/scanner"
	"forum-keeper/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and keep the forum tidy until interrupted",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, v, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := applyGuildSeeds(ctx, a); err != nil {
		return err
	}

	h := handlers.New(ctx, handlers.Deps{
		Engine:  a.engine,
		Threads: a.gw,
		Auth:    utils.NewAuth(v.GetStringSlice("bot.developers")),
		Audit:   a.recorder,
		Logger:  logger.Named("handlers"),
	})
	a.bot.RegisterCommands(command.GetCommandDefinitions(int(a.lifecycle.MaxResolveDelay / time.Minute)))
	if err := a.bot.Start(ctx, h.Register); err != nil {
		return err
	}
	defer a.bot.Stop()

	if a.lifecycle.BackfillAtStartup {
		res, err := scanner.New(a.gw, a.store, a.store, logger.Named("scanner"), a.lifecycle.CloseWindow).Backfill(ctx)
		if err != nil {
			// 回填失败不阻止启动，下次重启会再试
			logger.Error("startup backfill failed", zap.Error(err))
		} else {
			logger.Info("startup backfill finished",
				zap.Int("guilds", res.Guilds), zap.Int("inserted", res.Inserted),
				zap.Int("existing", res.Existing), zap.Int("skipped", res.Skipped), zap.Int("failed", len(res.Failed)))
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	deps := bot.SchedulerDeps{
		Sweeper: a.engine,
		Cleanup: func(ctx context.Context) {
			database.CleanupAuditLog(ctx, a.store, a.audit.RetentionDays, time.Now(), logger)
		},
		Probes: []bot.Probe{
			a.store.Ping,
			func(context.Context) error {
				if !a.bot.Ready() {
					return errNotReady
				}
				return nil
			},
		},
		Logger: logger.Named("scheduler"),
	}
	if addr := v.GetString("health.address"); addr != "" {
		hs := healthgrpc.NewHealthServer(logger.Named("health"))
		deps.Health = hs
		g.Go(func() error { return hs.ListenAndServe(ctx, addr) })
	}

	sched, err := bot.NewScheduler(deps, a.lifecycle)
	if err != nil {
		return err
	}
	sched.Start()

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("forum-keeper stopped: %w", err)
	}
	return nil
}

func applyGuildSeeds(ctx context.Context, a *app) error {
	seeds, err := config.NewGuildSeeds(v.GetString("guilds.file"), seedSaver{a.engine}, a.log.Named("seeds"))
	if err != nil {
		return err
	}
	if seeds == nil {
		return nil
	}
	if _, err := seeds.Apply(ctx); err != nil {
		return err
	}
	seeds.Watch(ctx)
	return nil
}
