package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forum-keeper/lifecycle"
	"forum-keeper/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs the two periodic lifecycle passes.
type Sweeper interface {
	RunLockSweep(ctx context.Context) (lifecycle.SweepReport, error)
	RunStaleSweep(ctx context.Context) (lifecycle.SweepReport, error)
}

// Probe is one readiness check; any failing probe marks the bot not serving.
type Probe func(ctx context.Context) error

// HealthReporter receives the outcome of the probes.
type HealthReporter interface {
	SetServing(ok bool)
}

// SchedulerDeps wires the jobs of the Scheduler. Only Sweeper is required.
type SchedulerDeps struct {
	Sweeper Sweeper
	Cleanup func(ctx context.Context)
	Probes  []Probe
	Health  HealthReporter
	Logger  *zap.Logger
}

const (
	healthSpec  = "@every 30s"
	cleanupSpec = "@daily"
)

type job struct {
	spec string
	fn   func()
}

// Scheduler drives the sweeps on cron schedules.
// A job still running when its next tick arrives is skipped.
type Scheduler struct {
	c      *cron.Cron
	deps   SchedulerDeps
	cfg    models.LifecycleConfig
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // startup jobs
}

// NewScheduler registers the lock, stale, cleanup and health jobs.
func NewScheduler(d SchedulerDeps, cfg models.LifecycleConfig) (*Scheduler, error) {
	if d.Sweeper == nil {
		return nil, errors.New("scheduler: sweeper is required")
	}
	if cfg.LockSweepInterval <= 0 || cfg.StaleSweepInterval <= 0 {
		return nil, fmt.Errorf("scheduler: sweep intervals must be positive (lock %s, stale %s)", cfg.LockSweepInterval, cfg.StaleSweepInterval)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	cl := cronLogger{d.Logger.Sugar()}
	s := &Scheduler{
		c:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		deps: d,
		cfg:  cfg,
		log:  d.Logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	jobs := []job{
		{every(cfg.LockSweepInterval), s.lockSweep},
		{every(cfg.StaleSweepInterval), s.staleSweep},
	}
	if d.Cleanup != nil {
		jobs = append(jobs, job{cleanupSpec, func() { d.Cleanup(s.ctx) }})
	}
	if d.Health != nil {
		jobs = append(jobs, job{healthSpec, s.checkHealth})
	}

	for _, j := range jobs {
		if _, err := s.c.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("could not set up cron job %q: %w", j.spec, err)
		}
	}
	return s, nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Start starts the cron loop; optionally runs a stale sweep right away.
func (s *Scheduler) Start() {
	s.c.Start()
	s.log.Info("scheduler started",
		zap.Duration("lock_sweep_interval", s.cfg.LockSweepInterval),
		zap.Duration("stale_sweep_interval", s.cfg.StaleSweepInterval),
		zap.Int("jobs", len(s.c.Entries())))

	if s.deps.Health != nil {
		s.goStartup(s.checkHealth)
	}
	if s.cfg.StaleSweepAtStartup {
		s.goStartup(func() {
			s.log.Info("performing stale sweep on startup")
			s.staleSweep()
		})
	} else {
		s.log.Info("skipping stale sweep on startup as per configuration")
	}
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	done := s.c.Stop()
	s.cancel()
	<-done.Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) goStartup(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.c.Entries()) }

func (s *Scheduler) lockSweep() {
	rep, err := s.deps.Sweeper.RunLockSweep(s.ctx)
	s.logPass("lock", rep, err)
}

func (s *Scheduler) staleSweep() {
	rep, err := s.deps.Sweeper.RunStaleSweep(s.ctx)
	s.logPass("stale", rep, err)
}

func (s *Scheduler) logPass(kind string, rep lifecycle.SweepReport, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("sweep aborted", zap.String("sweep", kind), zap.String("pass_id", rep.PassID), zap.Error(err))
		return
	}
	s.log.Debug("sweep pass finished", zap.String("sweep", kind), zap.Any("report", rep))
}

func (s *Scheduler) checkHealth() {
	ok := true
	for _, p := range s.deps.Probes {
		if err := p(s.ctx); err != nil {
			s.log.Warn("health probe failed", zap.Error(err))
			ok = false
			break
		}
	}
	s.deps.Health.SetServing(ok)
}

// cronLogger adapts zap to cron.Logger. Only errors are kept: cron's Info lines
// are run-loop chatter, and its "stop" line is written after Stop has returned.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (cronLogger) Info(string, ...interface{}) {}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
