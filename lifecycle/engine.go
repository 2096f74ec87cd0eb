// Package lifecycle drives forum threads from creation to resolution or closure.
//
// The Engine owns the PendingLock and TrackedThread registries. Two periodic
// sweeps (resolve locks, stale threads) and the event/command intents all
// mutate a thread's rows while holding that thread's lock, so a sweep and a
// concurrent command never interleave on the same thread.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"forum-keeper/gateway"
	"forum-keeper/models"
	"forum-keeper/telemetry"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Registry is the thread registry the engine persists its state in.
type Registry interface {
	UpsertPendingLock(ctx context.Context, threadID, guildID string, fireAt time.Time) error
	DeletePendingLock(ctx context.Context, threadID string) (bool, error)
	PendingLock(ctx context.Context, threadID string) (*models.PendingLock, error)
	DuePendingLocks(ctx context.Context, now time.Time) ([]models.PendingLock, error)

	InsertTrackedThread(ctx context.Context, threadID, guildID string, createdAt time.Time) (bool, error)
	TrackedThread(ctx context.Context, threadID string) (*models.TrackedThread, error)
	SetStaleWarningSent(ctx context.Context, threadID string, sent bool, renewedAt *time.Time) (bool, error)
	ThreadsNeedingWarning(ctx context.Context, now time.Time, window time.Duration) ([]models.TrackedThread, error)
	ThreadsNeedingClose(ctx context.Context, now time.Time, window time.Duration) ([]models.TrackedThread, error)
	DeleteTrackedThread(ctx context.Context, threadID string) error

	SetThreadLink(ctx context.Context, l models.ThreadLink) error
	ThreadLink(ctx context.Context, threadID string) (*models.ThreadLink, error)
	DeleteThreadLink(ctx context.Context, threadID string) (bool, error)
}

// SettingsStore reads and writes per-guild settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, guildID string) (*models.GuildSettings, error)
	SaveSettings(ctx context.Context, g models.GuildSettings) error
}

// AuditSink receives audit entries. Recording never fails from the caller's view.
type AuditSink interface {
	Record(ctx context.Context, e models.AuditEntry)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Registry  Registry
	Settings  SettingsStore
	Gateway   gateway.Gateway
	Audit     AuditSink
	Logger    *zap.Logger
	Telemetry *telemetry.Provider
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine is the thread lifecycle state machine.
type Engine struct {
	registry Registry
	settings SettingsStore
	gw       gateway.Gateway
	audit    AuditSink
	log      *zap.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
	now      func() time.Time
	cfg      models.LifecycleConfig
	locks    *threadLocks
}

// DefaultConfig returns the stock windows: 30m resolve delay, 24d warning, 30d close.
func DefaultConfig() models.LifecycleConfig {
	return models.LifecycleConfig{
		ResolveDelay:        30 * time.Minute,
		MaxResolveDelay:     24 * time.Hour,
		WarningWindow:       24 * 24 * time.Hour,
		CloseWindow:         30 * 24 * time.Hour,
		LockSweepInterval:   time.Minute,
		StaleSweepInterval:  6 * time.Hour,
		GatewayTimeout:      10 * time.Second,
		StaleSweepAtStartup: true,
		BackfillAtStartup:   true,
	}
}

// New builds an Engine. Zero durations in cfg fall back to DefaultConfig.
func New(d Deps, cfg models.LifecycleConfig) (*Engine, error) {
	if d.Registry == nil || d.Settings == nil || d.Gateway == nil {
		return nil, fmt.Errorf("lifecycle: registry, settings and gateway are required")
	}
	def := DefaultConfig()
	if cfg.ResolveDelay <= 0 {
		cfg.ResolveDelay = def.ResolveDelay
	}
	if cfg.MaxResolveDelay <= 0 {
		cfg.MaxResolveDelay = def.MaxResolveDelay
	}
	if cfg.WarningWindow <= 0 {
		cfg.WarningWindow = def.WarningWindow
	}
	if cfg.CloseWindow <= 0 {
		cfg.CloseWindow = def.CloseWindow
	}
	if cfg.LockSweepInterval <= 0 {
		cfg.LockSweepInterval = def.LockSweepInterval
	}
	if cfg.StaleSweepInterval <= 0 {
		cfg.StaleSweepInterval = def.StaleSweepInterval
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = def.GatewayTimeout
	}
	if cfg.CloseWindow <= cfg.WarningWindow {
		return nil, fmt.Errorf("lifecycle: close window %s must exceed warning window %s", cfg.CloseWindow, cfg.WarningWindow)
	}

	e := &Engine{
		registry: d.Registry,
		settings: d.Settings,
		gw:       d.Gateway,
		audit:    d.Audit,
		log:      d.Logger,
		now:      d.Now,
		cfg:      cfg,
		locks:    newThreadLocks(),
	}
	if e.audit == nil {
		e.audit = discardAudit{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	tp := d.Telemetry
	if tp == nil {
		tp = telemetry.Noop()
	}
	e.tracer = tp.Tracer
	e.metrics = tp.Metrics
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() models.LifecycleConfig { return e.cfg }

type discardAudit struct{}

func (discardAudit) Record(context.Context, models.AuditEntry) {}

// guildSettings loads settings, mapping absence to ErrGuildNotConfigured.
func (e *Engine) guildSettings(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	g, err := e.settings.GetSettings(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGuildNotConfigured
	}
	return g, nil
}

// record fills the timestamp and hands the entry to the audit sink.
func (e *Engine) record(ctx context.Context, entry models.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.now().UTC()
	}
	e.audit.Record(ctx, entry)
}
