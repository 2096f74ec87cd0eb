package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
	"go.uber.org/zap"
)

// Store is the SQLite-backed settings store and thread registry.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS guild_settings (
        guild_id TEXT PRIMARY KEY,
        guild_name TEXT NOT NULL DEFAULT '',
        forum_channel_id TEXT NOT NULL,
        resolved_tag_id TEXT NOT NULL,
        duplicate_tag_id TEXT NOT NULL,
        unanswered_tag_id TEXT NOT NULL DEFAULT '',
        helper_role_ids TEXT NOT NULL DEFAULT '',
        updated_at INTEGER NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS pending_locks (
        thread_id TEXT PRIMARY KEY,
        guild_id TEXT NOT NULL,
        fire_at INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_pending_locks_fire_at ON pending_locks(fire_at);`,
	`CREATE TABLE IF NOT EXISTS tracked_threads (
        thread_id TEXT PRIMARY KEY,
        guild_id TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        stale_warning_sent INTEGER NOT NULL DEFAULT 0,
        last_renewed_at INTEGER
    );`,
	`CREATE INDEX IF NOT EXISTS idx_tracked_threads_created ON tracked_threads(stale_warning_sent, created_at);`,
	`CREATE TABLE IF NOT EXISTS thread_links (
        thread_id TEXT PRIMARY KEY,
        guild_id TEXT NOT NULL,
        url TEXT NOT NULL,
        creator_id TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS audit_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        guild_id TEXT NOT NULL,
        action TEXT NOT NULL,
        details TEXT NOT NULL DEFAULT '',
        actor_id TEXT NOT NULL DEFAULT '',
        actor_name TEXT NOT NULL DEFAULT '',
        command_text TEXT NOT NULL DEFAULT '',
        thread_id TEXT NOT NULL DEFAULT '',
        message_id TEXT NOT NULL DEFAULT '',
        created_at INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_audit_guild_time ON audit_log(guild_id, created_at);`,
}

// Open initializes the database connection. It takes the database path as input
// and makes sure every table exists.
func Open(dbPath string) (*Store, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; every registry call is a single statement so this never queues for long.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// OpenWithRetry opens the store, retrying with exponential backoff while the file is busy.
func OpenWithRetry(ctx context.Context, dbPath string, logger *zap.Logger) (*Store, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second

	var store *Store
	err := backoff.RetryNotify(func() error {
		s, err := Open(dbPath)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		store = s
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("database busy, retrying", zap.String("path", dbPath), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", zap.String("path", dbPath))
	return store, nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Ping verifies the connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }
