package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"forum-keeper/database"
	"forum-keeper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mirrorLine struct {
	level, module, operation, details string
}

type fakeMirror struct{ lines []mirrorLine }

func (f *fakeMirror) add(level, module, operation, details string) {
	f.lines = append(f.lines, mirrorLine{level, module, operation, details})
}

func (f *fakeMirror) Info(module, operation, details string)  { f.add("INFO", module, operation, details) }
func (f *fakeMirror) Warn(module, operation, details string)  { f.add("WARN", module, operation, details) }
func (f *fakeMirror) Error(module, operation, details string) { f.add("ERROR", module, operation, details) }

type failingStore struct{}

func (failingStore) InsertAuditEntry(context.Context, models.AuditEntry) error {
	return errors.New("database is locked")
}

func TestRecorderPersistsAndMirrors(t *testing.T) {
	store, err := database.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	mirror := &fakeMirror{}
	rec := NewRecorder(store, mirror, zap.NewNop())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return at }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, models.AuditEntry{GuildID: "G1", ThreadID: "T1", Action: models.ActionLock, Details: "locked"})
	rec.Record(context.Background(), models.AuditEntry{GuildID: "G1", Action: models.ActionError, Details: "boom"})
	rec.Record(context.Background(), models.AuditEntry{GuildID: "G1", ThreadID: "T2", Action: models.ActionStaleWarning})

	entries, err := store.ListAuditEntries(context.Background(), "G1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.Equal(at))

	require.Len(t, mirror.lines, 3)
	assert.Equal(t, "INFO", mirror.lines[0].level)
	assert.Equal(t, "LOCK", mirror.lines[0].operation)
	assert.Contains(t, mirror.lines[0].details, "<#T1>")
	assert.Equal(t, "ERROR", mirror.lines[1].level)
	assert.Equal(t, "WARN", mirror.lines[2].level)
}

func TestRecorderLogsStoreFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewRecorder(failingStore{}, nil, zap.New(core))

	rec.Record(context.Background(), models.AuditEntry{GuildID: "G1", Action: models.ActionGreet})

	assert.Equal(t, 1, logs.FilterMessage("audit").Len())
	failed := logs.FilterMessage("failed to write audit entry").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "GREET", failed[0].ContextMap()["action"])
}
