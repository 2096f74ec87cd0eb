package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"forum-keeper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenWithRetry(t *testing.T) {
	s, err := OpenWithRetry(context.Background(), filepath.Join(t.TempDir(), "forum.db"), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx, "G1")
	require.NoError(t, err)
	assert.Nil(t, got, "unconfigured guild must have no settings")

	want := models.GuildSettings{
		GuildID:        "G1",
		GuildName:      "Guild One",
		ForumChannelID: "F1",
		ResolvedTagID:  "T-res",
		DuplicateTagID: "T-dup",
		UnansweredTag:  "T-new",
		HelperRoleIDs:  []string{"R1", " R2 ", ""},
	}
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err = s.GetSettings(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"R1", "R2"}, got.HelperRoleIDs)
	assert.Equal(t, "F1", got.ForumChannelID)
	assert.Equal(t, "T-new", got.UnansweredTag)

	// Overwritten wholesale.
	want.UnansweredTag = ""
	want.HelperRoleIDs = nil
	require.NoError(t, s.SaveSettings(ctx, want))
	got, err = s.GetSettings(ctx, "G1")
	require.NoError(t, err)
	assert.Empty(t, got.UnansweredTag)
	assert.Empty(t, got.HelperRoleIDs)

	all, err := s.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPendingLockLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPendingLock(ctx, "T1", "G1", base.Add(30*time.Minute)))
	require.NoError(t, s.UpsertPendingLock(ctx, "T1", "G1", base.Add(45*time.Minute)))

	p, err := s.PendingLock(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.FireAt.Equal(base.Add(45*time.Minute)))

	due, err := s.DuePendingLocks(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.DuePendingLocks(ctx, base.Add(45*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "T1", due[0].ThreadID)

	deleted, err := s.DeletePendingLock(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.DeletePendingLock(ctx, "T1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInsertTrackedThreadPreservesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertTrackedThread(ctx, "T1", "G1", base)
	require.NoError(t, err)
	assert.True(t, inserted)

	_, err = s.SetStaleWarningSent(ctx, "T1", true, nil)
	require.NoError(t, err)

	inserted, err = s.InsertTrackedThread(ctx, "T1", "G1", base.Add(day))
	require.NoError(t, err)
	assert.False(t, inserted)

	tt, err := s.TrackedThread(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, tt)
	assert.True(t, tt.CreatedAt.Equal(base))
	assert.True(t, tt.StaleWarningSent)
	assert.Nil(t, tt.LastRenewedAt)
}

func TestStaleCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	warning, closing := 24*day, 30*day

	_, err := s.InsertTrackedThread(ctx, "old", "G1", base)
	require.NoError(t, err)
	_, err = s.InsertTrackedThread(ctx, "young", "G1", base.Add(10*day))
	require.NoError(t, err)
	_, err = s.InsertTrackedThread(ctx, "renewed", "G1", base)
	require.NoError(t, err)
	renewedAt := base.Add(20 * day)
	_, err = s.SetStaleWarningSent(ctx, "renewed", false, &renewedAt)
	require.NoError(t, err)

	now := base.Add(warning)
	warn, err := s.ThreadsNeedingWarning(ctx, now, warning)
	require.NoError(t, err)
	require.Len(t, warn, 1)
	assert.Equal(t, "old", warn[0].ThreadID)

	closeCands, err := s.ThreadsNeedingClose(ctx, base.Add(closing), closing)
	require.NoError(t, err)
	assert.Empty(t, closeCands, "close requires the warning flag")

	_, err = s.SetStaleWarningSent(ctx, "old", true, nil)
	require.NoError(t, err)
	closeCands, err = s.ThreadsNeedingClose(ctx, base.Add(closing), closing)
	require.NoError(t, err)
	require.Len(t, closeCands, 1)
	assert.Equal(t, "old", closeCands[0].ThreadID)

	warn, err = s.ThreadsNeedingWarning(ctx, renewedAt.Add(warning), warning)
	require.NoError(t, err)
	ids := make([]string, 0, len(warn))
	for _, w := range warn {
		ids = append(ids, w.ThreadID)
	}
	assert.ElementsMatch(t, []string{"renewed", "young"}, ids)

	require.NoError(t, s.DeleteTrackedThread(ctx, "old"))
	tt, err := s.TrackedThread(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, tt)
}

func TestSetStaleWarningSentUntracked(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.SetStaleWarningSent(context.Background(), "missing", false, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThreadLinks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetThreadLink(ctx, models.ThreadLink{
		ThreadID: "T1", GuildID: "G1", URL: "https://example.com/a", CreatorID: "U1", CreatedAt: base,
	}))
	require.NoError(t, s.SetThreadLink(ctx, models.ThreadLink{
		ThreadID: "T1", GuildID: "G1", URL: "https://example.com/b", CreatorID: "U2", CreatedAt: base,
	}))

	l, err := s.ThreadLink(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "https://example.com/b", l.URL)
	assert.Equal(t, "U2", l.CreatorID)

	removed, err := s.DeleteThreadLink(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, removed)
	l, err = s.ThreadLink(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestAuditLogAndCleanup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAuditEntry(ctx, models.AuditEntry{
		GuildID: "G1", Action: models.ActionLock, ThreadID: "T1", CreatedAt: base.AddDate(0, 0, -100),
	}))
	require.NoError(t, s.InsertAuditEntry(ctx, models.AuditEntry{
		GuildID: "G1", Action: models.ActionResolved, ThreadID: "T1", ActorID: "U1", CreatedAt: base,
	}))

	entries, err := s.ListAuditEntries(ctx, "G1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionResolved, entries[0].Action)

	CleanupAuditLog(ctx, s, 90, base, zap.NewNop())

	entries, err = s.ListAuditEntries(ctx, "G1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "U1", entries[0].ActorID)
}
