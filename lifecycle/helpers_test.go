package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"forum-keeper/database"
	"forum-keeper/gateway"
	"forum-keeper/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	guildID    = "G1"
	forumID    = "F1"
	resolvedID = "tag-resolved"
	dupID      = "tag-dup"
	unanswered = "tag-unanswered"
	helperRole = "role-helper"
	ownerID    = "owner-1"
	day        = 24 * time.Hour
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeGateway keeps threads in memory and records every call.
type fakeGateway struct {
	mu      sync.Mutex
	threads map[string]*gateway.Thread
	sent    map[string][]*discordgo.MessageSend
	calls   map[string]int
	fail    map[string]error
	panicOn string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		threads: make(map[string]*gateway.Thread),
		sent:    make(map[string][]*discordgo.MessageSend),
		calls:   make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (f *fakeGateway) add(th gateway.Thread) {
	f.mu.Lock()
	defer f.mu.Unlock()
	th.AppliedTags = slices.Clone(th.AppliedTags)
	f.threads[th.ID] = &th
}

func (f *fakeGateway) thread(id string) gateway.Thread {
	f.mu.Lock()
	defer f.mu.Unlock()
	th := *f.threads[id]
	th.AppliedTags = slices.Clone(th.AppliedTags)
	return th
}

func (f *fakeGateway) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *fakeGateway) messages(threadID string) []*discordgo.MessageSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent[threadID])
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter records op and returns the injected failure. Callers hold f.mu.
func (f *fakeGateway) enter(op, threadID string) (*gateway.Thread, error) {
	f.calls[op]++
	if f.panicOn == op {
		panic("injected panic in " + op)
	}
	if err := f.fail[op]; err != nil {
		return nil, err
	}
	th, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrThreadNotFound, threadID)
	}
	return th, nil
}

func (f *fakeGateway) FetchThread(_ context.Context, threadID string) (*gateway.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	th, err := f.enter("fetch", threadID)
	if err != nil {
		return nil, err
	}
	cp := *th
	cp.AppliedTags = slices.Clone(th.AppliedTags)
	return &cp, nil
}

func (f *fakeGateway) SetTags(_ context.Context, threadID string, tagIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	th, err := f.enter("tags", threadID)
	if err != nil {
		return err
	}
	th.AppliedTags = slices.Clone(tagIDs)
	return nil
}

func (f *fakeGateway) SetLocked(_ context.Context, threadID string, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	th, err := f.enter("lock", threadID)
	if err != nil {
		return err
	}
	th.Locked = locked
	return nil
}

func (f *fakeGateway) SendMessage(_ context.Context, threadID string, msg *discordgo.MessageSend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter("send", threadID); err != nil {
		return err
	}
	f.sent[threadID] = append(f.sent[threadID], msg)
	return nil
}

func (f *fakeGateway) ActiveForumThreads(_ context.Context, _, forum string) ([]*gateway.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["active"]++
	if err := f.fail["active"]; err != nil {
		return nil, err
	}
	var out []*gateway.Thread
	for _, th := range f.threads {
		if th.ParentID == forum && !th.Archived {
			cp := *th
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memAudit collects audit entries.
type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (m *memAudit) Record(_ context.Context, e models.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memAudit) count(action models.AuditAction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func (m *memAudit) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type harness struct {
	eng   *Engine
	store *database.Store
	gw    *fakeGateway
	clock *fakeClock
	audit *memAudit
}

func testSettings() models.GuildSettings {
	return models.GuildSettings{
		GuildID:        guildID,
		GuildName:      "Test Guild",
		ForumChannelID: forumID,
		ResolvedTagID:  resolvedID,
		DuplicateTagID: dupID,
		UnansweredTag:  unanswered,
		HelperRoleIDs:  []string{helperRole},
	}
}

func openStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newHarness builds an engine over a real SQLite store with G1 configured.
// wrap, if non-nil, may decorate the registry.
func newHarness(t *testing.T, wrap func(Registry) Registry) *harness {
	t.Helper()
	store := openStore(t)
	require.NoError(t, store.SaveSettings(context.Background(), testSettings()))

	h := &harness{
		store: store,
		gw:    newFakeGateway(),
		clock: &fakeClock{now: t0},
		audit: &memAudit{},
	}
	var reg Registry = store
	if wrap != nil {
		reg = wrap(store)
	}
	eng, err := New(Deps{
		Registry: reg,
		Settings: store,
		Gateway:  h.gw,
		Audit:    h.audit,
		Logger:   zaptest.NewLogger(t),
		Now:      h.clock.Now,
	}, DefaultConfig())
	require.NoError(t, err)
	h.eng = eng
	return h
}

// addThread registers a forum thread owned by ownerID in the fake gateway.
func (h *harness) addThread(id string, tags ...string) {
	h.gw.add(gateway.Thread{
		ID:          id,
		GuildID:     guildID,
		ParentID:    forumID,
		OwnerID:     ownerID,
		Name:        "thread " + id,
		AppliedTags: tags,
		CreatedAt:   h.clock.Now(),
	})
}

// track inserts a TrackedThread row created at createdAt.
func (h *harness) track(t *testing.T, id string, createdAt time.Time) {
	t.Helper()
	inserted, err := h.store.InsertTrackedThread(context.Background(), id, guildID, createdAt)
	require.NoError(t, err)
	require.True(t, inserted)
}

func (h *harness) tracked(t *testing.T, id string) *models.TrackedThread {
	t.Helper()
	row, err := h.store.TrackedThread(context.Background(), id)
	require.NoError(t, err)
	return row
}

func (h *harness) pending(t *testing.T, id string) *models.PendingLock {
	t.Helper()
	row, err := h.store.PendingLock(context.Background(), id)
	require.NoError(t, err)
	return row
}

func (h *harness) lockSweep(t *testing.T, at time.Time) SweepReport {
	t.Helper()
	h.clock.Set(at)
	rep, err := h.eng.RunLockSweep(context.Background())
	require.NoError(t, err)
	return rep
}

func (h *harness) staleSweep(t *testing.T, at time.Time) SweepReport {
	t.Helper()
	h.clock.Set(at)
	rep, err := h.eng.RunStaleSweep(context.Background())
	require.NoError(t, err)
	return rep
}

var helper = Actor{ID: "helper-1", Name: "helper"}
