package monitor

import (
	"context"
	"errors"
	"fmt"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/identity"
	"ldmonitor/internal/kvstore"
	"ldmonitor/internal/render"
	"ldmonitor/internal/trustlevel"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 8, 1, 12, 0, 0, 0, chrono.CST())

type staticPage struct {
	html string
	err  error
}

func (p staticPage) Page(ctx context.Context) (identity.Page, error) {
	if p.err != nil {
		return identity.Page{}, p.err
	}
	return identity.NewPage([]byte(p.html), "https://linux.do/", nil)
}

func forumPageOf(username string) staticPage {
	return staticPage{html: fmt.Sprintf(`<html><head><meta name="csrf-token" content="csrf-%s"></head>
<body><div class="header-dropdown-toggle current-user"><img alt="%s" src="/letter_avatar/%s/48/1.png"></div></body></html>`,
		username, username, username)}
}

type fakeLevel struct {
	clock  chrono.TimeAPI
	calls  []identity.Identity
	err    error
	events *[]string
}

func (f *fakeLevel) Fetch(ctx context.Context, id identity.Identity) (trustlevel.Snapshot, error) {
	f.calls = append(f.calls, id)
	if f.events != nil {
		*f.events = append(*f.events, "level")
	}
	if f.err != nil {
		return trustlevel.Snapshot{}, f.err
	}
	return trustlevel.Snapshot{
		Username:     id.Username,
		CurrentLevel: "2",
		TargetLevel:  "3",
		Items: []trustlevel.RequirementItem{
			{Label: "访问天数", Current: "52", Required: "50", IsMet: true},
			{Label: "回复的话题", Current: "8", Required: "10", IsMet: false},
		},
		AchievedCount: 1,
		TotalCount:    2,
		Timestamp:     f.clock.Now().UnixMilli(),
		Version:       trustlevel.DataVersion,
	}, nil
}

type fakeCredit struct {
	clock    chrono.TimeAPI
	username string
	calls    int
	failWith string
	events   *[]string
}

func (f *fakeCredit) Fetch(ctx context.Context, force bool) credit.Snapshot {
	f.calls++
	if f.events != nil {
		*f.events = append(*f.events, "credit")
	}
	if f.failWith != "" {
		return credit.Snapshot{Error: f.failWith}
	}
	return credit.Snapshot{
		Username:     f.username,
		UserId:       f.username,
		Credits:      "128.50",
		DailyLimit:   "20",
		IncomeTotal:  "300",
		ExpenseTotal: "12",
		IncomeList:   []credit.Activity{{Date: "07/31", Amount: "+3.00"}},
		ExpenseList:  []credit.Activity{},
		Timestamp:    f.clock.Now().UnixMilli(),
	}
}

type harness struct {
	store   *kvstore.Store
	clock   *chrono.FakeTime
	level   *fakeLevel
	credit  *fakeCredit
	current *identity.Current
	monitor *Monitor
}

func newHarness(t testing.TB, store *kvstore.Store, clock *chrono.FakeTime, page PageProvider) *harness {
	t.Helper()
	h := &harness{
		store:   store,
		clock:   clock,
		level:   &fakeLevel{clock: clock},
		credit:  &fakeCredit{clock: clock, username: "alice"},
		current: &identity.Current{},
	}
	h.monitor = New(Options{
		Pages:   page,
		Level:   h.level,
		Credit:  h.credit,
		Store:   store,
		Clock:   clock,
		Current: h.current,
	}, telemetry.NewRecorder())
	t.Cleanup(h.monitor.Close)
	return h
}

func openStore(t testing.TB, path string) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(context.Background(), path, telemetry.NewRecorder())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIdentityChangeClearsCache(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	alice := newHarness(t, store, clock, forumPageOf("alice"))
	require.NoError(t, alice.monitor.Init(ctx))
	_, err := alice.monitor.Level(ctx, false)
	require.NoError(t, err)
	require.False(t, alice.monitor.Credit(ctx, false).Failed())

	bob := newHarness(t, store, clock, forumPageOf("bob"))
	require.NoError(t, bob.monitor.Init(ctx))
	require.Nil(t, bob.monitor.CachedLevel())
	require.Nil(t, bob.monitor.CachedCredit())

	var stored trustlevel.Snapshot
	require.False(t, store.Get(ctx, kvstore.KeyTrustLevel, &stored))
	var storedCredit credit.Snapshot
	require.False(t, store.Get(ctx, kvstore.KeyCredit, &storedCredit))

	// nothing cached for bob, so the level is fetched for him
	snapshot, err := bob.monitor.Level(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "bob", snapshot.Username)
	require.Equal(t, []identity.Identity{{Username: "bob", CSRFToken: "csrf-bob"}}, bob.level.calls)
	require.Equal(t, "bob", bob.current.Username())
}

func TestSameAccountKeepsCache(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	first := newHarness(t, store, clock, forumPageOf("alice"))
	require.NoError(t, first.monitor.Init(ctx))
	_, err := first.monitor.Level(ctx, false)
	require.NoError(t, err)

	second := newHarness(t, store, clock, forumPageOf("ALICE"))
	require.NoError(t, second.monitor.Init(ctx))
	require.NotNil(t, second.monitor.CachedLevel())

	_, err = second.monitor.Level(ctx, false)
	require.NoError(t, err)
	require.Empty(t, second.level.calls)
}

func TestCreditCacheDecidesIdentityWhenLevelIsMissing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	store.Set(ctx, kvstore.KeyCredit, credit.Snapshot{
		Username:  "爱丽丝",
		UserId:    "alice",
		Credits:   "1",
		Timestamp: testStart.UnixMilli(),
	})

	h := newHarness(t, store, clock, forumPageOf("bob"))
	require.NoError(t, h.monitor.Init(ctx))
	require.Nil(t, h.monitor.CachedCredit())
}

func TestCachedSnapshotsRenderWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ldmonitor.db")
	clock := chrono.NewFakeTime(testStart)

	online := newHarness(t, openStore(t, path), clock, forumPageOf("alice"))
	require.NoError(t, online.monitor.Init(ctx))
	res := online.monitor.Refresh(ctx, false)
	require.NoError(t, res.LevelErr)
	levelView := render.Level(res.Level, "default")
	creditView := render.Credit(&res.Credit, "default")

	clock.Advance(10 * time.Minute)

	offline := newHarness(t, openStore(t, path), clock, forumPageOf("alice"))
	offline.level.err = errors.New("network unreachable")
	offline.credit.failWith = "network unreachable"
	require.NoError(t, offline.monitor.Init(ctx))

	reloaded := offline.monitor.Refresh(ctx, false)
	require.NoError(t, reloaded.LevelErr)
	require.Empty(t, offline.level.calls)
	require.Equal(t, 0, offline.credit.calls)

	require.Equal(t, levelView, render.Level(reloaded.Level, "default"))
	require.Equal(t, creditView, render.Credit(&reloaded.Credit, "default"))
}

func TestStaleSnapshotsAreRefetched(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	h := newHarness(t, store, clock, forumPageOf("alice"))
	require.NoError(t, h.monitor.Init(ctx))
	h.monitor.Refresh(ctx, false)

	clock.Advance(31 * time.Minute)
	h.monitor.Refresh(ctx, false)
	require.Len(t, h.level.calls, 1)
	require.Equal(t, 2, h.credit.calls)

	clock.Advance(30 * time.Minute)
	h.monitor.Refresh(ctx, false)
	require.Len(t, h.level.calls, 2)

	h.monitor.Refresh(ctx, true)
	require.Len(t, h.level.calls, 3)
}

func TestOldDataVersionIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	store.Set(ctx, kvstore.KeyTrustLevel, trustlevel.Snapshot{
		Username:     "alice",
		CurrentLevel: "1",
		Timestamp:    testStart.UnixMilli(),
		Version:      1,
	})

	h := newHarness(t, store, clock, forumPageOf("alice"))
	require.NoError(t, h.monitor.Init(ctx))
	require.Nil(t, h.monitor.CachedLevel())

	snapshot, err := h.monitor.Level(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "2", snapshot.CurrentLevel)
	require.Len(t, h.level.calls, 1)
}

func TestCreditFailuresAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, ":memory:")
	clock := chrono.NewFakeTime(testStart)

	h := newHarness(t, store, clock, forumPageOf("alice"))
	require.NoError(t, h.monitor.Init(ctx))
	require.False(t, h.monitor.Credit(ctx, false).Failed())

	h.credit.failWith = credit.ErrNotLoggedIn
	failed := h.monitor.Credit(ctx, true)
	require.Equal(t, credit.ErrNotLoggedIn, failed.Error)

	var stored credit.Snapshot
	require.True(t, store.Get(ctx, kvstore.KeyCredit, &stored))
	require.Equal(t, "128.50", stored.Credits)
	require.Nil(t, h.monitor.CachedCredit())

	// a failure is never served from the cache
	h.credit.failWith = ""
	require.False(t, h.monitor.Credit(ctx, false).Failed())
	require.Equal(t, 3, h.credit.calls)
}

func TestRefreshLoadsLevelBeforeCredit(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewFakeTime(testStart)
	h := newHarness(t, openStore(t, ":memory:"), clock, forumPageOf("alice"))

	var events []string
	h.level.events = &events
	h.credit.events = &events

	require.NoError(t, h.monitor.Init(ctx))
	h.monitor.Refresh(ctx, true)
	require.Equal(t, []string{"level", "credit"}, events)
}

func TestRefreshKeepsCachedLevelOnFailure(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewFakeTime(testStart)
	h := newHarness(t, openStore(t, ":memory:"), clock, forumPageOf("alice"))
	require.NoError(t, h.monitor.Init(ctx))
	h.monitor.Refresh(ctx, false)

	h.level.err = trustlevel.ErrNoRequirements
	res := h.monitor.Refresh(ctx, true)
	require.ErrorIs(t, res.LevelErr, trustlevel.ErrNoRequirements)
	require.NotNil(t, res.Level)
	require.Equal(t, "alice", res.Level.Username)
}

func TestInitErrors(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewFakeTime(testStart)

	loggedOut := newHarness(t, openStore(t, ":memory:"), clock, staticPage{
		html: `<button class="login-button">登录</button>`,
	})
	require.ErrorIs(t, loggedOut.monitor.Init(ctx), ErrNotLoggedIn)

	boom := errors.New("boom")
	unreachable := newHarness(t, openStore(t, ":memory:"), clock, staticPage{err: boom})
	require.ErrorIs(t, unreachable.monitor.Init(ctx), boom)
}

func TestTabs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, openStore(t, ":memory:"), chrono.NewFakeTime(testStart), forumPageOf("alice"))

	require.Equal(t, TabLevel, h.monitor.ActiveTab(ctx))

	tab, err := h.monitor.SetActiveTab(ctx, "credit")
	require.NoError(t, err)
	require.Equal(t, TabCredit, tab)
	require.Equal(t, TabCredit, h.monitor.ActiveTab(ctx))

	_, err = h.monitor.SetActiveTab(ctx, "settings")
	require.Error(t, err)
	require.Equal(t, TabCredit, h.monitor.ActiveTab(ctx))

	h.store.Set(ctx, kvstore.KeyActiveTab, "garbage")
	require.Equal(t, TabLevel, h.monitor.ActiveTab(ctx))
}
