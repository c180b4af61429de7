// Package monitor ties identity, trust level and credit together: it decides
// when cached data can be shown and when it has to be fetched again.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/identity"
	"ldmonitor/internal/kvstore"
	"ldmonitor/internal/trustlevel"
	"ldmonitor/internal/ttlcache"
	"time"
)

const (
	report_monitor_init            = "monitor.init"
	report_monitor_level           = "monitor.level"
	report_monitor_level_achieved  = "monitor.level-achieved"
	report_monitor_credit_activity = "monitor.credit-activity"
)

const (
	LevelMaxAge  = time.Hour
	CreditMaxAge = 30 * time.Minute
)

var ErrNotLoggedIn = errors.New("not logged in to linux.do")

type Store interface {
	ttlcache.Store
	Subscribe(fn func(kvstore.Change)) func()
}

type PageProvider interface {
	Page(ctx context.Context) (identity.Page, error)
}

type LevelSource interface {
	Fetch(ctx context.Context, id identity.Identity) (trustlevel.Snapshot, error)
}

type CreditSource interface {
	Fetch(ctx context.Context, force bool) credit.Snapshot
}

type Options struct {
	Pages  PageProvider
	Level  LevelSource
	Credit CreditSource
	Store  Store
	Clock  chrono.TimeAPI
	// Current is updated with the identity resolved by Init, the credit
	// fetcher reads it to detect account mismatches.
	Current *identity.Current
}

type Monitor struct {
	pages       PageProvider
	levelSource LevelSource
	creditSrc   CreditSource
	store       Store
	current     *identity.Current
	tel         telemetry.API

	level   *ttlcache.Cache[trustlevel.Snapshot]
	credits *ttlcache.Cache[credit.Snapshot]
	Themes  *ThemeManager
}

func New(opts Options, tel telemetry.API) *Monitor {
	assert.NotNil(opts.Pages)
	assert.NotNil(opts.Level)
	assert.NotNil(opts.Credit)
	assert.NotNil(opts.Store)
	assert.NotNil(opts.Clock)
	assert.NotNil(tel)

	current := opts.Current
	if current == nil {
		current = &identity.Current{}
	}
	tel = telemetry.NewScopedAPI("monitor", tel)

	return &Monitor{
		pages:       opts.Pages,
		levelSource: opts.Level,
		creditSrc:   opts.Credit,
		store:       opts.Store,
		current:     current,
		tel:         tel,
		level: ttlcache.New(ttlcache.Options[trustlevel.Snapshot]{
			Key:       kvstore.KeyTrustLevel,
			MaxAge:    LevelMaxAge,
			Store:     opts.Store,
			Clock:     opts.Clock,
			Timestamp: trustlevel.Snapshot.Time,
			Valid: func(s trustlevel.Snapshot) bool {
				return s.Version == trustlevel.DataVersion
			},
			Coalesce: true,
		}),
		credits: ttlcache.New(ttlcache.Options[credit.Snapshot]{
			Key:       kvstore.KeyCredit,
			MaxAge:    CreditMaxAge,
			Store:     opts.Store,
			Clock:     opts.Clock,
			Timestamp: credit.Snapshot.Time,
			Valid: func(s credit.Snapshot) bool {
				return !s.Failed()
			},
			Persist: func(s credit.Snapshot) bool {
				return !s.Failed()
			},
		}),
		Themes: NewThemeManager(opts.Store, tel),
	}
}

// Init resolves who is logged in and loads whatever is cached for them. Data
// cached for a different account is thrown away before anything is loaded.
func (m *Monitor) Init(ctx context.Context) error {
	page, err := m.pages.Page(ctx)
	if err != nil {
		m.tel.ReportWarning(report_monitor_init, err)
		return fmt.Errorf("load forum page: %w", err)
	}
	if !identity.IsLoggedIn(page) {
		return ErrNotLoggedIn
	}

	id := identity.FromPage(page)
	m.current.Set(id)
	m.tel.ReportDebug("identity resolved", "username", id.Username)

	m.Themes.Init(ctx)
	m.level.Load(ctx)
	m.credits.Load(ctx)

	if id.Username == "" {
		return nil
	}
	cached := m.cachedUser()
	if cached != "" && !identity.Same(cached, id.Username) {
		m.tel.ReportDebug("account changed, clearing cache", "from", cached, "to", id.Username)
		m.Clear(ctx)
	}
	return nil
}

func (m *Monitor) cachedUser() string {
	if s, ok := m.level.Peek(); ok && s.Username != "" {
		return s.Username
	}
	if s, ok := m.credits.Peek(); ok {
		return s.CachedUser()
	}
	return ""
}

func (m *Monitor) Identity() identity.Identity {
	return m.current.Get()
}

// CachedLevel returns the stored trust level snapshot if it can be shown, stale or not.
func (m *Monitor) CachedLevel() *trustlevel.Snapshot {
	s, ok := m.level.Peek()
	if !ok || s.Version != trustlevel.DataVersion {
		return nil
	}
	return &s
}

// CachedCredit returns the last credit snapshot that was not a failure.
func (m *Monitor) CachedCredit() *credit.Snapshot {
	s, ok := m.credits.Peek()
	if !ok || s.Failed() {
		return nil
	}
	return &s
}

// Level returns the trust level snapshot, fetching it when the cached one is
// older than an hour or force is set. Concurrent refreshes share one fetch.
func (m *Monitor) Level(ctx context.Context, force bool) (trustlevel.Snapshot, error) {
	s, err := m.level.Get(ctx, force, func(ctx context.Context) (trustlevel.Snapshot, error) {
		return m.levelSource.Fetch(ctx, m.current.Get())
	})
	if err != nil {
		m.tel.ReportWarning(report_monitor_level, err)
		return s, err
	}
	m.tel.ReportCount(report_monitor_level_achieved, int64(s.AchievedCount))
	return s, nil
}

// Credit returns the credit snapshot, fetching it when the cached one is older
// than 30 minutes, is a failure, or force is set.
func (m *Monitor) Credit(ctx context.Context, force bool) credit.Snapshot {
	s, _ := m.credits.Get(ctx, force, func(ctx context.Context) (credit.Snapshot, error) {
		return m.creditSrc.Fetch(ctx, force), nil
	})
	if !s.Failed() {
		m.tel.ReportCount(report_monitor_credit_activity, int64(len(s.IncomeList)+len(s.ExpenseList)))
	}
	return s
}

type RefreshResult struct {
	// Level is the fresh snapshot, or the cached one when LevelErr is set.
	// It is nil if neither exists.
	Level    *trustlevel.Snapshot
	LevelErr error
	Credit   credit.Snapshot
}

// Refresh loads the trust level and then the credit balance, one after the
// other so the two never hit the forum at the same time.
func (m *Monitor) Refresh(ctx context.Context, force bool) RefreshResult {
	var res RefreshResult
	level, err := m.Level(ctx, force)
	if err != nil {
		res.LevelErr = err
		res.Level = m.CachedLevel()
	} else {
		res.Level = &level
	}
	res.Credit = m.Credit(ctx, force)
	return res
}

// Clear forgets both snapshots.
func (m *Monitor) Clear(ctx context.Context) {
	m.level.Clear(ctx)
	m.credits.Clear(ctx)
}

func (m *Monitor) Close() {
	m.Themes.Close()
}
