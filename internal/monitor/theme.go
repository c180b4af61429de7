package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/kvstore"
	"sync"
)

const report_theme_change = "theme.change"

type Theme struct {
	Key  string
	Name string
	Icon string
}

// Themes in the order Next cycles through them.
var Themes = []Theme{
	{Key: "default", Name: "默认", Icon: "🎨"},
	{Key: "rpg", Name: "RPG", Icon: "⚔️"},
	{Key: "pixel", Name: "像素", Icon: "👾"},
	{Key: "card", Name: "卡牌", Icon: "🃏"},
	{Key: "cyber", Name: "赛博", Icon: "🌆"},
}

const DefaultTheme = "default"

func themeIndex(key string) int {
	for i, theme := range Themes {
		if theme.Key == key {
			return i
		}
	}
	return -1
}

type UnknownThemeError struct {
	Name string
}

func (e UnknownThemeError) Error() string {
	return fmt.Sprintf("unknown theme '%s'", e.Name)
}

// ThemeManager tracks the selected theme, including changes made by other
// processes sharing the same store.
type ThemeManager struct {
	store Store
	tel   telemetry.API

	mu          sync.Mutex
	current     string
	unsubscribe func()
}

func NewThemeManager(store Store, tel telemetry.API) *ThemeManager {
	return &ThemeManager{
		store:   store,
		tel:     tel,
		current: DefaultTheme,
	}
}

// Init applies the stored theme and starts listening for changes.
func (m *ThemeManager) Init(ctx context.Context) {
	var stored string
	if m.store.Get(ctx, kvstore.KeyTheme, &stored) {
		m.apply(stored)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.store.Subscribe(m.onChange)
}

func (m *ThemeManager) onChange(change kvstore.Change) {
	if change.Key != kvstore.KeyTheme {
		return
	}
	var name string
	err := json.Unmarshal(change.Value, &name)
	if err != nil {
		m.tel.ReportWarning(report_theme_change, err)
		return
	}
	m.apply(name)
}

func (m *ThemeManager) apply(name string) {
	if themeIndex(name) < 0 {
		m.tel.ReportWarning(report_theme_change, UnknownThemeError{Name: name})
		return
	}
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
	m.tel.ReportDebug("theme applied", "theme", name)
}

func (m *ThemeManager) Current() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Themes[themeIndex(m.current)]
}

// Switch selects and persists a theme.
func (m *ThemeManager) Switch(ctx context.Context, name string) error {
	if themeIndex(name) < 0 {
		return UnknownThemeError{Name: name}
	}
	m.apply(name)
	m.store.Set(ctx, kvstore.KeyTheme, name)
	return nil
}

// Next switches to the theme after the current one.
func (m *ThemeManager) Next(ctx context.Context) Theme {
	next := Themes[(themeIndex(m.Current().Key)+1)%len(Themes)]
	m.Switch(ctx, next.Key)
	return next
}

func (m *ThemeManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}
