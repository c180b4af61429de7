package monitor

import (
	"context"
	"fmt"
	"ldmonitor/internal/kvstore"
)

type Tab string

const (
	TabLevel  Tab = "level"
	TabCredit Tab = "credit"
)

func ParseTab(value string) (Tab, error) {
	switch Tab(value) {
	case TabLevel, TabCredit:
		return Tab(value), nil
	}
	return "", fmt.Errorf("unknown tab '%s', expected '%s' or '%s'", value, TabLevel, TabCredit)
}

// ActiveTab returns the tab that was last selected, the level tab by default.
func (m *Monitor) ActiveTab(ctx context.Context) Tab {
	var stored string
	if !m.store.Get(ctx, kvstore.KeyActiveTab, &stored) {
		return TabLevel
	}
	tab, err := ParseTab(stored)
	if err != nil {
		return TabLevel
	}
	return tab
}

func (m *Monitor) SetActiveTab(ctx context.Context, value string) (Tab, error) {
	tab, err := ParseTab(value)
	if err != nil {
		return "", err
	}
	m.store.Set(ctx, kvstore.KeyActiveTab, string(tab))
	return tab, nil
}
