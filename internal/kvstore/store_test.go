package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"ldmonitor/internal/components/telemetry"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openMemory(t testing.TB) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", telemetry.NewRecorder())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type themeValue struct {
	Name string `json:"name"`
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	var out themeValue
	require.False(t, store.Get(ctx, KeyTheme, &out))

	store.Set(ctx, KeyTheme, themeValue{Name: "rpg"})
	require.True(t, store.Get(ctx, KeyTheme, &out))
	require.Equal(t, "rpg", out.Name)

	store.Set(ctx, KeyTheme, themeValue{Name: "cyber"})
	require.True(t, store.Get(ctx, KeyTheme, &out))
	require.Equal(t, "cyber", out.Name)

	store.Set(ctx, KeyTheme, nil)
	require.False(t, store.Get(ctx, KeyTheme, &out))
}

func TestGetUndecodable(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewRecorder()
	store, err := Open(ctx, ":memory:", tel)
	require.NoError(t, err)
	defer store.Close()

	store.Set(ctx, KeyActiveTab, "credit")

	var out themeValue
	require.False(t, store.Get(ctx, KeyActiveTab, &out))
	require.NotEmpty(t, tel.Reports("warning", "store.get"))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	var changes []Change
	unsubscribe := store.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	store.Set(ctx, KeyActiveTab, "credit")
	require.Len(t, changes, 1)
	require.Equal(t, KeyActiveTab, changes[0].Key)
	require.JSONEq(t, `"credit"`, string(changes[0].Value))

	unsubscribe()
	store.Set(ctx, KeyActiveTab, "level")
	require.Len(t, changes, 1)
}

func TestPollOnceSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := Open(ctx, path, telemetry.NewRecorder())
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, path, telemetry.NewRecorder())
	require.NoError(t, err)
	defer second.Close()

	first.Set(ctx, KeyTheme, "pixel")

	var changes []Change
	second.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	// the first poll only records what already exists
	second.PollOnce(ctx)
	require.Empty(t, changes)

	time.Sleep(time.Millisecond)
	first.Set(ctx, KeyTheme, "card")
	second.PollOnce(ctx)
	require.Len(t, changes, 1)

	var theme string
	require.NoError(t, json.Unmarshal(changes[0].Value, &theme))
	require.Equal(t, "card", theme)

	// nothing changed since
	second.PollOnce(ctx)
	require.Len(t, changes, 1)
}

func TestNewAppliesSchema(t *testing.T) {
	database, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	defer database.Close()

	store, err := New(context.Background(), database, telemetry.NewRecorder())
	require.NoError(t, err)

	var count int
	err = database.QueryRow("select count(*) from kv").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	store.Set(context.Background(), KeyCredit, map[string]string{"credits": "12"})
	err = database.QueryRow("select count(*) from kv").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDriverFor(t *testing.T) {
	require.Equal(t, "sqlite", driverFor("state.db"))
	require.Equal(t, "sqlite", driverFor(":memory:"))
	require.Equal(t, "libsql", driverFor("libsql://ldmonitor.turso.io"))
	require.Equal(t, "libsql", driverFor("https://ldmonitor.turso.io"))
}
