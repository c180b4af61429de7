// Package kvstore is a small persistent key-value store backed by sqlite.
// Values are stored as json. Storage failures are reported and swallowed so
// callers can treat the store as best-effort.
package kvstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/telemetry"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

const (
	report_store_get  = "store.get"
	report_store_set  = "store.set"
	report_store_poll = "store.poll"
)

// Keys recognized by the monitor.
const (
	KeyTheme      = "linux_do_theme"
	KeyActiveTab  = "linux_do_active_tab"
	KeyTrustLevel = "linux_do_user_data"
	KeyCredit     = "linux_do_credit_data"
)

// Change is published to subscribers whenever a key is written, either by this
// process or (when polling) by another one.
type Change struct {
	Key   string
	Value json.RawMessage
}

type Store struct {
	db  *sql.DB
	tel telemetry.API

	mu      sync.Mutex
	subs    map[int]func(Change)
	nextSub int
	seen    map[string]int64
}

func driverFor(path string) string {
	if strings.HasPrefix(path, "libsql://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://") {
		return "libsql"
	}
	return "sqlite"
}

// Open opens (or creates) the database at path. Paths starting with
// libsql:// or http(s):// are opened through the libsql driver.
func Open(ctx context.Context, path string, tel telemetry.API) (*Store, error) {
	database, err := sql.Open(driverFor(path), path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every connection to :memory: gets its own empty database
		database.SetMaxOpenConns(1)
	}
	store, err := New(ctx, database, tel)
	if err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

func New(ctx context.Context, database *sql.DB, tel telemetry.API) (*Store, error) {
	assert.NotNil(database)
	assert.NotNil(tel)

	_, err := database.ExecContext(ctx, Schema)
	if err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{
		db:   database,
		tel:  telemetry.NewScopedAPI("kvstore", tel),
		subs: map[int]func(Change){},
		seen: map[string]int64{},
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value stored under key into out. It returns false when the key
// is missing, holds null, or could not be read.
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	var value string
	err := s.db.QueryRowContext(ctx, "select value from kv where key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.tel.ReportBroken(report_store_get, err, key)
		return false
	}
	if value == "null" {
		return false
	}
	err = json.Unmarshal([]byte(value), out)
	if err != nil {
		s.tel.ReportWarning(report_store_get, fmt.Errorf("decode: %w", err), key)
		return false
	}
	return true
}

// Set stores value under key, a nil value stores null.
func (s *Store) Set(ctx context.Context, key string, value any) {
	serialized, err := json.Marshal(value)
	if err != nil {
		s.tel.ReportBroken(report_store_set, fmt.Errorf("encode: %w", err), key)
		return
	}

	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(
		ctx,
		`insert into kv(key, value, updated_at) values (?, ?, ?)
		on conflict(key) do update set value = excluded.value, updated_at = excluded.updated_at`,
		key, string(serialized), now,
	)
	if err != nil {
		s.tel.ReportBroken(report_store_set, err, key)
		return
	}

	s.mu.Lock()
	s.seen[key] = now
	s.mu.Unlock()

	s.publish(Change{Key: key, Value: serialized})
}

// Subscribe registers fn to be called on every change, the returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(change Change) {
	s.mu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}

// PollOnce publishes every key written by another process since the last time
// it was seen by this store.
func (s *Store) PollOnce(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, "select key, value, updated_at from kv")
	if err != nil {
		s.tel.ReportBroken(report_store_poll, err)
		return
	}
	defer rows.Close()

	var changes []Change
	s.mu.Lock()
	for rows.Next() {
		var key, value string
		var updatedAt int64
		err := rows.Scan(&key, &value, &updatedAt)
		if err != nil {
			s.tel.ReportBroken(report_store_poll, err)
			break
		}
		last, known := s.seen[key]
		s.seen[key] = updatedAt
		if known && updatedAt > last {
			changes = append(changes, Change{Key: key, Value: json.RawMessage(value)})
		}
	}
	s.mu.Unlock()

	if err := rows.Err(); err != nil {
		s.tel.ReportBroken(report_store_poll, err)
	}
	for _, c := range changes {
		s.publish(c)
	}
}

// Poll calls PollOnce every interval until ctx is done.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	assert.Positive(interval)

	s.PollOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.PollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
