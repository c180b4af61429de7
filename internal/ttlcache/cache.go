// Package ttlcache keeps the latest value of something expensive to produce in
// memory and in a persistent store, and decides when it has gone stale.
package ttlcache

import (
	"context"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/chrono"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is the persistent side of the cache.
type Store interface {
	Get(ctx context.Context, key string, out any) bool
	Set(ctx context.Context, key string, value any)
}

type Options[T any] struct {
	// Key is the store key the value is persisted under.
	Key    string
	MaxAge time.Duration
	Store  Store
	Clock  chrono.TimeAPI
	// Timestamp returns when a value was produced.
	Timestamp func(T) time.Time
	// Valid rejects values that should never be served from the cache, it
	// defaults to accepting everything.
	Valid func(T) bool
	// Persist decides whether a produced value is written to the store, it
	// defaults to always.
	Persist func(T) bool
	// Coalesce makes concurrent Get calls that need to produce share a single
	// producer run.
	Coalesce bool
}

type Cache[T any] struct {
	opts  Options[T]
	group singleflight.Group

	mu    sync.Mutex
	value T
	has   bool
}

func New[T any](opts Options[T]) *Cache[T] {
	assert.NotEmptyStr(opts.Key)
	assert.Positive(opts.MaxAge)
	assert.NotNil(opts.Store)
	assert.NotNil(opts.Clock)
	assert.NotNil(opts.Timestamp)

	if opts.Valid == nil {
		opts.Valid = func(T) bool { return true }
	}
	if opts.Persist == nil {
		opts.Persist = func(T) bool { return true }
	}
	return &Cache[T]{opts: opts}
}

// Load replaces the memory slot with whatever is in the store. It returns
// false when the store has nothing under the key.
func (c *Cache[T]) Load(ctx context.Context) bool {
	var stored T
	if !c.opts.Store.Get(ctx, c.opts.Key, &stored) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = stored
	c.has = true
	return true
}

// Peek returns the memory slot as is, stale or not.
func (c *Cache[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.has
}

// Fresh reports whether v can be served without producing a new value.
func (c *Cache[T]) Fresh(v T) bool {
	if !c.opts.Valid(v) {
		return false
	}
	return c.opts.Clock.Now().Sub(c.opts.Timestamp(v)) < c.opts.MaxAge
}

// Get serves the memory slot if it is fresh and force is false, otherwise it
// runs produce. A produced value replaces the memory slot, a producer error
// leaves the slot as it was.
func (c *Cache[T]) Get(ctx context.Context, force bool, produce func(ctx context.Context) (T, error)) (T, error) {
	if !force {
		if cached, ok := c.Peek(); ok && c.Fresh(cached) {
			return cached, nil
		}
	}

	if !c.opts.Coalesce {
		return c.produce(ctx, produce)
	}

	res, err, _ := c.group.Do(c.opts.Key, func() (any, error) {
		return c.produce(ctx, produce)
	})
	if err != nil {
		var empty T
		return empty, err
	}
	return res.(T), nil
}

func (c *Cache[T]) produce(ctx context.Context, produce func(ctx context.Context) (T, error)) (T, error) {
	value, err := produce(ctx)
	if err != nil {
		return value, err
	}

	c.mu.Lock()
	c.value = value
	c.has = true
	c.mu.Unlock()

	if c.opts.Persist(value) {
		c.opts.Store.Set(ctx, c.opts.Key, value)
	}
	return value, nil
}

// Clear empties the memory slot and nulls out the stored value.
func (c *Cache[T]) Clear(ctx context.Context) {
	c.mu.Lock()
	var empty T
	c.value = empty
	c.has = false
	c.mu.Unlock()

	c.opts.Store.Set(ctx, c.opts.Key, nil)
}
