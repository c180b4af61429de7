// Package ratelimit guards a request path with a lock and a cooldown. Unlike
// a token bucket it never waits: callers are told to come back later.
package ratelimit

import (
	"fmt"
	"ldmonitor/internal/components/assert"
	"ldmonitor/internal/components/chrono"
	"math"
	"sync"
	"time"
)

// BusyError is returned by TryAcquire when a permit cannot be handed out.
type BusyError struct {
	// InFlight is true when another permit has not been released yet.
	InFlight bool
	// Wait is how long until the cooldown is over, zero when InFlight.
	Wait time.Duration
}

func (e *BusyError) Error() string {
	if e.InFlight {
		return "request in flight"
	}
	return fmt.Sprintf("rate limited, retry in %ds", e.WaitSeconds())
}

// WaitSeconds is Wait rounded up to whole seconds.
func (e *BusyError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

type Limiter struct {
	interval time.Duration
	time     chrono.TimeAPI

	mu       sync.Mutex
	inFlight bool
	last     time.Time
}

func NewLimiter(interval time.Duration, clock chrono.TimeAPI) *Limiter {
	assert.Positive(interval)
	assert.NotNil(clock)
	return &Limiter{interval: interval, time: clock}
}

// TryAcquire hands out a permit unless one is in flight or, when force is
// false, the previous permit was acquired less than an interval ago. A
// refused attempt leaves the limiter untouched.
func (l *Limiter) TryAcquire(force bool) (*Permit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight {
		return nil, &BusyError{InFlight: true}
	}

	now := l.time.Now()
	if !force && !l.last.IsZero() {
		elapsed := now.Sub(l.last)
		if elapsed < l.interval {
			return nil, &BusyError{Wait: l.interval - elapsed}
		}
	}

	l.inFlight = true
	l.last = now
	return &Permit{limiter: l}, nil
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
}

// Permit marks a request in flight until released.
type Permit struct {
	limiter *Limiter
	once    sync.Once
}

// Release may be called any number of times.
func (p *Permit) Release() {
	p.once.Do(p.limiter.release)
}
