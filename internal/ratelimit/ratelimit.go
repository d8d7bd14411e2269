// Package ratelimit bounds request volume per caller identity with a
// fixed-window counter: O(1) memory and cost per request, at the accepted
// price of up to 2x the nominal rate across a window boundary.
package ratelimit

import (
	"sync"
	"time"
)

// entry is the per-identity counter and its window reset time.
type entry struct {
	count   int
	resetAt time.Time
}

// Limiter admits or rejects requests per identity. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time // injectable for tests
}

// New creates a Limiter allowing limit requests per identity per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// NewWithClock creates a Limiter with an injected clock. For tests.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *Limiter {
	l := New(limit, window)
	l.now = now
	return l
}

// Admit reports whether the identity may proceed. The first request from an
// identity, or the first after its window elapsed, starts a fresh window.
// Requests beyond the limit are rejected, never queued.
func (l *Limiter) Admit(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[identity]
	if !ok || now.After(e.resetAt) {
		l.entries[identity] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.limit {
		return false
	}
	e.count++
	return true
}

// Prune removes identities whose window has elapsed. Optional memory
// hygiene; correctness does not depend on it.
func (l *Limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
		}
	}
}
