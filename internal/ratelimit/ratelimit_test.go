package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAdmit_LimitWithinWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(10, time.Minute, clock.now)

	for i := 0; i < 10; i++ {
		if !l.Admit("1.2.3.4") {
			t.Fatalf("request %d denied, want admitted", i+1)
		}
	}
	if l.Admit("1.2.3.4") {
		t.Error("11th request admitted, want denied")
	}
}

func TestAdmit_WindowReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(10, time.Minute, clock.now)

	for i := 0; i < 10; i++ {
		l.Admit("1.2.3.4")
	}
	if l.Admit("1.2.3.4") {
		t.Fatal("over-limit request admitted before window elapsed")
	}

	clock.advance(time.Minute + time.Second)
	if !l.Admit("1.2.3.4") {
		t.Error("request denied after window elapsed, want admitted")
	}
}

// A caller that opens a window, saves most of its quota for the end of
// the window, then fires again right after reset lands close to 2x the
// nominal rate in a few seconds of wall time. That burst is accepted
// behavior of fixed-window counting, not a bug.
func TestAdmit_BoundaryBurst(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(10, time.Minute, clock.now)

	if !l.Admit("1.2.3.4") {
		t.Fatal("window-opening request denied")
	}
	clock.advance(59 * time.Second)
	for i := 0; i < 9; i++ {
		if !l.Admit("1.2.3.4") {
			t.Fatalf("end-of-window request %d denied", i+1)
		}
	}

	clock.advance(2 * time.Second)
	for i := 0; i < 10; i++ {
		if !l.Admit("1.2.3.4") {
			t.Fatalf("post-reset request %d denied", i+1)
		}
	}
}

func TestAdmit_IdentitiesIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(10, time.Minute, clock.now)

	for i := 0; i < 10; i++ {
		l.Admit("1.2.3.4")
	}
	if l.Admit("1.2.3.4") {
		t.Fatal("exhausted identity admitted")
	}
	if !l.Admit("5.6.7.8") {
		t.Error("fresh identity denied, want admitted")
	}
	if !l.Admit("unknown") {
		t.Error("unknown identity denied, want admitted")
	}
}

func TestPrune_RemovesExpiredEntries(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(10, time.Minute, clock.now)

	l.Admit("1.2.3.4")
	l.Admit("5.6.7.8")
	clock.advance(2 * time.Minute)
	l.Admit("9.9.9.9")
	l.Prune()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries["1.2.3.4"]; ok {
		t.Error("expired entry not pruned")
	}
	if _, ok := l.entries["9.9.9.9"]; !ok {
		t.Error("active entry pruned")
	}
}
