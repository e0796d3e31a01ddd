// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := NewTTL[string, int](time.Minute).WithClock(clk.now)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}

	clk.advance(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired Get", c.Len())
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Evictions != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 1 eviction", s)
	}
}

func TestTTLCleanupAndCustomTTL(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := NewTTL[string, string](time.Minute).WithClock(clk.now)

	c.Set("short", "x")
	c.SetWithTTL("long", "y", time.Hour)
	c.Set("deleted", "z")
	c.Delete("deleted")

	clk.advance(2 * time.Minute)
	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if v, ok := c.Get("long"); !ok || v != "y" {
		t.Errorf("Get(long) = %q, %v", v, ok)
	}
}

func TestSlidingWindow(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	w := NewSlidingWindow(5*time.Minute, 0).WithClock(clk.now)

	for i := 1; i <= 3; i++ {
		if got := w.Add("u1"); got != i {
			t.Fatalf("Add #%d = %d", i, got)
		}
		clk.advance(time.Minute)
	}

	// First event now 3 minutes old; advance until it leaves the window.
	clk.advance(2*time.Minute + time.Second)
	if got := w.Count("u1"); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := w.Count("u2"); got != 0 {
		t.Errorf("Count(u2) = %d, want 0", got)
	}

	w.Reset("u1")
	if got := w.Count("u1"); got != 0 {
		t.Errorf("Count after Reset = %d, want 0", got)
	}
}

func TestSlidingWindowEvictsOldestKey(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	w := NewSlidingWindow(time.Hour, 2).WithClock(clk.now)

	w.Add("a")
	clk.advance(time.Second)
	w.Add("b")
	clk.advance(time.Second)
	w.Add("c")

	if got := w.Count("a"); got != 0 {
		t.Errorf("Count(a) = %d, want 0 after eviction", got)
	}
	if got := w.Count("c"); got != 1 {
		t.Errorf("Count(c) = %d, want 1", got)
	}
}
