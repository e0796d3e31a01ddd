// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package cache

import (
	"context"
	"sync"
	"time"
)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Keys      int
}

type slot[V any] struct {
	value   V
	expires time.Time
}

func (s slot[V]) live(now time.Time) bool {
	return !now.After(s.expires)
}

// TTL is a map whose entries expire a fixed time after they were written.
// Expired entries are dropped lazily on Get and in bulk by Cleanup.
type TTL[K comparable, V any] struct {
	ttl time.Duration
	now Clock

	mu    sync.Mutex
	slots map[K]slot[V]
	stats Stats
}

// NewTTL creates a cache whose entries live for ttl.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{ttl: ttl, now: time.Now, slots: make(map[K]slot[V])}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTL[K, V]) WithClock(now Clock) *TTL[K, V] {
	c.now = now
	return c
}

// Get returns the live value for key.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	switch {
	case !ok:
		c.stats.Misses++
	case !s.live(now):
		delete(c.slots, key)
		c.stats.Evictions++
		c.stats.Misses++
	default:
		c.stats.Hits++
		return s.value, true
	}
	var zero V
	return zero, false
}

// Set stores value under key with the cache's TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with its own TTL.
func (c *TTL[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	s := slot[V]{value: value, expires: c.now().Add(ttl)}
	c.mu.Lock()
	c.slots[key] = s
	c.mu.Unlock()
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.slots, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet cleaned up.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Cleanup drops expired entries and returns how many it dropped.
func (c *TTL[K, V]) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, s := range c.slots {
		if !s.live(now) {
			delete(c.slots, k)
			n++
		}
	}
	c.stats.Evictions += int64(n)
	return n
}

// Stats returns a snapshot of the counters.
func (c *TTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Keys = len(c.slots)
	return s
}

// RunCleanup calls Cleanup every interval until ctx is canceled.
func (c *TTL[K, V]) RunCleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Cleanup()
		}
	}
}
