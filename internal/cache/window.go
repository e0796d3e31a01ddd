// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package cache

import (
	"sync"
	"time"
)

// SlidingWindow counts events per key inside a trailing time window. It keeps
// exact timestamps, which suits low-volume events such as failed logins.
type SlidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	events  map[string][]time.Time
	now     Clock
}

// NewSlidingWindow creates a window of the given length. maxKeys bounds
// memory; when exceeded the key with the oldest latest event is dropped.
func NewSlidingWindow(window time.Duration, maxKeys int) *SlidingWindow {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &SlidingWindow{
		window:  window,
		maxKeys: maxKeys,
		events:  make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (w *SlidingWindow) WithClock(now Clock) *SlidingWindow {
	w.now = now
	return w
}

// Add records an event for key and returns the count inside the window,
// including this event.
func (w *SlidingWindow) Add(key string) int {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.prune(key, now)
	kept = append(kept, now)
	w.events[key] = kept

	if len(w.events) > w.maxKeys {
		w.evictOldest()
	}
	return len(kept)
}

// Count returns the number of events for key inside the window.
func (w *SlidingWindow) Count(key string) int {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.prune(key, now)
	if len(kept) == 0 {
		delete(w.events, key)
	} else {
		w.events[key] = kept
	}
	return len(kept)
}

// Reset forgets key.
func (w *SlidingWindow) Reset(key string) {
	w.mu.Lock()
	delete(w.events, key)
	w.mu.Unlock()
}

func (w *SlidingWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	ts := w.events[key]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func (w *SlidingWindow) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, ts := range w.events {
		last := ts[len(ts)-1]
		if oldestKey == "" || last.Before(oldest) {
			oldestKey, oldest = k, last
		}
	}
	delete(w.events, oldestKey)
}
