// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package emitter provides listener registries with disposable subscription
// handles. Listeners run in registration order on the emitting goroutine.
package emitter

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/stellr/internal/logging"
)

// Subscription detaches a listener. Unsubscribe is idempotent and may be
// called from inside the listener itself.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps cancel so that it runs at most once.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe detaches the listener.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type listener[T any] struct {
	id     uint64
	fn     func(T)
	active atomic.Bool
}

// Emitter fans a value out to registered listeners.
type Emitter[T any] struct {
	name      string
	mu        sync.RWMutex
	nextID    uint64
	listeners []*listener[T]
	onChange  func(n int)
}

// New returns an emitter. name identifies it in panic logs.
func New[T any](name string) *Emitter[T] {
	return &Emitter[T]{name: name}
}

// OnCountChange registers a hook receiving the listener count after each
// change. Used for gauges.
func (e *Emitter[T]) OnCountChange(fn func(n int)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// On registers fn and returns its subscription.
func (e *Emitter[T]) On(fn func(T)) *Subscription {
	e.mu.Lock()
	e.nextID++
	l := &listener[T]{id: e.nextID, fn: fn}
	l.active.Store(true)
	e.listeners = append(e.listeners, l)
	n, hook := len(e.listeners), e.onChange
	e.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return NewSubscription(func() { e.remove(l) })
}

func (e *Emitter[T]) remove(l *listener[T]) {
	l.active.Store(false)

	e.mu.Lock()
	for i, cur := range e.listeners {
		if cur.id == l.id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			break
		}
	}
	n, hook := len(e.listeners), e.onChange
	e.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

// Emit delivers v to every listener registered at the time of the call.
// A listener removed during delivery is skipped. Panics are recovered and
// logged so one listener cannot starve the others.
func (e *Emitter[T]) Emit(v T) {
	e.mu.RLock()
	snapshot := make([]*listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.RUnlock()

	for _, l := range snapshot {
		if !l.active.Load() {
			continue
		}
		e.call(l, v)
	}
}

func (e *Emitter[T]) call(l *listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("emitter", e.name).
				Interface("panic", r).
				Msg("Listener panicked")
		}
	}()
	l.fn(v)
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
