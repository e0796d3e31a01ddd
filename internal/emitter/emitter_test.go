// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package emitter

import (
	"reflect"
	"testing"
)

func TestEmitRegistrationOrder(t *testing.T) {
	t.Parallel()

	e := New[int]("test")
	var got []string
	e.On(func(int) { got = append(got, "first") })
	e.On(func(int) { got = append(got, "second") })
	e.On(func(int) { got = append(got, "third") })

	e.Emit(1)

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()

	e := New[int]("test")
	calls := 0
	sub := e.On(func(int) { calls++ })

	var counts []int
	e.OnCountChange(func(n int) { counts = append(counts, n) })

	sub.Unsubscribe()
	sub.Unsubscribe()
	e.Emit(1)

	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
	if len(counts) != 1 || counts[0] != 0 {
		t.Errorf("count hook = %v, want [0]", counts)
	}

	var nilSub *Subscription
	nilSub.Unsubscribe()
}

func TestUnsubscribeInsideListener(t *testing.T) {
	t.Parallel()

	e := New[int]("test")
	var self *Subscription
	selfCalls, laterCalls := 0, 0

	self = e.On(func(int) {
		selfCalls++
		self.Unsubscribe()
	})
	var later *Subscription
	e.On(func(int) { later.Unsubscribe() })
	later = e.On(func(int) { laterCalls++ })

	e.Emit(1)
	e.Emit(2)

	if selfCalls != 1 {
		t.Errorf("self-unsubscribing listener ran %d times, want 1", selfCalls)
	}
	if laterCalls != 0 {
		t.Errorf("listener removed mid-delivery ran %d times, want 0", laterCalls)
	}
}

func TestEmitRecoversPanics(t *testing.T) {
	t.Parallel()

	e := New[string]("test")
	reached := false
	e.On(func(string) { panic("boom") })
	e.On(func(string) { reached = true })

	e.Emit("x")

	if !reached {
		t.Error("listener after a panicking one was not called")
	}
}
