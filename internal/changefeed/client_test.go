// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package changefeed

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/stellr/internal/apperrors"
)

func newTestClient() (*Client, *gochannel.GoChannel) {
	ps := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	return NewClient(ps, ps, "changefeed"), ps
}

func messageInsert(id, conversationID, senderID string) Event {
	return Event{
		Table: TableMessages,
		Type:  Insert,
		New:   []byte(`{"id":"` + id + `","conversation_id":"` + conversationID + `","sender_id":"` + senderID + `"}`),
	}
}

func TestDispatchRegistrationOrder(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		if _, err := c.Subscribe(TableMessages, Filter{}, nil, func(Event) { got = append(got, name) }); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}

	c.Dispatch(messageInsert("m1", "c1", "u2"))

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestDispatchFilters(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	var matched, inserts, conversations int
	_, _ = c.Subscribe(TableMessages, Eq("conversation_id", "c1"), nil, func(Event) { matched++ })
	_, _ = c.Subscribe(TableMessages, Filter{}, []EventType{Insert}, func(Event) { inserts++ })
	_, _ = c.Subscribe(TableConversations, Filter{}, nil, func(Event) { conversations++ })

	c.Dispatch(messageInsert("m1", "c1", "u2"))
	c.Dispatch(messageInsert("m2", "c2", "u2"))
	c.Dispatch(Event{Table: TableMessages, Type: Update, New: []byte(`{"id":"m1","conversation_id":"c1"}`)})
	c.Dispatch(Event{Table: TableMessages, Type: Delete, Old: []byte(`{"id":"m1","conversation_id":"c1"}`)})

	if matched != 3 {
		t.Errorf("conversation filter matched %d events, want 3", matched)
	}
	if inserts != 2 {
		t.Errorf("insert-only callback saw %d events, want 2", inserts)
	}
	if conversations != 0 {
		t.Errorf("conversations callback saw %d events, want 0", conversations)
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	calls := 0
	var sub interface{ Unsubscribe() }
	s, err := c.Subscribe(TableMessages, Filter{}, nil, func(Event) {
		calls++
		sub.Unsubscribe()
		sub.Unsubscribe()
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	sub = s

	c.Dispatch(messageInsert("m1", "c1", "u2"))
	c.Dispatch(messageInsert("m2", "c1", "u2"))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	reached := false
	_, _ = c.Subscribe(TableMessages, Filter{}, nil, func(Event) { panic("boom") })
	_, _ = c.Subscribe(TableMessages, Filter{}, nil, func(Event) { reached = true })

	c.Dispatch(messageInsert("m1", "c1", "u2"))

	if !reached {
		t.Error("callback after panicking callback did not run")
	}
}

func TestSubscribeValidation(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	if _, err := c.Subscribe("profiles", Filter{}, nil, func(Event) {}); !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("unknown table err = %v, want validation error", err)
	}
	if _, err := c.Subscribe(TableMessages, Filter{}, nil, nil); !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("nil callback err = %v, want validation error", err)
	}
}

func TestServeDeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	c, ps := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Garbage first: it must be dropped without blocking the table.
	if err := ps.Publish("changefeed.messages", message.NewMessage(watermill.NewUUID(), []byte("not json"))); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		if err := c.Publish(ctx, messageInsert(id, "c1", "u2")); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}
	if err := c.Broadcast(ctx, ChannelTyping, map[string]interface{}{"conversation_id": "c1", "user_id": "u2", "is_typing": true}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	var mu sync.Mutex
	var ids []string
	typing := make(chan Event, 1)
	done := make(chan struct{})
	_, _ = c.Subscribe(TableMessages, Filter{}, nil, func(e Event) {
		var row struct {
			ID string `json:"id"`
		}
		_ = e.DecodeNew(&row)
		mu.Lock()
		ids = append(ids, row.ID)
		if len(ids) == 2 {
			close(done)
		}
		mu.Unlock()
	})
	_, _ = c.Subscribe(ChannelTyping, Filter{}, []EventType{Broadcast}, func(e Event) { typing <- e })

	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message events")
	}
	select {
	case e := <-typing:
		if e.CommitTimestamp.IsZero() {
			t.Error("broadcast has no commit timestamp")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for typing broadcast")
	}

	mu.Lock()
	if !reflect.DeepEqual(ids, []string{"m1", "m2"}) {
		t.Errorf("ids = %v, want [m1 m2]", ids)
	}
	mu.Unlock()

	cancel()
	select {
	case err := <-serveErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	err := c.Publish(context.Background(), Event{Table: TableMessages, Type: Insert})
	if !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestSubscribeAllRollsBack(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient()
	var calls int
	fn := func(Event) { calls++ }

	_, err := SubscribeAll(c,
		Binding{Table: TableMessages, Fn: fn},
		Binding{Table: "payments", Fn: fn},
	)
	if !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Fatalf("SubscribeAll() error = %v, want validation error", err)
	}

	c.Dispatch(messageInsert("m1", "c1", "u2"))
	if calls != 0 {
		t.Errorf("callback ran %d times after rollback", calls)
	}

	sub, err := SubscribeAll(c,
		Binding{Table: TableMessages, Fn: fn},
		Binding{Table: TableConversations, Fn: fn},
	)
	if err != nil {
		t.Fatalf("SubscribeAll() error = %v", err)
	}
	c.Dispatch(messageInsert("m2", "c1", "u2"))
	sub.Unsubscribe()
	c.Dispatch(messageInsert("m3", "c1", "u2"))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
