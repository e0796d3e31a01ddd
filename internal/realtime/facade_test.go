// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/models"
)

const me = "user-me"

type manualTimer struct {
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func (c *manualClock) afterFunc(_ time.Duration, fn func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fire runs every pending timer once.
func (c *manualClock) fire() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.timers = nil
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []models.TypingEvent
	err    error
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, channel string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if ev, ok := payload.(models.TypingEvent); ok && channel == changefeed.ChannelTyping {
		b.events = append(b.events, ev)
	}
	return nil
}

func (b *fakeBroadcaster) typingStates() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bool, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.IsTyping
	}
	return out
}

type call struct {
	name    string
	payload interface{}
}

type fakeRPC struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (r *fakeRPC) Invoke(_ context.Context, name string, payload interface{}) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name, payload})
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(`{"id":"m-new"}`), nil
}

type fakeTracker struct {
	mu      sync.Mutex
	actions []string
}

func (t *fakeTracker) TrackMessaging(action string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !success {
		action += ":failed"
	}
	t.actions = append(t.actions, action)
}

type fakeParticipants map[string][2]string

func (p fakeParticipants) Participants(id string) (string, string, bool) {
	pair, ok := p[id]
	return pair[0], pair[1], ok
}

type harness struct {
	facade  *Facade
	clock   *manualClock
	bc      *fakeBroadcaster
	rpc     *fakeRPC
	tracker *fakeTracker
	feed    *changefeed.Client
}

func testConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		TypingDebounce:     time.Second,
		TypingTimeout:      5 * time.Second,
		TypingRatePerSec:   100,
		TypingBurst:        100,
		PresenceStaleAfter: 10 * time.Minute,
	}
}

func newHarness(t *testing.T, cfg config.RealtimeConfig) *harness {
	t.Helper()

	h := &harness{
		clock:   &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		bc:      &fakeBroadcaster{},
		rpc:     &fakeRPC{},
		tracker: &fakeTracker{},
	}
	h.facade = New(me, cfg, Deps{
		Broadcaster:  h.bc,
		RPC:          h.rpc,
		Tracker:      h.tracker,
		Participants: fakeParticipants{"c1": {me, "u-a"}},
	})
	h.facade.now = h.clock.Now
	h.facade.afterFunc = h.clock.afterFunc

	ps := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	h.feed = changefeed.NewClient(ps, ps, "changefeed")
	sub, err := h.facade.Attach(h.feed)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	t.Cleanup(func() {
		sub.Unsubscribe()
		h.facade.Close()
	})
	return h
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func (h *harness) typing(t *testing.T, userID string, isTyping bool) {
	t.Helper()
	ev := models.TypingEvent{ConversationID: "c1", UserID: userID, IsTyping: isTyping}
	h.feed.Dispatch(changefeed.Event{Table: changefeed.ChannelTyping, Type: changefeed.Broadcast, New: mustJSON(t, ev)})
}

func TestKeystrokeDebounce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	for _, text := range []string{"h", "he", "hey"} {
		if err := h.facade.Keystroke(ctx, "c1", text); err != nil {
			t.Fatalf("Keystroke(%q) error = %v", text, err)
		}
	}
	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true}) {
		t.Fatalf("events after keystrokes = %v, want one start", got)
	}
	if n := h.clock.pending(); n != 1 {
		t.Errorf("pending timers = %d, want 1 (each keystroke resets the timer)", n)
	}

	h.clock.fire()
	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("events after inactivity = %v, want start then stop", got)
	}

	// Typing again after the stop starts a new cycle.
	_ = h.facade.Keystroke(ctx, "c1", "again")
	if got := h.bc.typingStates(); len(got) != 3 || !got[2] {
		t.Errorf("events = %v, want a new start", got)
	}
}

func TestKeystrokeEmptyTextStops(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	_ = h.facade.Keystroke(ctx, "c1", "hi")
	_ = h.facade.Keystroke(ctx, "c1", "")
	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Fatalf("events = %v, want start then stop", got)
	}

	h.clock.fire()
	if got := h.bc.typingStates(); len(got) != 2 {
		t.Errorf("stale timer sent another event: %v", got)
	}

	_ = h.facade.Keystroke(ctx, "c1", "   ")
	if got := h.bc.typingStates(); len(got) != 2 {
		t.Errorf("blank text while idle sent an event: %v", got)
	}
}

func TestStopTypingCancelsDebounce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	_ = h.facade.Keystroke(ctx, "c1", "hi")
	if err := h.facade.StopTyping(ctx, "c1"); err != nil {
		t.Fatalf("StopTyping() error = %v", err)
	}
	h.clock.fire()

	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("events = %v, want exactly start then stop", got)
	}
}

func TestTypingRateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.TypingRatePerSec = 0.001
	cfg.TypingBurst = 1
	h := newHarness(t, cfg)
	ctx := context.Background()

	_ = h.facade.StartTyping(ctx, "c1")
	_ = h.facade.StartTyping(ctx, "c1")
	_ = h.facade.StopTyping(ctx, "c1")
	_ = h.facade.StartTyping(ctx, "c2")

	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Errorf("events = %v, want start, stop (second start limited), start in other conversation", got)
	}
}

func TestKeystrokeUndeliveredStartIsRetried(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	h.bc.mu.Lock()
	h.bc.err = errors.New("publisher closed")
	h.bc.mu.Unlock()
	if err := h.facade.Keystroke(ctx, "c1", "h"); !apperrors.Is(err, apperrors.CategoryNetwork) {
		t.Fatalf("Keystroke() error = %v, want network error", err)
	}
	if n := h.clock.pending(); n != 0 {
		t.Errorf("pending timers = %d after undelivered start, want 0", n)
	}

	h.bc.mu.Lock()
	h.bc.err = nil
	h.bc.mu.Unlock()
	if err := h.facade.Keystroke(ctx, "c1", "he"); err != nil {
		t.Fatalf("Keystroke() error = %v", err)
	}
	h.clock.fire()
	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("events = %v, want the retried start then stop", got)
	}
}

func TestKeystrokeLimitedStartSendsNoStop(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.TypingRatePerSec = 0.001
	cfg.TypingBurst = 1
	h := newHarness(t, cfg)
	ctx := context.Background()

	_ = h.facade.StartTyping(ctx, "c1")
	_ = h.facade.StopTyping(ctx, "c1")

	if err := h.facade.Keystroke(ctx, "c1", "hi"); err != nil {
		t.Fatalf("Keystroke() error = %v, want limited start to be silent", err)
	}
	h.clock.fire()
	_ = h.facade.Keystroke(ctx, "c1", "")

	if got := h.bc.typingStates(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("events = %v, want no stop for a start that was never sent", got)
	}
}

func TestTypingBroadcastFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	h.bc.err = errors.New("publisher closed")

	err := h.facade.StartTyping(context.Background(), "c1")
	if !apperrors.Is(err, apperrors.CategoryNetwork) {
		t.Errorf("StartTyping() error = %v, want network error", err)
	}
	if err := h.facade.StartTyping(context.Background(), ""); !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("StartTyping(\"\") error = %v, want validation error", err)
	}
}

func TestRemoteTypingStateMachine(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())

	var seen []bool
	h.facade.OnTyping(func(ev models.TypingEvent) { seen = append(seen, ev.IsTyping) })

	h.typing(t, "u-a", true)
	h.typing(t, "u-a", true)
	if !h.facade.IsTyping("c1", "u-a") {
		t.Fatal("u-a should be typing")
	}
	h.typing(t, "u-a", false)
	h.typing(t, "u-a", false)
	if h.facade.IsTyping("c1", "u-a") {
		t.Fatal("u-a should be idle after stop")
	}

	// Safety timeout.
	h.typing(t, "u-a", true)
	h.clock.fire()
	if h.facade.IsTyping("c1", "u-a") {
		t.Fatal("u-a should be idle after timeout")
	}

	// Own echoes are ignored.
	h.typing(t, me, true)

	want := []bool{true, false, true, false}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestTypingUsers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())

	h.typing(t, "u-b", true)
	h.typing(t, "u-a", true)
	if got := h.facade.TypingUsers("c1"); !reflect.DeepEqual(got, []string{"u-a", "u-b"}) {
		t.Errorf("TypingUsers = %v", got)
	}
	if got := h.facade.TypingUsers("c2"); len(got) != 0 {
		t.Errorf("TypingUsers(c2) = %v, want none", got)
	}
}

func TestListenerOrderAndUnsubscribe(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())

	var order []string
	first := h.facade.OnTyping(func(models.TypingEvent) { order = append(order, "first") })
	h.facade.OnTyping(func(models.TypingEvent) { order = append(order, "second") })

	h.typing(t, "u-a", true)
	first.Unsubscribe()
	first.Unsubscribe()
	h.typing(t, "u-a", false)

	if want := []string{"first", "second", "second"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestDeliveryAndReadReceipts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())

	var deliveries []models.DeliveryUpdate
	var receipts []models.ReadReceipt
	h.facade.OnMessageDelivery(func(d models.DeliveryUpdate) { deliveries = append(deliveries, d) })
	h.facade.OnReadReceipt(func(r models.ReadReceipt) { receipts = append(receipts, r) })

	sent := models.Message{ID: "m1", ConversationID: "c1", SenderID: me, Status: models.MessageStatusSent}
	delivered := sent
	deliveredAt := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	delivered.Status = models.MessageStatusDelivered
	delivered.DeliveredAt = &deliveredAt
	h.feed.Dispatch(changefeed.Event{
		Table: changefeed.TableMessages, Type: changefeed.Update,
		Old: mustJSON(t, sent), New: mustJSON(t, delivered),
	})

	read := delivered
	readAt := deliveredAt.Add(time.Minute)
	read.Status = models.MessageStatusRead
	read.ReadAt = &readAt
	h.feed.Dispatch(changefeed.Event{
		Table: changefeed.TableMessages, Type: changefeed.Update,
		Old: mustJSON(t, delivered), New: mustJSON(t, read),
	})

	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %+v, want 2", deliveries)
	}
	if deliveries[0].Status != models.MessageStatusDelivered || !deliveries[0].At.Equal(deliveredAt) {
		t.Errorf("first delivery = %+v", deliveries[0])
	}
	if deliveries[1].Status != models.MessageStatusRead || !deliveries[1].At.Equal(readAt) {
		t.Errorf("second delivery = %+v", deliveries[1])
	}
	if len(receipts) != 1 {
		t.Fatalf("receipts = %+v, want 1", receipts)
	}
	if receipts[0].ReaderID != "u-a" || !receipts[0].ReadAt.Equal(readAt) {
		t.Errorf("receipt = %+v, want reader u-a", receipts[0])
	}
}

func TestReactionsWaitForEcho(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	var events []models.ReactionEvent
	h.facade.OnMessageReaction(func(e models.ReactionEvent) { events = append(events, e) })

	if err := h.facade.AddMessageReaction(ctx, "m1", "❤️", "c1"); err != nil {
		t.Fatalf("AddMessageReaction() error = %v", err)
	}
	if got := h.facade.Reactions("m1"); len(got) != 0 {
		t.Fatalf("reactions before echo = %v, want none", got)
	}
	if h.rpc.calls[0].name != backend.ProcAddReaction {
		t.Errorf("procedure = %q", h.rpc.calls[0].name)
	}
	if p, ok := h.rpc.calls[0].payload.(backend.ReactionPayload); !ok || p.Emoji != "❤️" || p.MessageID != "m1" {
		t.Errorf("payload = %#v", h.rpc.calls[0].payload)
	}

	row := models.Reaction{ID: "r1", MessageID: "m1", ConversationID: "c1", UserID: me, Emoji: "❤️"}
	insert := changefeed.Event{Table: changefeed.TableMessageReactions, Type: changefeed.Insert, New: mustJSON(t, row)}
	h.feed.Dispatch(insert)
	h.feed.Dispatch(insert)

	if got := h.facade.Reactions("m1"); len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("reactions after echo = %+v, want [r1]", got)
	}

	_ = h.facade.RemoveMessageReaction(ctx, "m1", "❤️", "c1")
	if got := h.facade.Reactions("m1"); len(got) != 1 {
		t.Fatal("removal applied before echo")
	}
	h.feed.Dispatch(changefeed.Event{
		Table: changefeed.TableMessageReactions, Type: changefeed.Delete,
		Old: json.RawMessage(`{"id":"r1"}`),
	})
	if got := h.facade.Reactions("m1"); len(got) != 0 {
		t.Errorf("reactions after delete echo = %+v, want none", got)
	}

	// A repeated delete, or one for a reaction never seen, is not announced.
	h.feed.Dispatch(changefeed.Event{
		Table: changefeed.TableMessageReactions, Type: changefeed.Delete,
		Old: json.RawMessage(`{"id":"r1"}`),
	})
	h.feed.Dispatch(changefeed.Event{
		Table: changefeed.TableMessageReactions, Type: changefeed.Delete,
		Old: json.RawMessage(`{"id":"r-unknown","message_id":"m9"}`),
	})

	if len(events) != 2 || events[0].Action != models.ReactionAdded || events[1].Action != models.ReactionRemoved {
		t.Fatalf("events = %+v, want added then removed", events)
	}
	if events[1].Reaction.MessageID != "m1" {
		t.Errorf("removed event = %+v, want full reaction", events[1].Reaction)
	}
}

func TestReactionValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())

	err := h.facade.AddMessageReaction(context.Background(), "m1", "", "c1")
	if !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("error = %v, want validation", err)
	}
	if len(h.rpc.calls) != 0 {
		t.Error("invalid reaction reached the backend")
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	if err := h.facade.AppStateChanged(ctx, true); err != nil {
		t.Fatalf("AppStateChanged(true) error = %v", err)
	}
	_ = h.facade.AppStateChanged(ctx, false)
	statuses := []string{
		h.rpc.calls[0].payload.(backend.PresencePayload).Status,
		h.rpc.calls[1].payload.(backend.PresencePayload).Status,
	}
	if !reflect.DeepEqual(statuses, []string{"online", "away"}) {
		t.Errorf("statuses = %v, want online, away", statuses)
	}

	if err := h.facade.UpdateOnlineStatus(ctx, "invisible"); !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("invalid status error = %v", err)
	}

	var updates int
	h.facade.OnPresence(func(models.PresenceRecord) { updates++ })
	rec := models.PresenceRecord{UserID: "u-a", Status: models.PresenceBusy, LastSeen: h.clock.Now()}
	h.feed.Dispatch(changefeed.Event{Table: changefeed.TableUserPresence, Type: changefeed.Update, New: mustJSON(t, rec)})

	older := rec
	older.Status = models.PresenceOnline
	older.LastSeen = rec.LastSeen.Add(-time.Minute)
	h.feed.Dispatch(changefeed.Event{Table: changefeed.TableUserPresence, Type: changefeed.Update, New: mustJSON(t, older)})

	if got := h.facade.PresenceOf("u-a"); got != models.PresenceBusy {
		t.Errorf("PresenceOf = %q, want busy (older record ignored)", got)
	}
	if updates != 1 {
		t.Errorf("presence updates = %d, want 1", updates)
	}

	h.clock.advance(11 * time.Minute)
	if got := h.facade.PresenceOf("u-a"); got != models.PresenceOffline {
		t.Errorf("PresenceOf after 11m = %q, want offline", got)
	}
	if got := h.facade.PresenceOf("nobody"); got != models.PresenceOffline {
		t.Errorf("PresenceOf(unknown) = %q, want offline", got)
	}
}

func TestClampStaleAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want time.Duration
	}{
		{0, 10 * time.Minute},
		{time.Minute, 5 * time.Minute},
		{7 * time.Minute, 7 * time.Minute},
		{time.Hour, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := clampStaleAfter(tt.in); got != tt.want {
			t.Errorf("clampStaleAfter(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSendMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig())
	ctx := context.Background()

	data, err := h.facade.SendMessage(ctx, "c1", "hello")
	if err != nil || string(data) != `{"id":"m-new"}` {
		t.Fatalf("SendMessage() = %s, %v", data, err)
	}
	if _, err := h.facade.SendMessage(ctx, "c1", ""); !apperrors.Is(err, apperrors.CategoryValidation) {
		t.Errorf("empty content error = %v", err)
	}
	if _, err := h.facade.SendPhotoMessage(ctx, "c1", "https://cdn.example.com/p.jpg", "look"); err != nil {
		t.Errorf("SendPhotoMessage() error = %v", err)
	}
	if err := h.facade.SendReadReceipt(ctx, "c1", nil); err != nil {
		t.Errorf("empty receipt error = %v", err)
	}

	h.rpc.err = apperrors.Network("invoke mark-messages-read", errors.New("503"))
	if err := h.facade.SendReadReceipt(ctx, "c1", []string{"m1"}); err == nil {
		t.Error("SendReadReceipt() = nil on backend failure")
	}

	want := []string{ActionMessageSent, ActionPhotoSent, ActionReadReceipt + ":failed"}
	if !reflect.DeepEqual(h.tracker.actions, want) {
		t.Errorf("tracked = %v, want %v", h.tracker.actions, want)
	}
	if h.rpc.calls[0].name != backend.ProcSendMessage || h.rpc.calls[1].name != backend.ProcSendPhotoMessage {
		t.Errorf("calls = %+v", h.rpc.calls)
	}
}
