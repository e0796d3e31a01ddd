// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/models"
)

const me = "user-me"

type fakeSource struct {
	mu      sync.Mutex
	convs   []models.Conversation
	unread  map[string]int
	listErr error
	since   map[string]time.Time
	// duringList runs inside ListConversations, before the snapshot returns.
	duringList func()
}

func (f *fakeSource) ListConversations(_ context.Context, _ string) ([]models.Conversation, error) {
	if f.duringList != nil {
		f.duringList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Conversation(nil), f.convs...), nil
}

func (f *fakeSource) CountUnread(_ context.Context, conversationID, _ string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.since == nil {
		f.since = make(map[string]time.Time)
	}
	f.since[conversationID] = since
	return f.unread[conversationID], nil
}

type fakeProfiles struct {
	fail map[string]bool
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	if f.fail[userID] {
		return nil, apperrors.Network("get_profile", errors.New("timeout"))
	}
	return &models.Profile{ID: userID, DisplayName: "name-" + userID}, nil
}

type invocation struct {
	name    string
	payload interface{}
}

type fakeRPC struct {
	mu    sync.Mutex
	err   error
	calls []invocation
}

func (f *fakeRPC) Invoke(_ context.Context, name string, payload interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{name, payload})
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"success":true}`), nil
}

type fakeTracker struct {
	successes, failures int
}

func (f *fakeTracker) TrackUnmatch(_ time.Duration, success bool) {
	if success {
		f.successes++
	} else {
		f.failures++
	}
}

func at(minutes int) time.Time {
	return time.Date(2026, 3, 1, 12, minutes, 0, 0, time.UTC)
}

func conv(id, other string, updated time.Time) models.Conversation {
	return models.Conversation{ID: id, User1ID: me, User2ID: other, CreatedAt: at(0), UpdatedAt: updated}
}

type harness struct {
	store    *Store
	source   *fakeSource
	rpc      *fakeRPC
	tracker  *fakeTracker
	profiles *fakeProfiles
}

func newHarness(convs ...models.Conversation) *harness {
	h := &harness{
		source:   &fakeSource{convs: convs, unread: map[string]int{}},
		rpc:      &fakeRPC{},
		tracker:  &fakeTracker{},
		profiles: &fakeProfiles{},
	}
	h.store = NewStore(me, Deps{Source: h.source, Profiles: h.profiles, RPC: h.rpc, Tracker: h.tracker})
	return h
}

func ids(views []models.ConversationView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestRefreshBuildsSortedViews(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c-old", "u-a", at(1)), conv("c-new", "u-b", at(5)))
	h.source.unread["c-old"] = 2
	h.store.Refresh(context.Background())

	got := h.store.Conversations()
	if strings.Join(ids(got), ",") != "c-new,c-old" {
		t.Fatalf("order = %v, want c-new,c-old", ids(got))
	}
	if got[1].UnreadCount != 2 {
		t.Errorf("UnreadCount = %d, want 2", got[1].UnreadCount)
	}
	if got[0].OtherUser == nil || got[0].OtherUser.ID != "u-b" {
		t.Errorf("OtherUser = %+v, want u-b", got[0].OtherUser)
	}
	if got[0].User1 == nil || got[0].User1.ID != me {
		t.Errorf("User1 = %+v, want session user", got[0].User1)
	}
	if !h.store.Loaded() {
		t.Error("Loaded() = false after successful refresh")
	}
	if since := h.source.since["c-new"]; !since.Equal(time.Unix(0, 0)) {
		t.Errorf("unread counted since %v, want epoch for never-read thread", since)
	}
}

func TestRefreshSkipsDeletedAndMalformed(t *testing.T) {
	t.Parallel()

	deleted := conv("c-del", "u-a", at(2))
	ts := at(3)
	deleted.DeletedAt = &ts
	self := models.Conversation{ID: "c-self", User1ID: me, User2ID: me, UpdatedAt: at(4)}

	h := newHarness(conv("c-ok", "u-b", at(1)), deleted, self)
	h.store.Refresh(context.Background())

	if got := ids(h.store.Conversations()); len(got) != 1 || got[0] != "c-ok" {
		t.Errorf("conversations = %v, want [c-ok]", got)
	}
}

func TestRefreshToleratesProfileFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.profiles.fail = map[string]bool{"u-a": true}
	h.store.Refresh(context.Background())

	v, ok := h.store.Get("c1")
	if !ok {
		t.Fatal("conversation missing after refresh")
	}
	if v.OtherUser != nil {
		t.Errorf("OtherUser = %+v, want nil after lookup failure", v.OtherUser)
	}
}

func TestRefreshFailureKeepsState(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.source.unread["c1"] = 4
	h.store.Refresh(context.Background())

	h.source.listErr = apperrors.Network("list_conversations", errors.New("connection refused"))
	h.store.Refresh(context.Background())

	if got := ids(h.store.Conversations()); len(got) != 1 || got[0] != "c1" {
		t.Errorf("conversations = %v, want [c1]", got)
	}
	if n := h.store.UnreadCount("c1"); n != 4 {
		t.Errorf("UnreadCount = %d, want 4", n)
	}
}

func TestFirstRefreshFailureLeavesEmptyState(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.source.listErr = errors.New("boom")
	h.store.Refresh(context.Background())

	if len(h.store.Conversations()) != 0 || h.store.Loaded() {
		t.Error("expected empty, unloaded store")
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)))
	h.source.unread["c1"] = 3
	h.source.unread["c2"] = 1
	h.store.Refresh(context.Background())

	if total := h.store.TotalUnread(); total != 4 {
		t.Fatalf("TotalUnread = %d, want 4", total)
	}
	if !h.store.MarkRead("c1") {
		t.Fatal("MarkRead(c1) = false, want true")
	}
	if n := h.store.UnreadCount("c1"); n != 0 {
		t.Errorf("UnreadCount = %d, want 0", n)
	}
	if total := h.store.TotalUnread(); total != 1 {
		t.Errorf("TotalUnread = %d, want 1", total)
	}
	if len(h.rpc.calls) != 0 {
		t.Errorf("MarkRead issued %d backend calls", len(h.rpc.calls))
	}
}

func TestRefreshKeepsMessagesReceivedWhileLoading(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)))
	h.source.unread["c1"] = 2
	h.store.now = func() time.Time { return at(10) }
	feed := newFeed()
	sub, err := h.store.Attach(feed)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer sub.Unsubscribe()

	h.source.duringList = func() {
		// Already included in the backend count taken at minute 10.
		early := models.Message{ID: "m1", ConversationID: "c1", SenderID: "u-a", Content: "early", CreatedAt: at(5)}
		feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, early)})
		late := models.Message{ID: "m2", ConversationID: "c1", SenderID: "u-a", Content: "late", CreatedAt: at(20)}
		feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, late)})
		stranger := models.Message{ID: "m3", ConversationID: "c2", SenderID: "u-x", Content: "nope", CreatedAt: at(30)}
		feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, stranger)})
	}
	h.store.Refresh(context.Background())

	if n := h.store.UnreadCount("c1"); n != 3 {
		t.Errorf("c1 unread = %d, want 3 (2 counted + 1 newer than the count)", n)
	}
	v1, _ := h.store.Get("c1")
	if v1.LastMessage != "late" {
		t.Errorf("c1 preview = %q, want late", v1.LastMessage)
	}
	v2, _ := h.store.Get("c2")
	if v2.LastMessage != "" || v2.UnreadCount != 0 {
		t.Errorf("c2 = preview %q unread %d, want untouched", v2.LastMessage, v2.UnreadCount)
	}
	if got := ids(h.store.Conversations()); strings.Join(got, ",") != "c1,c2" {
		t.Errorf("order = %v, want c1,c2", got)
	}

	h.source.duringList = nil
	h.store.Refresh(context.Background())
	if n := h.store.UnreadCount("c1"); n != 2 {
		t.Errorf("c1 unread after a quiet refresh = %d, want 2", n)
	}
}

func TestMarkReadUnknownConversation(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.store.Refresh(context.Background())
	var changes int
	h.store.OnChange(func(Change) { changes++ })

	if h.store.MarkRead("c-ghost") {
		t.Error("MarkRead(c-ghost) = true, want false")
	}
	h.store.mu.Lock()
	_, ghost := h.store.unread["c-ghost"]
	h.store.mu.Unlock()
	if ghost {
		t.Error("unknown conversation left an unread counter")
	}
	if changes != 0 {
		t.Errorf("change notifications = %d, want 0", changes)
	}
}

func TestUpdatePreview(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)), conv("c3", "u-c", at(3)))
	h.store.Refresh(context.Background())

	long := strings.Repeat("é", 150)
	if !h.store.UpdatePreview("c1", long, at(10)) {
		t.Fatal("UpdatePreview() = false for known conversation")
	}

	got := h.store.Conversations()
	if got[0].ID != "c1" {
		t.Fatalf("order = %v, want c1 first", ids(got))
	}
	preview := got[0].LastMessage
	if utf8.RuneCountInString(preview) != models.PreviewMaxRunes+1 || !strings.HasSuffix(preview, models.PreviewEllipsis) {
		t.Errorf("preview has %d runes, want %d ending in ellipsis", utf8.RuneCountInString(preview), models.PreviewMaxRunes+1)
	}
	if got[0].LastMessageAt == nil || !got[0].LastMessageAt.Equal(at(10)) {
		t.Errorf("LastMessageAt = %v, want %v", got[0].LastMessageAt, at(10))
	}
	if !got[0].UpdatedAt.Equal(at(10)) {
		t.Errorf("UpdatedAt = %v, want %v", got[0].UpdatedAt, at(10))
	}

	exact := strings.Repeat("a", models.PreviewMaxRunes)
	h.store.UpdatePreview("c2", exact, at(11))
	if v, _ := h.store.Get("c2"); v.LastMessage != exact {
		t.Error("preview of exactly 100 runes must not be truncated")
	}

	if h.store.UpdatePreview("missing", "hi", at(12)) {
		t.Error("UpdatePreview() = true for unknown conversation")
	}
}

func TestAddConversationIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(5)))
	h.store.Refresh(context.Background())

	var changes int
	h.store.OnChange(func(Change) { changes++ })

	if !h.store.AddConversation(models.ConversationView{Conversation: conv("c2", "u-b", at(1))}) {
		t.Fatal("AddConversation() = false for new id")
	}
	if h.store.AddConversation(models.ConversationView{Conversation: conv("c2", "u-b", at(1))}) {
		t.Error("AddConversation() = true for duplicate id")
	}

	got := ids(h.store.Conversations())
	if strings.Join(got, ",") != "c2,c1" {
		t.Errorf("conversations = %v, want c2 prepended", got)
	}
	if changes != 1 {
		t.Errorf("change notifications = %d, want 1", changes)
	}
}

func TestDeleteConversation(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)))
	h.source.unread["c1"] = 2
	h.store.Refresh(context.Background())

	if !h.store.DeleteConversation(context.Background(), "c1") {
		t.Fatal("DeleteConversation() = false")
	}
	if _, ok := h.store.Get("c1"); ok {
		t.Error("c1 still present")
	}
	if h.store.TotalUnread() != 0 {
		t.Errorf("TotalUnread = %d, want 0", h.store.TotalUnread())
	}
	call := h.rpc.calls[0]
	if call.name != backend.ProcDeleteConversation {
		t.Errorf("procedure = %q", call.name)
	}
	if p, ok := call.payload.(backend.ConversationPayload); !ok || p.ConversationID != "c1" {
		t.Errorf("payload = %#v", call.payload)
	}
}

func TestMutationFailureLeavesState(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.source.unread["c1"] = 1
	h.store.Refresh(context.Background())
	h.rpc.err = apperrors.Network("invoke delete-conversation", errors.New("503"))

	if h.store.DeleteConversation(context.Background(), "c1") {
		t.Error("DeleteConversation() = true on RPC failure")
	}
	if h.store.ArchiveConversation(context.Background(), "c1", true) {
		t.Error("ArchiveConversation() = true on RPC failure")
	}
	if h.store.Unmatch(context.Background(), "u-a") {
		t.Error("Unmatch() = true on RPC failure")
	}

	v, ok := h.store.Get("c1")
	if !ok || v.IsArchived() || v.UnreadCount != 1 {
		t.Errorf("state changed after failures: ok=%v view=%+v", ok, v)
	}
	if len(h.rpc.calls) != 3 {
		t.Errorf("backend calls = %d, want 3 (no retry)", len(h.rpc.calls))
	}
	if h.tracker.failures != 1 {
		t.Errorf("tracked unmatch failures = %d, want 1", h.tracker.failures)
	}
}

func TestArchiveConversation(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.source.unread["c1"] = 5
	h.store.Refresh(context.Background())

	if !h.store.ArchiveConversation(context.Background(), "c1", true) {
		t.Fatal("ArchiveConversation(true) = false")
	}
	v, _ := h.store.Get("c1")
	if !v.IsArchived() {
		t.Error("archive marker not set")
	}
	if v.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0 after archive", v.UnreadCount)
	}

	if !h.store.ArchiveConversation(context.Background(), "c1", false) {
		t.Fatal("ArchiveConversation(false) = false")
	}
	if v, _ := h.store.Get("c1"); v.IsArchived() {
		t.Error("archive marker not cleared")
	}
	if p, ok := h.rpc.calls[1].payload.(backend.ArchivePayload); !ok || p.Archive {
		t.Errorf("unarchive payload = %#v", h.rpc.calls[1].payload)
	}
}

func TestUnmatchRemovesAllThreadsWithUser(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)), conv("c3", "u-a", at(3)))
	h.store.Refresh(context.Background())

	if !h.store.Unmatch(context.Background(), "u-a") {
		t.Fatal("Unmatch() = false")
	}
	if got := ids(h.store.Conversations()); len(got) != 1 || got[0] != "c2" {
		t.Errorf("conversations = %v, want [c2]", got)
	}
	if h.tracker.successes != 1 {
		t.Errorf("tracked unmatch successes = %d, want 1", h.tracker.successes)
	}
	if p, ok := h.rpc.calls[0].payload.(backend.UnmatchPayload); !ok || p.OtherUserID != "u-a" {
		t.Errorf("payload = %#v", h.rpc.calls[0].payload)
	}
}

func newFeed() *changefeed.Client {
	ps := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	return changefeed.NewClient(ps, ps, "changefeed")
}

func rowJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestFeedMessageInsert(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)), conv("c2", "u-b", at(2)))
	h.store.Refresh(context.Background())
	feed := newFeed()
	sub, err := h.store.Attach(feed)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer sub.Unsubscribe()

	incoming := models.Message{ID: "m1", ConversationID: "c1", SenderID: "u-a", Content: "hey there", CreatedAt: at(20)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, incoming)})

	outgoing := models.Message{ID: "m2", ConversationID: "c1", SenderID: me, Content: "hi", CreatedAt: at(21)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, outgoing)})

	photo := "https://cdn.example.com/p.jpg"
	pic := models.Message{ID: "m3", ConversationID: "c2", SenderID: "u-b", MediaURL: &photo, CreatedAt: at(22)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, pic)})

	unknown := models.Message{ID: "m4", ConversationID: "c-x", SenderID: "u-z", Content: "?", CreatedAt: at(23)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, unknown)})

	stranger := models.Message{ID: "m5", ConversationID: "c1", SenderID: "u-stranger", Content: "injected", CreatedAt: at(30)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, stranger)})

	if n := h.store.UnreadCount("c1"); n != 1 {
		t.Errorf("c1 unread = %d, want 1 (own and non-participant messages do not count)", n)
	}
	v1, _ := h.store.Get("c1")
	if v1.LastMessage != "hi" {
		t.Errorf("c1 preview = %q, want hi (non-participant message ignored)", v1.LastMessage)
	}
	v2, _ := h.store.Get("c2")
	if v2.LastMessage != PhotoPreview || v2.UnreadCount != 1 {
		t.Errorf("c2 = preview %q unread %d", v2.LastMessage, v2.UnreadCount)
	}
	if got := ids(h.store.Conversations()); strings.Join(got, ",") != "c2,c1" {
		t.Errorf("order = %v, want c2,c1", got)
	}
	if _, ok := h.store.Get("c-x"); ok {
		t.Error("message for unknown conversation created an entry")
	}
}

func TestFeedConversationLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.Refresh(context.Background())
	feed := newFeed()
	sub, err := h.store.Attach(feed)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer sub.Unsubscribe()

	// Session user in the second participant column.
	c := models.Conversation{ID: "c9", User1ID: "u-a", User2ID: me, UpdatedAt: at(1)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableConversations, Type: changefeed.Insert, New: rowJSON(t, c)})
	other := models.Conversation{ID: "c-other", User1ID: "u-a", User2ID: "u-b", UpdatedAt: at(1)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableConversations, Type: changefeed.Insert, New: rowJSON(t, other)})
	h.store.Close()

	v, ok := h.store.Get("c9")
	if !ok {
		t.Fatal("inserted conversation missing")
	}
	if v.OtherUser == nil || v.OtherUser.ID != "u-a" {
		t.Errorf("OtherUser = %+v, want u-a after enrichment", v.OtherUser)
	}
	if _, ok := h.store.Get("c-other"); ok {
		t.Error("conversation without session user was added")
	}

	archived := at(5)
	c.ArchivedAt = &archived
	c.UpdatedAt = at(5)
	feed.Dispatch(changefeed.Event{Table: changefeed.TableConversations, Type: changefeed.Update, New: rowJSON(t, c)})
	if v, _ := h.store.Get("c9"); !v.IsArchived() {
		t.Error("archive marker from UPDATE not applied")
	}

	deleted := at(6)
	c.DeletedAt = &deleted
	feed.Dispatch(changefeed.Event{Table: changefeed.TableConversations, Type: changefeed.Update, New: rowJSON(t, c)})
	if _, ok := h.store.Get("c9"); ok {
		t.Error("soft-deleted conversation still present")
	}
}

func TestAttachUnsubscribe(t *testing.T) {
	t.Parallel()

	h := newHarness(conv("c1", "u-a", at(1)))
	h.store.Refresh(context.Background())
	feed := newFeed()
	sub, err := h.store.Attach(feed)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()

	msg := models.Message{ID: "m1", ConversationID: "c1", SenderID: "u-a", Content: "late", CreatedAt: at(9)}
	feed.Dispatch(changefeed.Event{Table: changefeed.TableMessages, Type: changefeed.Insert, New: rowJSON(t, msg)})

	if n := h.store.UnreadCount("c1"); n != 0 {
		t.Errorf("unread = %d after unsubscribe, want 0", n)
	}
}
