// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/models"
)

// Source lists conversations and counts unread messages.
type Source interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CountUnread(ctx context.Context, conversationID, senderID string, since time.Time) (int, error)
}

// ProfileLookup resolves participant profiles.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Invoker issues mutation RPCs.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload interface{}) (json.RawMessage, error)
}

// Tracker receives unmatch outcomes for monitoring.
type Tracker interface {
	TrackUnmatch(duration time.Duration, success bool)
}

// ChangeKind describes a state change.
type ChangeKind string

const (
	ChangeRefreshed ChangeKind = "refreshed"
	ChangeAdded     ChangeKind = "added"
	ChangeUpdated   ChangeKind = "updated"
	ChangeRemoved   ChangeKind = "removed"
	ChangeRead      ChangeKind = "read"
)

// Change is emitted after the store changes. ConversationID is empty for
// ChangeRefreshed.
type Change struct {
	Kind           ChangeKind `json:"kind"`
	ConversationID string     `json:"conversation_id,omitempty"`
}

// Deps are the collaborators of a Store. Tracker may be nil.
type Deps struct {
	Source   Source
	Profiles ProfileLookup
	RPC      Invoker
	Tracker  Tracker
	Actions  *logging.UserActionLogger
}

// Store is the session user's conversation state.
type Store struct {
	userID   string
	source   Source
	profiles ProfileLookup
	rpc      Invoker
	tracker  Tracker
	actions  *logging.UserActionLogger
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	convs  []*models.ConversationView
	unread map[string]int
	loaded bool

	// loading counts Refresh loads in flight; pending holds the message
	// inserts seen meanwhile so they survive the snapshot swap.
	loading int
	pending []liveMessage

	changes *emitter.Emitter[Change]
	bg      sync.WaitGroup
}

// NewStore returns an empty store for userID.
func NewStore(userID string, deps Deps) *Store {
	return &Store{
		userID:   userID,
		source:   deps.Source,
		profiles: deps.Profiles,
		rpc:      deps.RPC,
		tracker:  deps.Tracker,
		actions:  deps.Actions,
		logger:   logging.WithComponent("conversations").With().Str("user_id", logging.SanitizeUserID(userID)).Logger(),
		now:      time.Now,
		unread:   make(map[string]int),
		changes:  emitter.New[Change]("conversation-store"),
	}
}

// OnChange registers fn for state changes.
func (s *Store) OnChange(fn func(Change)) *emitter.Subscription {
	return s.changes.On(fn)
}

// Loaded reports whether a Refresh has succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// liveMessage is a message insert received from the change feed.
type liveMessage struct {
	conversationID string
	senderID       string
	preview        string
	at             time.Time
}

// Refresh rebuilds the list from the backend. Failures are logged and leave
// the current state untouched. Message inserts received while the snapshot
// loads are replayed onto it before it replaces the current list.
func (s *Store) Refresh(ctx context.Context) {
	start := s.now()
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	views, unread, counted, err := s.load(ctx)

	s.mu.Lock()
	s.loading--
	pending := s.pending
	if s.loading == 0 {
		s.pending = nil
	}
	if err == nil {
		s.replayLocked(views, unread, counted, pending)
		s.convs = views
		s.unread = unread
		s.loaded = true
		s.publishGaugesLocked()
	}
	s.mu.Unlock()

	if err != nil {
		metrics.ConversationRefreshes.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("user_id", logging.SanitizeUserID(s.userID)).
			Msg("Conversation refresh failed, keeping current state")
		return
	}

	metrics.ConversationRefreshes.WithLabelValues("success").Inc()
	s.logger.Debug().
		Int("conversations", len(views)).
		Dur("duration", s.now().Sub(start)).
		Msg("Conversations refreshed")
	s.changes.Emit(Change{Kind: ChangeRefreshed})
}

// replayLocked applies live inserts to a freshly loaded snapshot. A message
// only adds to the unread counter when it was created after that
// conversation's count was taken; earlier ones are already in the count.
func (s *Store) replayLocked(views []*models.ConversationView, unread map[string]int, counted map[string]time.Time, pending []liveMessage) {
	if len(pending) == 0 {
		return
	}
	byID := make(map[string]*models.ConversationView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	for _, m := range pending {
		v, ok := byID[m.conversationID]
		if !ok || !v.HasParticipant(m.senderID) {
			continue
		}
		if other, _ := v.OtherParticipant(s.userID); other == m.senderID && m.at.After(counted[v.ID]) {
			unread[v.ID]++
		}
		if v.LastMessageAt == nil || m.at.After(*v.LastMessageAt) {
			ts := m.at
			v.LastMessage = models.TruncatePreview(m.preview)
			v.LastMessageAt = &ts
			v.UpdatedAt = ts
		}
	}
	sortByUpdated(views)
}

// load fetches a full snapshot without touching state. counted records when
// each unread count was taken.
func (s *Store) load(ctx context.Context) ([]*models.ConversationView, map[string]int, map[string]time.Time, error) {
	list, err := s.source.ListConversations(ctx, s.userID)
	if err != nil {
		return nil, nil, nil, err
	}

	views := make([]*models.ConversationView, 0, len(list))
	unread := make(map[string]int, len(list))
	counted := make(map[string]time.Time, len(list))
	for i := range list {
		c := list[i]
		if err := c.Validate(); err != nil || !c.HasParticipant(s.userID) {
			s.logger.Warn().Str("conversation_id", c.ID).Msg("Skipping malformed conversation")
			continue
		}
		if c.IsDeleted() {
			continue
		}

		other, _ := c.OtherParticipant(s.userID)
		n, err := s.source.CountUnread(ctx, c.ID, other, c.LastReadAt(s.userID))
		if err != nil {
			return nil, nil, nil, err
		}
		unread[c.ID] = n
		counted[c.ID] = s.now()

		views = append(views, s.buildView(ctx, c))
	}
	sortByUpdated(views)
	return views, unread, counted, nil
}

// buildView joins c to its participants' profiles. Profile failures leave
// the profile empty.
func (s *Store) buildView(ctx context.Context, c models.Conversation) *models.ConversationView {
	v := &models.ConversationView{Conversation: c}
	if s.profiles == nil {
		return v
	}
	v.User1 = s.profile(ctx, c.ID, c.User1ID)
	v.User2 = s.profile(ctx, c.ID, c.User2ID)
	if other, ok := c.OtherParticipant(s.userID); ok {
		if other == c.User1ID {
			v.OtherUser = v.User1
		} else {
			v.OtherUser = v.User2
		}
	}
	return v
}

func (s *Store) profile(ctx context.Context, conversationID, userID string) *models.Profile {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("profile_id", logging.SanitizeUserID(userID)).
			Msg("Profile lookup failed")
		return nil
	}
	return p
}

// Conversations returns a snapshot of the list in display order with unread
// counts filled in.
func (s *Store) Conversations() []models.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ConversationView, len(s.convs))
	for i, v := range s.convs {
		out[i] = *v
		out[i].UnreadCount = s.unread[v.ID]
	}
	return out
}

// Get returns one conversation.
func (s *Store) Get(id string) (models.ConversationView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.ConversationView{}, false
	}
	v := *s.convs[i]
	v.UnreadCount = s.unread[id]
	return v, true
}

// Participants returns both participant ids of a known conversation.
func (s *Store) Participants(id string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return "", "", false
	}
	return s.convs[i].User1ID, s.convs[i].User2ID, true
}

// UnreadCount returns the unread counter of id, 0 when unknown.
func (s *Store) UnreadCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[id]
}

// TotalUnread sums every unread counter.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnreadLocked()
}

// MarkRead clears the unread counter of id and reports whether id is known.
// It does not notify the backend; read receipts are sent separately.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return false
	}
	s.unread[id] = 0
	s.publishGaugesLocked()
	s.mu.Unlock()

	s.changes.Emit(Change{Kind: ChangeRead, ConversationID: id})
	return true
}

// UpdatePreview sets the last-message preview of id and moves it into
// position. It reports whether id is known.
func (s *Store) UpdatePreview(id, text string, at time.Time) bool {
	s.mu.Lock()
	ok := s.updatePreviewLocked(id, text, at)
	s.mu.Unlock()

	if ok {
		s.changes.Emit(Change{Kind: ChangeUpdated, ConversationID: id})
	}
	return ok
}

func (s *Store) updatePreviewLocked(id, text string, at time.Time) bool {
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	v := s.convs[i]
	ts := at
	v.LastMessage = models.TruncatePreview(text)
	v.LastMessageAt = &ts
	v.UpdatedAt = ts
	sortByUpdated(s.convs)
	return true
}

// AddConversation prepends v unless its id is already present. It reports
// whether v was added.
func (s *Store) AddConversation(v models.ConversationView) bool {
	s.mu.Lock()
	added := s.addLocked(&v)
	s.mu.Unlock()

	if added {
		s.changes.Emit(Change{Kind: ChangeAdded, ConversationID: v.ID})
	}
	return added
}

func (s *Store) addLocked(v *models.ConversationView) bool {
	if s.indexLocked(v.ID) >= 0 {
		return false
	}
	s.convs = append([]*models.ConversationView{v}, s.convs...)
	if _, ok := s.unread[v.ID]; !ok {
		s.unread[v.ID] = v.UnreadCount
	}
	s.publishGaugesLocked()
	return true
}

func (s *Store) removeLocked(id string) bool {
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.convs = append(s.convs[:i], s.convs[i+1:]...)
	delete(s.unread, id)
	s.publishGaugesLocked()
	return true
}

func (s *Store) indexLocked(id string) int {
	for i, v := range s.convs {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) totalUnreadLocked() int {
	total := 0
	for _, n := range s.unread {
		total += n
	}
	return total
}

func (s *Store) publishGaugesLocked() {
	metrics.UpdateConversationGauges(len(s.convs), s.totalUnreadLocked())
}

// Close waits for background profile enrichment to finish.
func (s *Store) Close() {
	s.bg.Wait()
}

// sortByUpdated orders views by UpdatedAt, most recent first. Ties keep
// their relative order.
func sortByUpdated(views []*models.ConversationView) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
}
