// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package conversation

import (
	"context"
	"time"

	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/models"
)

// PhotoPreview is the preview shown for a photo message without caption.
const PhotoPreview = "📷 Photo"

// enrichTimeout bounds the profile lookups of a conversation added by the
// change feed.
const enrichTimeout = 10 * time.Second

// Attach subscribes the store to message and conversation changes of the
// session user. The returned subscription detaches every handler.
func (s *Store) Attach(feed changefeed.Subscriber) (*emitter.Subscription, error) {
	insertOnly := []changefeed.EventType{changefeed.Insert}

	// Conversations carry the session user in either participant column.
	return changefeed.SubscribeAll(feed,
		changefeed.Binding{Table: changefeed.TableMessages, Types: insertOnly, Fn: s.onMessageInsert},
		changefeed.Binding{Table: changefeed.TableConversations, Filter: changefeed.Eq("user1_id", s.userID), Fn: s.onConversationChange},
		changefeed.Binding{Table: changefeed.TableConversations, Filter: changefeed.Eq("user2_id", s.userID), Fn: s.onConversationChange},
	)
}

func (s *Store) onMessageInsert(e changefeed.Event) {
	var msg models.Message
	if err := e.DecodeNew(&msg); err != nil {
		s.logger.Warn().Err(err).Msg("Undecodable message row")
		return
	}

	preview := msg.Content
	if preview == "" && msg.MediaURL != nil {
		preview = PhotoPreview
	}
	at := msg.CreatedAt
	if at.IsZero() {
		at = s.now().UTC()
	}

	s.mu.Lock()
	if s.loading > 0 {
		s.pending = append(s.pending, liveMessage{
			conversationID: msg.ConversationID,
			senderID:       msg.SenderID,
			preview:        preview,
			at:             at,
		})
	}
	i := s.indexLocked(msg.ConversationID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if !s.convs[i].HasParticipant(msg.SenderID) {
		s.mu.Unlock()
		s.logger.Warn().Str("conversation_id", msg.ConversationID).Str("sender_id", msg.SenderID).
			Msg("Ignoring message from a non-participant")
		return
	}
	if other, _ := s.convs[i].OtherParticipant(s.userID); other == msg.SenderID {
		s.unread[msg.ConversationID]++
	}
	s.updatePreviewLocked(msg.ConversationID, preview, at)
	s.publishGaugesLocked()
	s.mu.Unlock()

	s.changes.Emit(Change{Kind: ChangeUpdated, ConversationID: msg.ConversationID})
}

func (s *Store) onConversationChange(e changefeed.Event) {
	var c models.Conversation
	var err error
	if e.Type == changefeed.Delete {
		err = e.DecodeOld(&c)
	} else {
		err = e.DecodeNew(&c)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("type", string(e.Type)).Msg("Undecodable conversation row")
		return
	}
	if !c.HasParticipant(s.userID) {
		return
	}

	switch e.Type {
	case changefeed.Insert:
		s.onConversationInsert(c)
	case changefeed.Update:
		s.onConversationUpdate(c)
	case changefeed.Delete:
		s.mu.Lock()
		removed := s.removeLocked(c.ID)
		s.mu.Unlock()
		if removed {
			s.changes.Emit(Change{Kind: ChangeRemoved, ConversationID: c.ID})
		}
	}
}

func (s *Store) onConversationInsert(c models.Conversation) {
	if c.Validate() != nil || c.IsDeleted() {
		return
	}
	if !s.AddConversation(models.ConversationView{Conversation: c}) || s.profiles == nil {
		return
	}

	// Profiles are joined off the dispatch goroutine so a slow lookup does not
	// hold up other change-feed handlers.
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()

		enriched := s.buildView(ctx, c)

		s.mu.Lock()
		i := s.indexLocked(c.ID)
		if i >= 0 {
			s.convs[i].User1 = enriched.User1
			s.convs[i].User2 = enriched.User2
			s.convs[i].OtherUser = enriched.OtherUser
		}
		s.mu.Unlock()

		if i >= 0 {
			s.changes.Emit(Change{Kind: ChangeUpdated, ConversationID: c.ID})
		}
	}()
}

func (s *Store) onConversationUpdate(c models.Conversation) {
	if c.IsDeleted() {
		s.mu.Lock()
		removed := s.removeLocked(c.ID)
		s.mu.Unlock()
		if removed {
			s.changes.Emit(Change{Kind: ChangeRemoved, ConversationID: c.ID})
		}
		return
	}

	s.mu.Lock()
	i := s.indexLocked(c.ID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	v := s.convs[i]
	v.ArchivedAt = c.ArchivedAt
	v.User1LastReadAt = c.User1LastReadAt
	v.User2LastReadAt = c.User2LastReadAt
	if c.LastMessageAt != nil && (v.LastMessageAt == nil || c.LastMessageAt.After(*v.LastMessageAt)) {
		v.LastMessage = models.TruncatePreview(c.LastMessage)
		v.LastMessageAt = c.LastMessageAt
	}
	if c.UpdatedAt.After(v.UpdatedAt) {
		v.UpdatedAt = c.UpdatedAt
		sortByUpdated(s.convs)
	}
	s.mu.Unlock()

	s.changes.Emit(Change{Kind: ChangeUpdated, ConversationID: c.ID})
}
