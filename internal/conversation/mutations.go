// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package conversation

import (
	"context"
	"time"

	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

// DeleteConversation deletes id through the backend and removes it locally.
// It reports false on failure and leaves state unchanged. There is no retry.
func (s *Store) DeleteConversation(ctx context.Context, id string) bool {
	_, err := s.rpc.Invoke(ctx, backend.ProcDeleteConversation, backend.ConversationPayload{ConversationID: id})
	if err != nil {
		s.mutationFailed(ctx, "delete", err, "conversation_id", id)
		return false
	}

	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	metrics.RecordConversationMutation("delete", true)
	s.actions.Log("conversation_deleted", s.userID, map[string]string{"conversation_id": id})
	if removed {
		s.changes.Emit(Change{Kind: ChangeRemoved, ConversationID: id})
	}
	return true
}

// ArchiveConversation sets or clears the archive marker of id.
func (s *Store) ArchiveConversation(ctx context.Context, id string, archive bool) bool {
	_, err := s.rpc.Invoke(ctx, backend.ProcArchiveConversation, backend.ArchivePayload{ConversationID: id, Archive: archive})
	if err != nil {
		s.mutationFailed(ctx, "archive", err, "conversation_id", id)
		return false
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i >= 0 {
		if archive {
			ts := s.now().UTC()
			s.convs[i].ArchivedAt = &ts
			delete(s.unread, id)
		} else {
			s.convs[i].ArchivedAt = nil
		}
		s.publishGaugesLocked()
	}
	s.mu.Unlock()

	action := "conversation_unarchived"
	if archive {
		action = "conversation_archived"
	}
	metrics.RecordConversationMutation("archive", true)
	s.actions.Log(action, s.userID, map[string]string{"conversation_id": id})
	if i >= 0 {
		s.changes.Emit(Change{Kind: ChangeUpdated, ConversationID: id})
	}
	return true
}

// Unmatch ends the match with otherUserID and removes every conversation
// with that user. The outcome and its duration are reported to the tracker.
func (s *Store) Unmatch(ctx context.Context, otherUserID string) bool {
	start := s.now()
	_, err := s.rpc.Invoke(ctx, backend.ProcUnmatch, backend.UnmatchPayload{OtherUserID: otherUserID})
	elapsed := s.now().Sub(start)
	if s.tracker != nil {
		s.tracker.TrackUnmatch(elapsed, err == nil)
	}
	if err != nil {
		s.mutationFailed(ctx, "unmatch", err, "other_user_id", logging.SanitizeUserID(otherUserID))
		return false
	}

	var removed []string
	s.mu.Lock()
	kept := s.convs[:0]
	for _, v := range s.convs {
		if other, _ := v.OtherParticipant(s.userID); other == otherUserID {
			removed = append(removed, v.ID)
			delete(s.unread, v.ID)
			continue
		}
		kept = append(kept, v)
	}
	s.convs = kept
	s.publishGaugesLocked()
	s.mu.Unlock()

	metrics.RecordConversationMutation("unmatch", true)
	s.actions.Log("unmatch", s.userID, map[string]string{
		"other_user_id": logging.SanitizeUserID(otherUserID),
		"duration":      elapsed.Round(time.Millisecond).String(),
	})
	for _, id := range removed {
		s.changes.Emit(Change{Kind: ChangeRemoved, ConversationID: id})
	}
	return true
}

func (s *Store) mutationFailed(ctx context.Context, action string, err error, key, value string) {
	metrics.RecordConversationMutation(action, false)
	logging.Ctx(ctx).Error().Err(err).
		Str("action", action).
		Str("user_id", logging.SanitizeUserID(s.userID)).
		Str(key, value).
		Msg("Conversation mutation failed")
}
