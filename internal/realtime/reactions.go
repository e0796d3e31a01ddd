// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/models"
	"github.com/tomtom215/stellr/internal/validation"
)

type reactionRequest struct {
	MessageID      string `json:"message_id" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	Emoji          string `json:"emoji" validate:"emoji"`
}

// AddMessageReaction asks the backend to add a reaction. The local reaction
// list changes when the row comes back on the change feed.
func (f *Facade) AddMessageReaction(ctx context.Context, messageID, emoji, conversationID string) error {
	return f.mutateReaction(ctx, backend.ProcAddReaction, ActionReactionAdded, messageID, emoji, conversationID)
}

// RemoveMessageReaction asks the backend to remove a reaction. Like
// AddMessageReaction it waits for the echo.
func (f *Facade) RemoveMessageReaction(ctx context.Context, messageID, emoji, conversationID string) error {
	return f.mutateReaction(ctx, backend.ProcRemoveReaction, ActionReactionRemoved, messageID, emoji, conversationID)
}

func (f *Facade) mutateReaction(ctx context.Context, proc, action, messageID, emoji, conversationID string) error {
	req := reactionRequest{MessageID: messageID, ConversationID: conversationID, Emoji: emoji}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return apperrors.Validation("realtime."+action, verr)
	}

	_, err := f.rpc.Invoke(ctx, proc, backend.ReactionPayload{
		MessageID:      messageID,
		ConversationID: conversationID,
		Emoji:          emoji,
	})
	f.track(action, err)
	if err != nil {
		f.logFailure(ctx, action, err, conversationID)
		return err
	}
	f.actions.Log(action, f.userID, map[string]string{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	return nil
}

// Reactions returns the echoed reactions of messageID in arrival order.
func (f *Facade) Reactions(messageID string) []models.Reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Reaction(nil), f.reactions[messageID]...)
}

func (f *Facade) onReactionInsert(e changefeed.Event) {
	var r models.Reaction
	if err := e.DecodeNew(&r); err != nil || r.MessageID == "" {
		f.logger.Warn().Err(err).Msg("Undecodable reaction row")
		return
	}

	f.mu.Lock()
	for _, existing := range f.reactions[r.MessageID] {
		if sameReaction(existing, r) {
			f.mu.Unlock()
			return
		}
	}
	f.reactions[r.MessageID] = append(f.reactions[r.MessageID], r)
	f.mu.Unlock()

	f.reactionEv.Emit(models.ReactionEvent{Action: models.ReactionAdded, Reaction: r})
}

func (f *Facade) onReactionDelete(e changefeed.Event) {
	var r models.Reaction
	if err := e.DecodeOld(&r); err != nil {
		f.logger.Warn().Err(err).Msg("Undecodable reaction row")
		return
	}

	removed := false
	f.mu.Lock()
	// Old images may carry only the primary key; search every message then.
search:
	for messageID, list := range f.reactions {
		if r.MessageID != "" && messageID != r.MessageID {
			continue
		}
		for i, existing := range list {
			if !sameReaction(existing, r) {
				continue
			}
			if r.MessageID == "" {
				r = existing
			}
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(f.reactions, messageID)
			} else {
				f.reactions[messageID] = list
			}
			removed = true
			break search
		}
	}
	f.mu.Unlock()

	if !removed {
		f.logger.Debug().Str("reaction_id", r.ID).Msg("Delete for an unknown reaction ignored")
		return
	}
	f.reactionEv.Emit(models.ReactionEvent{Action: models.ReactionRemoved, Reaction: r})
}

// sameReaction matches by id, or by user and emoji when ids are missing.
func sameReaction(a, b models.Reaction) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.UserID == b.UserID && a.Emoji == b.Emoji
}
