// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/models"
	"github.com/tomtom215/stellr/internal/validation"
)

// Messaging actions reported to the tracker.
const (
	ActionMessageSent     = "message_sent"
	ActionPhotoSent       = "photo_sent"
	ActionReadReceipt     = "read_receipt"
	ActionReactionAdded   = "reaction_added"
	ActionReactionRemoved = "reaction_removed"
	ActionPresenceUpdated = "presence_updated"
)

// SendMessage sends a text message and returns the backend response.
func (f *Facade) SendMessage(ctx context.Context, conversationID, content string) (json.RawMessage, error) {
	req := models.SendMessageRequest{ConversationID: conversationID, Content: content}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, apperrors.Validation("realtime.SendMessage", verr)
	}

	data, err := f.rpc.Invoke(ctx, backend.ProcSendMessage, backend.SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
	})
	f.track(ActionMessageSent, err)
	if err != nil {
		f.logFailure(ctx, ActionMessageSent, err, conversationID)
		return nil, err
	}
	return data, nil
}

// SendPhotoMessage sends an already uploaded photo with an optional caption.
func (f *Facade) SendPhotoMessage(ctx context.Context, conversationID, photoURL, caption string) (json.RawMessage, error) {
	req := models.SendPhotoMessageRequest{ConversationID: conversationID, PhotoURL: photoURL, Caption: caption}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, apperrors.Validation("realtime.SendPhotoMessage", verr)
	}

	data, err := f.rpc.Invoke(ctx, backend.ProcSendPhotoMessage, backend.SendPhotoPayload{
		ConversationID: conversationID,
		PhotoURL:       photoURL,
		Caption:        caption,
	})
	f.track(ActionPhotoSent, err)
	if err != nil {
		f.logFailure(ctx, ActionPhotoSent, err, conversationID)
		return nil, err
	}
	return data, nil
}

// SendReadReceipt marks messageIDs read on the backend. An empty list is a
// no-op. Local unread counters are cleared separately.
func (f *Facade) SendReadReceipt(ctx context.Context, conversationID string, messageIDs []string) error {
	if conversationID == "" {
		return apperrors.Validation("realtime.SendReadReceipt", errNoConversation)
	}
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := f.rpc.Invoke(ctx, backend.ProcMarkMessagesRead, backend.MarkReadPayload{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	})
	f.track(ActionReadReceipt, err)
	if err != nil {
		f.logFailure(ctx, ActionReadReceipt, err, conversationID)
		return err
	}
	return nil
}

// onMessageUpdate derives delivery updates and read receipts from message
// row changes.
func (f *Facade) onMessageUpdate(e changefeed.Event) {
	var cur models.Message
	if err := e.DecodeNew(&cur); err != nil {
		f.logger.Warn().Err(err).Msg("Undecodable message update")
		return
	}
	var prev models.Message
	hasPrev := e.DecodeOld(&prev) == nil
	at := f.eventTime(e)

	if cur.Status != "" && (!hasPrev || prev.Status != cur.Status) {
		ts := at
		switch {
		case cur.Status == models.MessageStatusDelivered && cur.DeliveredAt != nil:
			ts = *cur.DeliveredAt
		case cur.Status == models.MessageStatusRead && cur.ReadAt != nil:
			ts = *cur.ReadAt
		}
		f.deliveries.Emit(models.DeliveryUpdate{
			MessageID:      cur.ID,
			ConversationID: cur.ConversationID,
			Status:         cur.Status,
			At:             ts,
		})
	}

	if cur.ReadAt != nil && (!hasPrev || prev.ReadAt == nil) {
		f.receipts.Emit(models.ReadReceipt{
			MessageID:      cur.ID,
			ConversationID: cur.ConversationID,
			ReaderID:       f.readerOf(cur),
			ReadAt:         *cur.ReadAt,
		})
	}
}

// readerOf returns the participant that is not the sender of msg, or "" when
// the conversation is unknown.
func (f *Facade) readerOf(msg models.Message) string {
	if msg.SenderID != f.userID {
		return f.userID
	}
	if f.participants == nil {
		return ""
	}
	u1, u2, ok := f.participants.Participants(msg.ConversationID)
	switch {
	case !ok:
		return ""
	case u1 == msg.SenderID:
		return u2
	default:
		return u1
	}
}

func (f *Facade) logFailure(ctx context.Context, action string, err error, conversationID string) {
	logging.Ctx(ctx).Error().Err(err).
		Str("action", action).
		Str("user_id", logging.SanitizeUserID(f.userID)).
		Str("conversation_id", conversationID).
		Msg("Realtime operation failed")
}
