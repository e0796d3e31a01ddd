// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package models

import "time"

// TypingEvent is broadcast while a user composes a message.
type TypingEvent struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
	At             time.Time `json:"at"`
}

// ReadReceipt is derived from a message update that sets read_at.
type ReadReceipt struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

// DeliveryUpdate is derived from a message update that changes its status.
type DeliveryUpdate struct {
	MessageID      string        `json:"message_id"`
	ConversationID string        `json:"conversation_id"`
	Status         MessageStatus `json:"status"`
	At             time.Time     `json:"at"`
}

// ReactionAction tells whether a reaction appeared or disappeared.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionEvent is derived from an insert or delete on message_reactions.
type ReactionEvent struct {
	Action   ReactionAction `json:"action"`
	Reaction Reaction       `json:"reaction"`
}
