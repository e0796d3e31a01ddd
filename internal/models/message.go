// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package models

import "time"

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message belongs to exactly one conversation. It is never deleted locally.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Content        string        `json:"content"`
	MediaURL       *string       `json:"media_url,omitempty"` // Photo messages
	CreatedAt      time.Time     `json:"created_at"`
	Status         MessageStatus `json:"status,omitempty"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
}

// Reaction is one emoji a user attached to a message.
type Reaction struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Emoji          string    `json:"emoji"`
	CreatedAt      time.Time `json:"created_at"`
}

// SendMessageRequest is the payload of the send-message procedure.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Content        string `json:"content" validate:"required,max=5000"`
}

// SendPhotoMessageRequest is the payload of the send-photo-message procedure.
type SendPhotoMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	PhotoURL       string `json:"photo_url" validate:"required,url"`
	Caption        string `json:"caption,omitempty" validate:"max=500"`
}
