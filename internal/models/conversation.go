// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package models

import (
	"errors"
	"time"
)

// PreviewMaxRunes is the longest last-message preview stored on a conversation.
const PreviewMaxRunes = 100

// PreviewEllipsis marks a truncated preview.
const PreviewEllipsis = "…"

// Conversation is a two-party thread created by the backend on a match.
type Conversation struct {
	ID              string     `json:"id"`
	User1ID         string     `json:"user1_id"`
	User2ID         string     `json:"user2_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastMessage     string     `json:"last_message,omitempty"` // Preview, see TruncatePreview
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	User1LastReadAt *time.Time `json:"user1_last_read_at,omitempty"`
	User2LastReadAt *time.Time `json:"user2_last_read_at,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"` // Soft archive marker
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`  // Soft delete marker
}

// ErrInvalidParticipants is returned by Validate for threads that do not have
// exactly two distinct participants.
var ErrInvalidParticipants = errors.New("conversation must have two distinct participants")

// Validate checks the participant invariant.
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is required")
	}
	if c.User1ID == "" || c.User2ID == "" || c.User1ID == c.User2ID {
		return ErrInvalidParticipants
	}
	return nil
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.User1ID == userID || c.User2ID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.User1ID:
		return c.User2ID, true
	case c.User2ID:
		return c.User1ID, true
	default:
		return "", false
	}
}

// LastReadAt returns when userID last read the thread. Unset reads as the
// Unix epoch so every message counts as unread.
func (c *Conversation) LastReadAt(userID string) time.Time {
	var t *time.Time
	switch userID {
	case c.User1ID:
		t = c.User1LastReadAt
	case c.User2ID:
		t = c.User2LastReadAt
	}
	if t == nil {
		return time.Unix(0, 0).UTC()
	}
	return *t
}

// IsArchived reports whether the archive marker is set.
func (c *Conversation) IsArchived() bool {
	return c.ArchivedAt != nil
}

// IsDeleted reports whether the soft-delete marker is set.
func (c *Conversation) IsDeleted() bool {
	return c.DeletedAt != nil
}

// TruncatePreview returns text unchanged when it fits in PreviewMaxRunes,
// otherwise its first PreviewMaxRunes runes followed by PreviewEllipsis.
func TruncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewMaxRunes {
		return text
	}
	return string(runes[:PreviewMaxRunes]) + PreviewEllipsis
}

// ConversationView is a conversation joined to its participants' profiles and
// the session user's unread count, as served to consumers.
type ConversationView struct {
	Conversation
	User1       *Profile `json:"user1,omitempty"`
	User2       *Profile `json:"user2,omitempty"`
	OtherUser   *Profile `json:"other_user,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
