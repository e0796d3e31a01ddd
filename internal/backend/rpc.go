// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package backend

// Mutation procedures exposed by the functions endpoint.
const (
	ProcSendMessage         = "send-message"
	ProcSendPhotoMessage    = "send-photo-message"
	ProcUnmatch             = "unmatch"
	ProcDeleteConversation  = "delete-conversation"
	ProcArchiveConversation = "archive-conversation"
	ProcAddReaction         = "add-reaction"
	ProcRemoveReaction      = "remove-reaction"
	ProcUpdatePresence      = "update-presence"
	ProcMarkMessagesRead    = "mark-messages-read"
)

// Payloads sent to the procedures above.

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type ArchivePayload struct {
	ConversationID string `json:"conversationId"`
	Archive        bool   `json:"archive"`
}

type UnmatchPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type ReactionPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Emoji          string `json:"emoji"`
}

type PresencePayload struct {
	Status string `json:"status"`
}

type MarkReadPayload struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type SendPhotoPayload struct {
	ConversationID string `json:"conversationId"`
	PhotoURL       string `json:"photoUrl"`
	Caption        string `json:"caption,omitempty"`
}
