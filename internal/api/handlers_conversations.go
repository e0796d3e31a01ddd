// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/models"
)

// ConversationList is the body of GET /api/v1/conversations.
type ConversationList struct {
	Conversations []models.ConversationView `json:"conversations"`
	TotalUnread   int                       `json:"total_unread"`
	Loaded        bool                      `json:"loaded"`
}

// MarkReadRequest optionally names the messages to acknowledge.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"max=500,dive,required"`
}

// ArchiveRequest archives or unarchives a conversation.
type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

// SendMessageBody is the body of POST .../messages.
type SendMessageBody struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// SendPhotoBody is the body of POST .../photos.
type SendPhotoBody struct {
	PhotoURL string `json:"photo_url" validate:"required,url"`
	Caption  string `json:"caption" validate:"max=500"`
}

// TypingRequest reports local typing activity.
type TypingRequest struct {
	Action string `json:"action" validate:"required,oneof=start stop keystroke"`
	Text   string `json:"text" validate:"max=5000"`
}

// UnmatchRequest names the user to unmatch.
type UnmatchRequest struct {
	OtherUserID string `json:"other_user_id" validate:"required"`
}

func notFound(kind, id string) error {
	return apperrors.Validation("lookup", fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound))
}

// ListConversations returns the store's conversations, newest activity first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs := h.convs.Conversations()
	if convs == nil {
		convs = []models.ConversationView{}
	}
	respondJSON(w, r, http.StatusOK, ConversationList{
		Conversations: convs,
		TotalUnread:   h.convs.TotalUnread(),
		Loaded:        h.convs.Loaded(),
	})
}

// RefreshConversations reloads the store from the backend.
func (h *Handler) RefreshConversations(w http.ResponseWriter, r *http.Request) {
	h.convs.Refresh(r.Context())
	h.ListConversations(w, r)
}

// GetConversation returns one conversation.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	view, ok := h.convs.Get(id)
	if !ok {
		respondAppError(w, r, notFound("conversation", id))
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// MarkConversationRead clears the unread counter and, when message ids are
// given, sends a read receipt for them.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req MarkReadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.convs.MarkRead(id) {
		respondAppError(w, r, notFound("conversation", id))
		return
	}
	if len(req.MessageIDs) > 0 {
		if err := h.rt.SendReadReceipt(r.Context(), id, req.MessageIDs); err != nil {
			respondAppError(w, r, err)
			return
		}
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"unread_count":    h.convs.UnreadCount(id),
	})
}

// DeleteConversation soft-deletes a conversation.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if !h.convs.DeleteConversation(r.Context(), id) {
		respondError(w, r, http.StatusBadGateway, CodeBackend, "Conversation could not be deleted", ErrMutationFailed)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"deleted": id})
}

// ArchiveConversation archives or unarchives a conversation.
func (h *Handler) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req ArchiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.convs.ArchiveConversation(r.Context(), id, req.Archived) {
		respondError(w, r, http.StatusBadGateway, CodeBackend, "Conversation could not be archived", ErrMutationFailed)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"archived":        req.Archived,
	})
}

// Unmatch removes the match with another user and every conversation
// between them.
func (h *Handler) Unmatch(w http.ResponseWriter, r *http.Request) {
	var req UnmatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.convs.Unmatch(r.Context(), req.OtherUserID) {
		respondError(w, r, http.StatusBadGateway, CodeBackend, "Unmatch failed", ErrMutationFailed)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"unmatched": req.OtherUserID})
}

// SendMessage sends a text message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req SendMessageBody
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.rt.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, msg)
}

// SendPhotoMessage sends a photo message.
func (h *Handler) SendPhotoMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req SendPhotoBody
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.rt.SendPhotoMessage(r.Context(), id, req.PhotoURL, req.Caption)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, msg)
}

// Typing reports local typing activity. keystroke runs the debounce, start
// and stop are explicit.
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	var req TypingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	switch req.Action {
	case "start":
		err = h.rt.StartTyping(r.Context(), id)
	case "stop":
		err = h.rt.StopTyping(r.Context(), id)
	default:
		err = h.rt.Keystroke(r.Context(), id, req.Text)
	}
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TypingUsers lists remote users currently typing in a conversation.
func (h *Handler) TypingUsers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	users := h.rt.TypingUsers(id)
	if users == nil {
		users = []string{}
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"typing":          users,
	})
}
