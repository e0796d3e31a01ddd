// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stellr/internal/models"
)

// ReactionRequest adds or removes one emoji on a message.
type ReactionRequest struct {
	Emoji          string `json:"emoji" validate:"required,emoji"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

// PresenceRequest sets the local user's status.
type PresenceRequest struct {
	Status string `json:"status" validate:"required,presence"`
}

// AppStateRequest reports the app moving between foreground and background.
type AppStateRequest struct {
	Foreground bool `json:"foreground"`
}

// PresenceView is the body of GET /api/v1/presence/{userID}. Status is the
// effective status after staleness is applied.
type PresenceView struct {
	UserID string                 `json:"user_id"`
	Status models.PresenceStatus  `json:"status"`
	Record *models.PresenceRecord `json:"record,omitempty"`
}

// ListReactions returns the known reactions for a message.
func (h *Handler) ListReactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	reactions := h.rt.Reactions(id)
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"message_id": id,
		"reactions":  reactions,
	})
}

// AddReaction adds an emoji reaction to a message.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	var req ReactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.rt.AddMessageReaction(r.Context(), id, req.Emoji, req.ConversationID); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveReaction removes the local user's emoji reaction from a message.
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	var req ReactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.rt.RemoveMessageReaction(r.Context(), id, req.Emoji, req.ConversationID); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePresence sets the local user's presence status.
func (h *Handler) UpdatePresence(w http.ResponseWriter, r *http.Request) {
	var req PresenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status := models.PresenceStatus(req.Status)
	if err := h.rt.UpdateOnlineStatus(r.Context(), status); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, PresenceView{UserID: h.userID, Status: status})
}

// AppState maps foreground and background transitions onto presence.
func (h *Handler) AppState(w http.ResponseWriter, r *http.Request) {
	var req AppStateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.rt.AppStateChanged(r.Context(), req.Foreground); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPresence returns a user's effective presence. Unknown users are
// offline.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	view := PresenceView{UserID: userID, Status: h.rt.PresenceOf(userID)}
	if rec, ok := h.rt.Presence(userID); ok {
		view.Record = &rec
	}
	respondJSON(w, r, http.StatusOK, view)
}
