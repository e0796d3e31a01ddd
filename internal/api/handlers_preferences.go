// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"net/http"
)

// AccessibilityRequest toggles one accessibility feature.
type AccessibilityRequest struct {
	Feature string `json:"feature" validate:"required,max=100"`
	Enabled bool   `json:"enabled"`
}

// GetBanner returns the session user's banner state.
func (h *Handler) GetBanner(w http.ResponseWriter, r *http.Request) {
	state, err := h.prefs.Banner(r.Context(), h.userID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, state)
}

// DismissBanner hides the banner until the dismissal expires.
func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.DismissBanner(r.Context(), h.userID); err != nil {
		respondAppError(w, r, err)
		return
	}
	h.GetBanner(w, r)
}

// ResetBanner forgets a dismissal.
func (h *Handler) ResetBanner(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.ResetBanner(r.Context(), h.userID); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccessibility returns the stored accessibility settings.
func (h *Handler) GetAccessibility(w http.ResponseWriter, r *http.Request) {
	settings, err := h.prefs.Accessibility(r.Context(), h.userID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if settings == nil {
		settings = map[string]bool{}
	}
	respondJSON(w, r, http.StatusOK, settings)
}

// SetAccessibility stores one setting and reports the toggle to monitoring.
func (h *Handler) SetAccessibility(w http.ResponseWriter, r *http.Request) {
	var req AccessibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.prefs.SetAccessibility(r.Context(), h.userID, req.Feature, req.Enabled); err != nil {
		respondAppError(w, r, err)
		return
	}
	if h.mon != nil {
		h.mon.TrackAccessibility(req.Feature, req.Enabled)
	}
	h.GetAccessibility(w, r)
}
