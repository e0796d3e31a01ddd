// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/stellr/internal/monitoring"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status             monitoring.Health `json:"status"`
	ConversationsReady bool              `json:"conversations_ready"`
	WebSocketClients   int               `json:"websocket_clients"`
	ActiveAlerts       int               `json:"active_alerts"`
	Uptime             float64           `json:"uptime"`
}

// Health reports the monitoring classification and component readiness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: monitoring.HealthHealthy,
		Uptime: time.Since(h.startTime).Seconds(),
	}
	if h.mon != nil {
		status.Status = h.mon.Health()
		status.ActiveAlerts = len(h.mon.ActiveAlerts())
	}
	if h.convs != nil {
		status.ConversationsReady = h.convs.Loaded()
	}
	if h.hub != nil {
		status.WebSocketClients = h.hub.ClientCount()
	}
	respondJSON(w, r, http.StatusOK, status)
}

// HealthLive returns 200 while the process is alive, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 once the conversation store has completed its
// first load and 503 before that.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.convs != nil && h.convs.Loaded()
	if !ready {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Conversations not loaded", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"ready": true})
}
