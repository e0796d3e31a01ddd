// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stellr/internal/monitoring"
)

// Monitoring event types accepted by POST /api/v1/monitoring/events.
const (
	EventUnmatch        = "unmatch"
	EventMessaging      = "messaging"
	EventAccessibility  = "accessibility"
	EventError          = "error"
	EventAuthentication = "authentication"
	EventDataAccess     = "data_access"
	EventPerformance    = "performance"
	EventOperation      = "operation"
)

// MonitoringEventRequest is one tracking call reported by the UI. Only the
// fields relevant to Type are read.
type MonitoringEventRequest struct {
	Type string `json:"type" validate:"required,oneof=unmatch messaging accessibility error authentication data_access performance operation"`

	Success    bool    `json:"success"`
	DurationMs int64   `json:"duration_ms" validate:"gte=0"`
	Action     string  `json:"action" validate:"required_if=Type messaging,max=100"`
	Feature    string  `json:"feature" validate:"required_if=Type accessibility,max=100"`
	Enabled    bool    `json:"enabled"`
	Category   string  `json:"category" validate:"required_if=Type error,max=100"`
	Recovered  bool    `json:"recovered"`
	UserID     string  `json:"user_id" validate:"max=200"`
	Reason     string  `json:"reason" validate:"max=500"`
	Resource   string  `json:"resource" validate:"required_if=Type data_access,max=200"`
	Authorized bool    `json:"authorized"`
	MemoryMB   float64 `json:"memory_mb" validate:"gte=0"`
	StartMs    int64   `json:"start_time_ms" validate:"gte=0"`
	Name       string  `json:"name" validate:"required_if=Type operation,max=200"`
}

// MonitoringDashboard returns counters, rates, active alerts and
// recommendations.
func (h *Handler) MonitoringDashboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.mon.Dashboard())
}

// MonitoringEvent dispatches one tracking call to the aggregator.
func (h *Handler) MonitoringEvent(w http.ResponseWriter, r *http.Request) {
	var req MonitoringEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch req.Type {
	case EventUnmatch:
		h.mon.TrackUnmatch(time.Duration(req.DurationMs)*time.Millisecond, req.Success)
	case EventMessaging:
		h.mon.TrackMessaging(req.Action, req.Success)
	case EventAccessibility:
		h.mon.TrackAccessibility(req.Feature, req.Enabled)
	case EventError:
		h.mon.TrackError(req.Category, req.Recovered)
	case EventAuthentication:
		h.mon.TrackAuthentication(req.UserID, req.Success, req.Reason)
	case EventDataAccess:
		h.mon.TrackDataAccess(req.UserID, req.Resource, req.Authorized)
	case EventPerformance:
		h.mon.TrackPerformance(req.MemoryMB, time.Duration(req.StartMs)*time.Millisecond)
	case EventOperation:
		h.mon.TrackOperation(req.Name, time.Duration(req.DurationMs)*time.Millisecond)
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListAlerts returns every alert, or only unresolved ones with ?active=true.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []monitoring.Alert
	if r.URL.Query().Get("active") == "true" {
		alerts = h.mon.ActiveAlerts()
	} else {
		alerts = h.mon.Alerts()
	}
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	respondJSON(w, r, http.StatusOK, alerts)
}

// RaiseAlert creates an alert reported from outside the threshold checks.
func (h *Handler) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	var in monitoring.AlertInput
	if !decodeBody(w, r, &in) {
		return
	}
	alert, err := h.mon.RaiseAlert(in)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, alert)
}

// AcknowledgeAlert moves an active alert to acknowledged.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, h.mon.Acknowledge)
}

// ResolveAlert resolves an active or acknowledged alert.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, h.mon.Resolve)
}

func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request, apply func(string) (monitoring.Alert, error)) {
	alert, err := apply(chi.URLParam(r, "alertID"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, alert)
}
