// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/models"
	"github.com/tomtom215/stellr/internal/monitoring"
	"github.com/tomtom215/stellr/internal/preferences"
	"github.com/tomtom215/stellr/internal/websocket"
)

// Conversations is the conversation store.
type Conversations interface {
	Loaded() bool
	Conversations() []models.ConversationView
	Get(id string) (models.ConversationView, bool)
	UnreadCount(id string) int
	TotalUnread() int
	MarkRead(id string) bool
	Refresh(ctx context.Context)
	DeleteConversation(ctx context.Context, id string) bool
	ArchiveConversation(ctx context.Context, id string, archive bool) bool
	Unmatch(ctx context.Context, otherUserID string) bool
}

// Realtime is the realtime facade.
type Realtime interface {
	SendMessage(ctx context.Context, conversationID, content string) (json.RawMessage, error)
	SendPhotoMessage(ctx context.Context, conversationID, photoURL, caption string) (json.RawMessage, error)
	SendReadReceipt(ctx context.Context, conversationID string, messageIDs []string) error
	StartTyping(ctx context.Context, conversationID string) error
	StopTyping(ctx context.Context, conversationID string) error
	Keystroke(ctx context.Context, conversationID, text string) error
	TypingUsers(conversationID string) []string
	AddMessageReaction(ctx context.Context, messageID, emoji, conversationID string) error
	RemoveMessageReaction(ctx context.Context, messageID, emoji, conversationID string) error
	Reactions(messageID string) []models.Reaction
	UpdateOnlineStatus(ctx context.Context, status models.PresenceStatus) error
	AppStateChanged(ctx context.Context, foreground bool) error
	PresenceOf(userID string) models.PresenceStatus
	Presence(userID string) (models.PresenceRecord, bool)
}

// Monitoring is the monitoring aggregator.
type Monitoring interface {
	Health() monitoring.Health
	Dashboard() monitoring.Dashboard
	Alerts() []monitoring.Alert
	ActiveAlerts() []monitoring.Alert
	RaiseAlert(in monitoring.AlertInput) (monitoring.Alert, error)
	Acknowledge(id string) (monitoring.Alert, error)
	Resolve(id string) (monitoring.Alert, error)
	TrackUnmatch(duration time.Duration, success bool)
	TrackMessaging(action string, success bool)
	TrackAccessibility(feature string, enabled bool)
	TrackError(category string, recovered bool)
	TrackAuthentication(userID string, success bool, reason string)
	TrackDataAccess(userID, resource string, authorized bool)
	TrackPerformance(memoryMB float64, startTime time.Duration)
	TrackOperation(name string, duration time.Duration)
}

// Preferences is the local preference store.
type Preferences interface {
	Banner(ctx context.Context, userID string) (preferences.BannerState, error)
	DismissBanner(ctx context.Context, userID string) error
	ResetBanner(ctx context.Context, userID string) error
	SetAccessibility(ctx context.Context, userID, feature string, enabled bool) error
	Accessibility(ctx context.Context, userID string) (map[string]bool, error)
}

// Deps collects the handler's collaborators. Hub may be nil, which
// disables the websocket endpoint.
type Deps struct {
	UserID        string
	Conversations Conversations
	Realtime      Realtime
	Monitoring    Monitoring
	Preferences   Preferences
	Hub           *websocket.Hub
	CORSOrigins   []string
}

// Handler serves every API endpoint.
type Handler struct {
	userID      string
	convs       Conversations
	rt          Realtime
	mon         Monitoring
	prefs       Preferences
	hub         *websocket.Hub
	corsOrigins []string
	startTime   time.Time
}

// NewHandler returns a handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		userID:      deps.UserID,
		convs:       deps.Conversations,
		rt:          deps.Realtime,
		mon:         deps.Monitoring,
		prefs:       deps.Preferences,
		hub:         deps.Hub,
		corsOrigins: deps.CORSOrigins,
		startTime:   time.Now(),
	}
}

func (h *Handler) upgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts non-browser clients, which send no Origin,
// and browsers from a configured origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and registers it with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "WebSocket service unavailable", nil)
		return
	}
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := websocket.NewClient(h.hub, conn)
	select {
	case h.hub.Register <- client:
		client.Start()
	case <-time.After(5 * time.Second):
		_ = conn.Close()
		logging.Warn().Msg("WebSocket hub not accepting clients")
	}
}
