// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package metrics declares the Prometheus collectors exported at /metrics and
// small Record helpers so callers never touch label ordering directly.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Change feed
	ChangefeedEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_changefeed_events_received_total",
			Help: "Row-change events received from the change feed",
		},
		[]string{"table", "type"},
	)

	ChangefeedEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_changefeed_events_published_total",
			Help: "Events published to the change feed",
		},
		[]string{"table", "outcome"},
	)

	ChangefeedDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_changefeed_decode_errors_total",
			Help: "Change-feed messages that could not be decoded",
		},
		[]string{"table"},
	)

	ChangefeedDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stellr_changefeed_dispatch_duration_seconds",
			Help:    "Time spent invoking callbacks for one change event",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"table"},
	)

	ChangefeedCallbackPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_changefeed_callback_panics_total",
			Help: "Callbacks that panicked while handling a change event",
		},
		[]string{"table"},
	)

	ChangefeedSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellr_changefeed_subscriptions",
			Help: "Registered change-feed callbacks",
		},
		[]string{"table"},
	)

	// Backend
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_backend_requests_total",
			Help: "Backend REST and RPC calls",
		},
		[]string{"operation", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stellr_backend_request_duration_seconds",
			Help:    "Backend call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	ProfileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_profile_cache_lookups_total",
			Help: "Profile cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	// Conversation state
	ConversationsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stellr_conversations_tracked",
			Help: "Conversations held by the conversation store",
		},
	)

	UnreadMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stellr_unread_messages",
			Help: "Sum of unread counters across conversations",
		},
	)

	ConversationRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_conversation_refreshes_total",
			Help: "Conversation store refreshes by outcome",
		},
		[]string{"outcome"},
	)

	ConversationMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_conversation_mutations_total",
			Help: "Delete, archive and unmatch requests by outcome",
		},
		[]string{"action", "outcome"},
	)

	// Realtime
	RealtimeListeners = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellr_realtime_listeners",
			Help: "Registered realtime listeners",
		},
		[]string{"kind"},
	)

	TypingEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_typing_events_sent_total",
			Help: "Typing events emitted by the local user",
		},
		[]string{"outcome"}, // sent, rate_limited, error
	)

	// Monitoring
	MonitoringAlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_monitoring_alerts_created_total",
			Help: "Alerts created by threshold checks",
		},
		[]string{"category", "severity"},
	)

	MonitoringActiveAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stellr_monitoring_active_alerts",
			Help: "Alerts that are not resolved",
		},
		[]string{"severity"},
	)

	MonitoringHealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stellr_monitoring_health_status",
			Help: "Overall health (0=healthy, 1=degraded, 2=unhealthy, 3=critical)",
		},
	)

	MonitoringValidationPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_monitoring_validation_pushes_total",
			Help: "Validation pushes by outcome",
		},
		[]string{"outcome"}, // valid, invalid, error
	)

	MonitoringSlowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_monitoring_slow_operations_total",
			Help: "Operations that exceeded the slow-operation threshold",
		},
		[]string{"operation"},
	)

	MonitoringEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stellr_monitoring_escalations_total",
			Help: "Critical alerts flagged for escalation",
		},
	)

	// Preferences
	PreferenceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_preference_operations_total",
			Help: "Preference store operations",
		},
		[]string{"operation", "outcome"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stellr_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_websocket_messages_sent_total",
			Help: "WebSocket messages broadcast by type",
		},
		[]string{"type"},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stellr_websocket_messages_dropped_total",
			Help: "WebSocket broadcasts dropped because the hub buffer was full",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stellr_api_requests_total",
			Help: "API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stellr_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stellr_api_active_requests",
			Help: "In-flight API requests",
		},
	)
)

// RecordChangefeedEvent counts one received event and its dispatch time.
func RecordChangefeedEvent(table, eventType string, dispatch time.Duration) {
	ChangefeedEventsReceived.WithLabelValues(table, eventType).Inc()
	ChangefeedDispatchDuration.WithLabelValues(table).Observe(dispatch.Seconds())
}

// RecordChangefeedPublish counts one publish attempt.
func RecordChangefeedPublish(table string, err error) {
	ChangefeedEventsPublished.WithLabelValues(table, outcome(err)).Inc()
}

// RecordBackendRequest counts one backend call.
func RecordBackendRequest(operation string, duration time.Duration, err error) {
	BackendRequestsTotal.WithLabelValues(operation, outcome(err)).Inc()
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a state change. States use
// gobreaker's names: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordConversationMutation counts one delete, archive or unmatch request.
func RecordConversationMutation(action string, success bool) {
	o := "success"
	if !success {
		o = "failure"
	}
	ConversationMutations.WithLabelValues(action, o).Inc()
}

// UpdateConversationGauges publishes the store size and unread total.
func UpdateConversationGauges(conversations, unread int) {
	ConversationsTracked.Set(float64(conversations))
	UnreadMessages.Set(float64(unread))
}

// RecordAlertCreated counts one alert.
func RecordAlertCreated(category, severity string) {
	MonitoringAlertsCreated.WithLabelValues(category, severity).Inc()
}

// UpdateActiveAlerts replaces the active alert gauges.
func UpdateActiveAlerts(bySeverity map[string]int) {
	for _, s := range []string{"low", "medium", "high", "critical"} {
		MonitoringActiveAlerts.WithLabelValues(s).Set(float64(bySeverity[s]))
	}
}

// RecordAPIRequest counts one API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
