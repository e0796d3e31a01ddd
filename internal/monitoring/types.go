// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import "time"

// Severity of an alert or priority of a recommendation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Category groups alerts and recommendations by feature area.
type Category string

const (
	CategoryPerformance   Category = "performance"
	CategorySecurity      Category = "security"
	CategoryReliability   Category = "reliability"
	CategoryMessaging     Category = "messaging"
	CategoryUnmatch       Category = "unmatch"
	CategoryAccessibility Category = "accessibility"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a threshold breach.
type Alert struct {
	ID                string      `json:"id"`
	Category          Category    `json:"category"`
	Severity          Severity    `json:"severity"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Timestamp         time.Time   `json:"timestamp"`
	Status            AlertStatus `json:"status"`
	RecommendedAction string      `json:"recommended_action,omitempty"`
	Incident          bool        `json:"incident,omitempty"` // Security incident, drives critical health
	AcknowledgedAt    *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt        *time.Time  `json:"resolved_at,omitempty"`
	EscalatedAt       *time.Time  `json:"escalated_at,omitempty"`
}

// AlertInput describes an alert raised from outside the threshold checks.
type AlertInput struct {
	Category          Category `json:"category" validate:"required,oneof=performance security reliability messaging unmatch accessibility"`
	Severity          Severity `json:"severity" validate:"required,oneof=low medium high critical"`
	Title             string   `json:"title" validate:"required,max=200"`
	Description       string   `json:"description" validate:"max=2000"`
	RecommendedAction string   `json:"recommended_action" validate:"max=500"`
	Incident          bool     `json:"incident"`
}

// Recommendation is derived from the counters by fixed rules.
type Recommendation struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Priority    Severity `json:"priority"`
	Description string   `json:"description"`
}

// Health is the overall classification.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
	HealthCritical  Health = "critical"
)

// gaugeValue maps h onto the health gauge.
func (h Health) gaugeValue() float64 {
	switch h {
	case HealthDegraded:
		return 1
	case HealthUnhealthy:
		return 2
	case HealthCritical:
		return 3
	default:
		return 0
	}
}

// UnmatchCounters track unmatch attempts.
type UnmatchCounters struct {
	Total             int64   `json:"total"`
	Failed            int64   `json:"failed"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

// MessagingCounters track messaging actions by name.
type MessagingCounters struct {
	Total    int64            `json:"total"`
	Failed   int64            `json:"failed"`
	ByAction map[string]int64 `json:"by_action"`
}

// AccessibilityCounters track accessibility setting changes.
type AccessibilityCounters struct {
	Toggles int64           `json:"toggles"`
	Enabled map[string]bool `json:"enabled"`
}

// ErrorCounters track reported errors.
type ErrorCounters struct {
	Total      int64            `json:"total"`
	Recovered  int64            `json:"recovered"`
	ByCategory map[string]int64 `json:"by_category"`
}

// SecurityCounters track authentication and data access.
type SecurityCounters struct {
	AuthSuccesses      int64 `json:"auth_successes"`
	AuthFailures       int64 `json:"auth_failures"`
	DataAccess         int64 `json:"data_access"`
	UnauthorizedAccess int64 `json:"unauthorized_access"`
	SuspiciousPatterns int64 `json:"suspicious_patterns"`
}

// PerformanceCounters hold the latest health inputs.
type PerformanceCounters struct {
	MemoryMB       float64 `json:"memory_mb"`
	StartTimeMs    int64   `json:"start_time_ms"`
	Operations     int64   `json:"operations"`
	SlowOperations int64   `json:"slow_operations"`
}

// Counters is every tracked value.
type Counters struct {
	Unmatch       UnmatchCounters       `json:"unmatch"`
	Messaging     MessagingCounters     `json:"messaging"`
	Accessibility AccessibilityCounters `json:"accessibility"`
	Errors        ErrorCounters         `json:"errors"`
	Security      SecurityCounters      `json:"security"`
	Performance   PerformanceCounters   `json:"performance"`
}

// Rates are derived from Counters. A rate with a zero denominator is 0.
type Rates struct {
	ErrorRecoveryRate    float64 `json:"error_recovery_rate"`
	ErrorRate            float64 `json:"error_rate"`
	MessagingSuccessRate float64 `json:"messaging_success_rate"`
	UnmatchSuccessRate   float64 `json:"unmatch_success_rate"`
	AuthFailureRate      float64 `json:"auth_failure_rate"`
}

// Snapshot is the serializable state pushed to the validation endpoint.
type Snapshot struct {
	Counters Counters `json:"counters"`
	Rates    Rates    `json:"rates"`
	Health   Health   `json:"health"`
}

// Dashboard is the full aggregator view.
type Dashboard struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	SessionID       string           `json:"session_id"`
	Health          Health           `json:"health"`
	Counters        Counters         `json:"counters"`
	Rates           Rates            `json:"rates"`
	ActiveAlerts    []Alert          `json:"active_alerts"`
	Recommendations []Recommendation `json:"recommendations"`
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
