// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stellr/internal/cache"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

const (
	startUnhealthy        = 10 * time.Second
	startDegraded         = 5 * time.Second
	errorAlertMinErrors   = 10
	errorRecoveryFloor    = 0.5
	maxTrackedAuthUsers   = 10000
	anonymousAuthIdentity = "anonymous"
)

// Aggregator accumulates monitoring counters and owns alert state.
type Aggregator struct {
	cfg       config.MonitoringConfig
	sessionID string
	security  *logging.SecurityLogger
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	failedAuth *cache.SlidingWindow

	mu       sync.Mutex
	counters Counters
	alerts   []*Alert

	alertEv *emitter.Emitter[Alert]
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithSecurityLogger replaces the security channel logger.
func WithSecurityLogger(l *logging.SecurityLogger) Option {
	return func(a *Aggregator) { a.security = l }
}

// NewAggregator returns an empty aggregator for one session.
func NewAggregator(cfg config.MonitoringConfig, sessionID string, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:       cfg,
		sessionID: sessionID,
		security:  logging.NewSecurityLogger(),
		logger:    logging.WithComponent("monitoring"),
		now:       time.Now,
		newID:     uuid.NewString,
		counters: Counters{
			Messaging:     MessagingCounters{ByAction: make(map[string]int64)},
			Accessibility: AccessibilityCounters{Enabled: make(map[string]bool)},
			Errors:        ErrorCounters{ByCategory: make(map[string]int64)},
		},
		alertEv: emitter.New[Alert]("alerts"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.failedAuth = cache.NewSlidingWindow(cfg.FailedAuthWindow, maxTrackedAuthUsers).WithClock(a.now)
	return a
}

// SessionID identifies the monitored session.
func (a *Aggregator) SessionID() string {
	return a.sessionID
}

// OnAlert registers fn for newly raised alerts.
func (a *Aggregator) OnAlert(fn func(Alert)) *emitter.Subscription {
	return a.alertEv.On(fn)
}

// guard keeps monitoring failures away from the caller.
func (a *Aggregator) guard(op string) {
	if r := recover(); r != nil {
		a.logger.Error().
			Str("operation", op).
			Interface("panic", r).
			Msg("Monitoring failure ignored")
	}
}

// TrackUnmatch records one unmatch attempt. The running average uses the
// incremental mean avg += (x - avg) / n.
func (a *Aggregator) TrackUnmatch(duration time.Duration, success bool) {
	defer a.guard("TrackUnmatch")

	a.mu.Lock()
	defer a.mu.Unlock()

	u := &a.counters.Unmatch
	u.Total++
	if !success {
		u.Failed++
	}
	x := float64(duration) / float64(time.Millisecond)
	u.AverageDurationMs += (x - u.AverageDurationMs) / float64(u.Total)
}

// TrackMessaging records one messaging action.
func (a *Aggregator) TrackMessaging(action string, success bool) {
	defer a.guard("TrackMessaging")

	a.mu.Lock()
	defer a.mu.Unlock()

	m := &a.counters.Messaging
	m.Total++
	m.ByAction[action]++
	if !success {
		m.Failed++
	}
}

// TrackAccessibility records an accessibility setting change.
func (a *Aggregator) TrackAccessibility(feature string, enabled bool) {
	defer a.guard("TrackAccessibility")

	a.mu.Lock()
	defer a.mu.Unlock()

	a.counters.Accessibility.Toggles++
	a.counters.Accessibility.Enabled[feature] = enabled
}

// TrackError records an error and whether the feature recovered from it.
// A poor recovery rate over enough errors raises a reliability alert.
func (a *Aggregator) TrackError(category string, recovered bool) {
	defer a.guard("TrackError")

	a.mu.Lock()
	e := &a.counters.Errors
	e.Total++
	e.ByCategory[category]++
	if recovered {
		e.Recovered++
	}
	total, rate := e.Total, ratio(e.Recovered, e.Total)
	a.mu.Unlock()

	if total >= errorAlertMinErrors && rate < errorRecoveryFloor {
		a.raise(AlertInput{
			Category:          CategoryReliability,
			Severity:          SeverityMedium,
			Title:             "Low error recovery rate",
			Description:       fmt.Sprintf("Only %.0f%% of %d errors were recovered", rate*100, total),
			RecommendedAction: "Review error boundaries and retry paths",
		})
	}
}

// TrackAuthentication records a sign-in outcome. More than the configured
// number of failures for one user inside the window raises a suspicious
// pattern alert.
func (a *Aggregator) TrackAuthentication(userID string, success bool, reason string) {
	defer a.guard("TrackAuthentication")

	a.security.LogAuthentication(userID, "session_token", success, reason)

	a.mu.Lock()
	if success {
		a.counters.Security.AuthSuccesses++
		a.mu.Unlock()
		return
	}
	a.counters.Security.AuthFailures++
	a.mu.Unlock()

	key := userID
	if key == "" {
		key = anonymousAuthIdentity
	}
	failures := a.failedAuth.Add(key)
	if failures <= a.cfg.FailedAuthThreshold {
		return
	}

	a.mu.Lock()
	a.counters.Security.SuspiciousPatterns++
	a.mu.Unlock()

	a.security.LogSuspiciousPattern(userID, "repeated_auth_failure", failures)
	a.raise(AlertInput{
		Category:          CategorySecurity,
		Severity:          SeverityHigh,
		Title:             "Suspicious authentication pattern",
		Description:       fmt.Sprintf("%d failed authentications within %s", failures, a.cfg.FailedAuthWindow),
		RecommendedAction: "Verify the session token source and consider revoking it",
	})
}

// TrackDataAccess records an access to resource. Unauthorized access is a
// security incident.
func (a *Aggregator) TrackDataAccess(userID, resource string, authorized bool) {
	defer a.guard("TrackDataAccess")

	a.security.LogDataAccess(userID, resource, authorized)

	a.mu.Lock()
	a.counters.Security.DataAccess++
	if !authorized {
		a.counters.Security.UnauthorizedAccess++
	}
	a.mu.Unlock()

	if !authorized {
		a.raise(AlertInput{
			Category:          CategorySecurity,
			Severity:          SeverityHigh,
			Title:             "Unauthorized data access",
			Description:       fmt.Sprintf("Access to %s was denied", resource),
			RecommendedAction: "Audit the caller and the row-level policies for this resource",
			Incident:          true,
		})
	}
}

// TrackPerformance records the latest memory usage and app start time.
func (a *Aggregator) TrackPerformance(memoryMB float64, startTime time.Duration) {
	defer a.guard("TrackPerformance")

	a.mu.Lock()
	a.counters.Performance.MemoryMB = memoryMB
	a.counters.Performance.StartTimeMs = startTime.Milliseconds()
	a.mu.Unlock()

	if memoryMB > a.cfg.MemoryThresholdMB {
		a.raise(AlertInput{
			Category:          CategoryPerformance,
			Severity:          SeverityHigh,
			Title:             "High memory usage",
			Description:       fmt.Sprintf("Memory usage %.0fMB exceeds %.0fMB", memoryMB, a.cfg.MemoryThresholdMB),
			RecommendedAction: "Release cached images and large lists",
		})
	}
}

// TrackOperation records the duration of a named operation. Slow
// operations are reported, never aborted.
func (a *Aggregator) TrackOperation(name string, duration time.Duration) {
	defer a.guard("TrackOperation")

	slow := duration > a.cfg.SlowOperationThreshold

	a.mu.Lock()
	a.counters.Performance.Operations++
	if slow {
		a.counters.Performance.SlowOperations++
	}
	a.mu.Unlock()

	if !slow {
		return
	}
	metrics.MonitoringSlowOperations.WithLabelValues(name).Inc()
	a.logger.Warn().
		Str("operation", name).
		Dur("duration", duration).
		Msg("Slow operation")
	a.raise(AlertInput{
		Category:          CategoryPerformance,
		Severity:          SeverityLow,
		Title:             "Slow operation",
		Description:       fmt.Sprintf("%s took %s", name, duration.Round(time.Millisecond)),
		RecommendedAction: "Check backend latency for this operation",
	})
}

// Counters returns a deep copy of every counter.
func (a *Aggregator) Counters() Counters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.countersLocked()
}

func (a *Aggregator) countersLocked() Counters {
	c := a.counters
	c.Messaging.ByAction = copyMap(a.counters.Messaging.ByAction)
	c.Accessibility.Enabled = copyMap(a.counters.Accessibility.Enabled)
	c.Errors.ByCategory = copyMap(a.counters.Errors.ByCategory)
	return c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// rates derives every rate from c.
func rates(c Counters) Rates {
	operations := c.Messaging.Total + c.Unmatch.Total + c.Performance.Operations
	return Rates{
		ErrorRecoveryRate:    ratio(c.Errors.Recovered, c.Errors.Total),
		ErrorRate:            ratio(c.Errors.Total, operations),
		MessagingSuccessRate: ratio(c.Messaging.Total-c.Messaging.Failed, c.Messaging.Total),
		UnmatchSuccessRate:   ratio(c.Unmatch.Total-c.Unmatch.Failed, c.Unmatch.Total),
		AuthFailureRate:      ratio(c.Security.AuthFailures, c.Security.AuthSuccesses+c.Security.AuthFailures),
	}
}
