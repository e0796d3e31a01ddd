// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import (
	"fmt"
	"time"

	"github.com/tomtom215/stellr/internal/metrics"
)

// classify applies the health rules top-down.
func classify(c Counters, active []Alert, memoryThresholdMB float64) Health {
	var critical, high bool
	for _, al := range active {
		switch {
		case al.Severity == SeverityCritical, al.Incident:
			critical = true
		case al.Severity == SeverityHigh:
			high = true
		}
	}
	start := time.Duration(c.Performance.StartTimeMs) * time.Millisecond

	switch {
	case critical:
		return HealthCritical
	case c.Performance.MemoryMB > memoryThresholdMB || start > startUnhealthy:
		return HealthUnhealthy
	case high || start > startDegraded:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// Health classifies the current state.
func (a *Aggregator) Health() Health {
	a.mu.Lock()
	h := classify(a.counters, a.activeAlertsLocked(), a.cfg.MemoryThresholdMB)
	a.mu.Unlock()

	metrics.MonitoringHealthStatus.Set(h.gaugeValue())
	return h
}

// Snapshot returns counters, rates and health.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	c := a.countersLocked()
	h := classify(c, a.activeAlertsLocked(), a.cfg.MemoryThresholdMB)
	a.mu.Unlock()

	return Snapshot{Counters: c, Rates: rates(c), Health: h}
}

// Dashboard assembles the full view. Recommendations are regenerated on
// every call.
func (a *Aggregator) Dashboard() Dashboard {
	a.mu.Lock()
	c := a.countersLocked()
	active := a.activeAlertsLocked()
	a.mu.Unlock()

	r := rates(c)
	h := classify(c, active, a.cfg.MemoryThresholdMB)
	metrics.MonitoringHealthStatus.Set(h.gaugeValue())

	return Dashboard{
		GeneratedAt:     a.now().UTC(),
		SessionID:       a.sessionID,
		Health:          h,
		Counters:        c,
		Rates:           r,
		ActiveAlerts:    active,
		Recommendations: a.recommend(c, r),
	}
}

// recommend derives recommendations by fixed rules.
func (a *Aggregator) recommend(c Counters, r Rates) []Recommendation {
	recs := make([]Recommendation, 0, 6)
	add := func(cat Category, priority Severity, title, desc string) {
		recs = append(recs, Recommendation{
			ID:          a.newID(),
			Category:    cat,
			Title:       title,
			Priority:    priority,
			Description: desc,
		})
	}

	if c.Performance.MemoryMB > 0.8*a.cfg.MemoryThresholdMB {
		add(CategoryPerformance, SeverityHigh, "Reduce memory usage",
			fmt.Sprintf("Memory is at %.0fMB of a %.0fMB budget", c.Performance.MemoryMB, a.cfg.MemoryThresholdMB))
	}
	if time.Duration(c.Performance.StartTimeMs)*time.Millisecond > startDegraded {
		add(CategoryPerformance, SeverityMedium, "Improve start time",
			fmt.Sprintf("App start took %dms", c.Performance.StartTimeMs))
	}
	if c.Errors.Total > 0 && r.ErrorRecoveryRate < 0.8 {
		add(CategoryReliability, SeverityMedium, "Improve error recovery",
			fmt.Sprintf("%.0f%% of errors were recovered", r.ErrorRecoveryRate*100))
	}
	if c.Security.AuthFailures > 0 {
		add(CategorySecurity, SeverityHigh, "Review failed authentications",
			fmt.Sprintf("%d failed authentications recorded", c.Security.AuthFailures))
	}
	if c.Messaging.Total > 0 && r.MessagingSuccessRate < 0.95 {
		add(CategoryMessaging, SeverityMedium, "Investigate message failures",
			fmt.Sprintf("%.1f%% of messaging actions succeeded", r.MessagingSuccessRate*100))
	}
	if c.Unmatch.Total > 0 && c.Unmatch.AverageDurationMs > 2000 {
		add(CategoryUnmatch, SeverityLow, "Speed up unmatch",
			fmt.Sprintf("Unmatch takes %.0fms on average", c.Unmatch.AverageDurationMs))
	}
	if c.Accessibility.Toggles == 0 {
		add(CategoryAccessibility, SeverityLow, "Surface accessibility settings",
			"No accessibility settings have been changed this session")
	}
	return recs
}
