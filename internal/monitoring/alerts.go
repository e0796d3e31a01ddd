// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/validation"
)

// ErrInvalidTransition is returned for lifecycle moves the alert's status
// does not allow.
var ErrInvalidTransition = errors.New("invalid alert transition")

// RaiseAlert appends an alert built from in. It is used for alerts reported
// by consumers rather than by the threshold checks.
func (a *Aggregator) RaiseAlert(in AlertInput) (Alert, error) {
	if verr := validation.ValidateStruct(in); verr != nil {
		return Alert{}, apperrors.Validation("monitoring.RaiseAlert", verr)
	}
	return a.raise(in), nil
}

// raise appends an alert. Alerts are never deduplicated.
func (a *Aggregator) raise(in AlertInput) Alert {
	alert := &Alert{
		ID:                a.newID(),
		Category:          in.Category,
		Severity:          in.Severity,
		Title:             in.Title,
		Description:       in.Description,
		Timestamp:         a.now().UTC(),
		Status:            AlertActive,
		RecommendedAction: in.RecommendedAction,
		Incident:          in.Incident,
	}

	a.mu.Lock()
	a.alerts = append(a.alerts, alert)
	snapshot := *alert
	a.publishAlertGaugesLocked()
	a.mu.Unlock()

	metrics.RecordAlertCreated(string(alert.Category), string(alert.Severity))
	event := a.logger.Warn()
	if alert.Severity == SeverityCritical {
		event = a.logger.Error()
	}
	event.
		Str("alert_id", alert.ID).
		Str("category", string(alert.Category)).
		Str("severity", string(alert.Severity)).
		Str("title", alert.Title).
		Msg("Alert raised")

	a.alertEv.Emit(snapshot)
	return snapshot
}

// Alerts returns every retained alert, oldest first.
func (a *Aggregator) Alerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Alert, len(a.alerts))
	for i, al := range a.alerts {
		out[i] = *al
	}
	return out
}

// ActiveAlerts returns the alerts that are not resolved.
func (a *Aggregator) ActiveAlerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeAlertsLocked()
}

func (a *Aggregator) activeAlertsLocked() []Alert {
	out := make([]Alert, 0, len(a.alerts))
	for _, al := range a.alerts {
		if al.Status != AlertResolved {
			out = append(out, *al)
		}
	}
	return out
}

// Acknowledge moves an active alert to acknowledged.
func (a *Aggregator) Acknowledge(id string) (Alert, error) {
	return a.transition("monitoring.Acknowledge", id, func(al *Alert, now time.Time) bool {
		if al.Status != AlertActive {
			return false
		}
		al.Status = AlertAcknowledged
		al.AcknowledgedAt = &now
		return true
	})
}

// Resolve moves an active or acknowledged alert to resolved.
func (a *Aggregator) Resolve(id string) (Alert, error) {
	return a.transition("monitoring.Resolve", id, func(al *Alert, now time.Time) bool {
		if al.Status == AlertResolved {
			return false
		}
		al.Status = AlertResolved
		al.ResolvedAt = &now
		return true
	})
}

func (a *Aggregator) transition(op, id string, apply func(*Alert, time.Time) bool) (Alert, error) {
	now := a.now().UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, al := range a.alerts {
		if al.ID != id {
			continue
		}
		from := al.Status
		if !apply(al, now) {
			return *al, apperrors.Validation(op, fmt.Errorf("%w: alert %s is %s", ErrInvalidTransition, id, from))
		}
		a.publishAlertGaugesLocked()
		a.logger.Info().
			Str("alert_id", id).
			Str("from", string(from)).
			Str("to", string(al.Status)).
			Msg("Alert status changed")
		return *al, nil
	}
	return Alert{}, apperrors.Validation(op, fmt.Errorf("alert %s: %w", id, apperrors.ErrNotFound))
}

// Prune drops resolved alerts whose resolution is older than the retention
// window. It returns the number removed.
func (a *Aggregator) Prune(now time.Time) int {
	cutoff := now.Add(-a.cfg.AlertRetention)

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.alerts[:0]
	removed := 0
	for _, al := range a.alerts {
		if al.Status == AlertResolved && al.ResolvedAt != nil && al.ResolvedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, al)
	}
	for i := len(kept); i < len(a.alerts); i++ {
		a.alerts[i] = nil
	}
	a.alerts = kept
	return removed
}

// EscalationSweep flags critical alerts still active EscalationAfter after
// creation. Each alert is flagged once. Escalation is a logged hook only.
func (a *Aggregator) EscalationSweep(now time.Time) []Alert {
	a.mu.Lock()
	var escalated []Alert
	for _, al := range a.alerts {
		if al.Severity != SeverityCritical || al.Status != AlertActive || al.EscalatedAt != nil {
			continue
		}
		if now.Sub(al.Timestamp) < a.cfg.EscalationAfter {
			continue
		}
		ts := now.UTC()
		al.EscalatedAt = &ts
		escalated = append(escalated, *al)
	}
	a.mu.Unlock()

	for _, al := range escalated {
		metrics.MonitoringEscalations.Inc()
		a.logger.Error().
			Str("alert_id", al.ID).
			Str("category", string(al.Category)).
			Str("title", al.Title).
			Dur("age", now.Sub(al.Timestamp)).
			Msg("Critical alert requires escalation")
	}
	return escalated
}

func (a *Aggregator) publishAlertGaugesLocked() {
	bySeverity := make(map[string]int, 4)
	for _, al := range a.alerts {
		if al.Status != AlertResolved {
			bySeverity[string(al.Severity)]++
		}
	}
	metrics.UpdateActiveAlerts(bySeverity)
}
