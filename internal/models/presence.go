// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package models

import "time"

// PresenceStatus is a user's reported availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether s is one of the four known statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// PresenceRecord is a row of the user_presence table.
type PresenceRecord struct {
	UserID   string         `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

// Effective returns the status consumers should display: a record whose
// last_seen is older than staleAfter reads as offline.
func (p PresenceRecord) Effective(now time.Time, staleAfter time.Duration) PresenceStatus {
	if p.LastSeen.IsZero() || now.Sub(p.LastSeen) > staleAfter {
		return PresenceOffline
	}
	if !p.Status.Valid() {
		return PresenceOffline
	}
	return p.Status
}
