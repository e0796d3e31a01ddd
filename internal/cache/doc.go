// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package cache provides small in-memory structures with expiry: a TTL cache
// for backend lookups and a sliding window counter for threshold checks.
// Both take an injectable clock so expiry can be tested without sleeping.
package cache

import "time"

// Clock returns the current time.
type Clock func() time.Time
