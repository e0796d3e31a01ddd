// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package middleware

import (
	"net/http"
	"time"
)

// OperationTracker receives request durations.
type OperationTracker interface {
	TrackOperation(name string, duration time.Duration)
}

// SlowOperations reports every request's duration to tracker under the name
// "METHOD pattern". Long-lived upgrade requests are skipped.
func SlowOperations(tracker OperationTracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			next.ServeHTTP(w, r)
			tracker.TrackOperation(r.Method+" "+routePattern(r), time.Since(start))
		})
	}
}
