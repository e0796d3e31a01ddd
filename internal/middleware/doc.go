// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package middleware provides HTTP middleware for the local API.

  - RequestID: X-Request-ID propagation and logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by the chi route pattern
  - SlowOperations: reports request durations to the monitoring aggregator,
    which raises an alert above its slow-operation threshold

Every middleware has the chi signature func(http.Handler) http.Handler:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SlowOperations(aggregator))
*/
package middleware
