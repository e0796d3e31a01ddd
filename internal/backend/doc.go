// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package backend talks to the hosted backend: the REST gateway for
// conversations, messages and profiles, and the functions endpoint for
// mutation RPCs.
//
// Client performs raw requests. CircuitBreakerClient adds a gobreaker
// circuit breaker and per-operation metrics; only network failures (5xx,
// transport errors) count towards tripping it. CachedProfiles fronts profile
// lookups with a TTL cache.
//
// Failures are returned as *apperrors.Error: network for transport and 5xx
// responses, security for 401/403, validation for other 4xx responses.
// ErrNotFound is wrapped for missing profiles.
package backend
