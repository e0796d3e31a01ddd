// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package auth resolves the session user from the backend-issued access token
// and guards the local API.
//
// Tokens are HS256 JWTs whose subject is the user id. When a JWT secret is
// configured tokens are verified; without one they are only decoded, which
// is acceptable for a loopback-bound API and is logged at startup.
package auth
