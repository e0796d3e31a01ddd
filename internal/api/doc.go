// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package api serves the local HTTP API used by UI consumers.

Routes are mounted on a chi router. Every JSON response uses the envelope

	{"status":"success|error","data":...,"metadata":{"timestamp","request_id"},"error":{"code","message","details"}}

Endpoint groups:

	/api/v1/health                  liveness, readiness, monitoring health
	/api/v1/conversations           list, refresh, read, archive, delete, send, typing
	/api/v1/unmatch                 end a match
	/api/v1/messages/{id}/reactions add, remove, list
	/api/v1/presence                update status, app state, lookup
	/api/v1/monitoring              dashboard, alerts, event ingestion
	/api/v1/preferences             banner dismissal, accessibility settings
	/api/v1/ws                      websocket event stream
	/metrics                        Prometheus

Errors map from apperrors categories: validation is 400, security is 401 or
403, network is 502 (503 while the backend breaker is open).
*/
package api
