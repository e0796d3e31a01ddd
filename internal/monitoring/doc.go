// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package monitoring aggregates feature counters, raises threshold alerts
// and derives recommendations and an overall health classification.
//
// The Aggregator is the only owner of alert and recommendation state. Track
// methods never return errors and never panic into the caller; a failure
// inside monitoring is logged and dropped.
//
// Thresholds (defaults from config.MonitoringConfig):
//
//	memory above 512MB                            high      performance
//	more than 3 failed sign-ins within 5 minutes  high      security
//	unauthorized data access                      high      security (incident)
//	recovery rate below 50% after 10 errors       medium    reliability
//	operation slower than 3s                      low       performance
//
// Alerts are appended on every breach and never deduplicated. Their
// lifecycle is active, acknowledged, resolved; resolved alerts are pruned
// after the retention window.
//
// Health is evaluated top-down, first match wins:
//
//	critical   an unresolved critical alert or security incident
//	unhealthy  memory above the threshold or start time above 10s
//	degraded   an unresolved high alert or start time above 5s
//	healthy    otherwise
//
// Serve runs the escalation sweep and pruning. Pusher periodically submits
// a checksummed, optionally encrypted snapshot to a validation endpoint.
package monitoring
