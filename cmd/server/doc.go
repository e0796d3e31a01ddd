// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package main runs the Stellr core for one signed-in user.

The process mirrors the user's conversations from the backend, consumes the
row-change feed for messages, reactions, presence and typing, aggregates
monitoring counters, and exposes all of it through a local HTTP API with a
WebSocket push channel.

# Application Architecture

	RootSupervisor ("stellr")
	├── FeedSupervisor ("feed-layer")
	│   ├── Change-feed client (NATS JetStream or in-memory)
	│   └── Profile cache eviction
	├── CoreSupervisor ("core-layer")
	│   ├── WebSocket hub
	│   ├── Monitoring escalation sweep
	│   └── Monitoring validation push (optional)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Session: user id from STELLR_USER_ID or the access token subject
 3. Preference store: BadgerDB, on disk or in memory
 4. Change-feed transport: embedded or external NATS, or gochannel
 5. Backend client behind a circuit breaker, with a profile cache
 6. Conversation store and realtime facade, attached to the change feed
 7. WebSocket hub bridged to store, facade and alert events
 8. HTTP router and supervisor tree

# Configuration

Required:
  - STELLR_USER_ID or STELLR_ACCESS_TOKEN
  - STELLR_BACKEND_URL

Common options:
  - STELLR_CHANGEFEED_TRANSPORT: nats (default) or memory
  - NATS_EMBEDDED / NATS_URL: embedded server or an external cluster
  - JWT_SECRET: verifies the access token and guards the local API
  - STELLR_MONITORING_VALIDATION_URL: enables the validation push
  - HTTP_PORT: local API port (default 3870, bound to 127.0.0.1)

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service within its shutdown timeout and services that miss it are logged.
*/
package main
