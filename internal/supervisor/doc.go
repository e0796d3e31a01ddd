// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package supervisor runs Stellr's long-lived services under suture v4.

Services are grouped into three layers so a failure in one does not stop the
others:

	RootSupervisor ("stellr")
	├── FeedSupervisor ("feed-layer")
	│   ├── changefeed.Client        consumes row-change topics
	│   └── backend.CachedProfiles   evicts expired profiles
	├── CoreSupervisor ("core-layer")
	│   ├── websocket.Hub
	│   ├── monitoring.Aggregator    escalation and pruning sweep
	│   └── monitoring.Pusher        validation push (when configured)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A restarted changefeed client resubscribes every table topic. Callbacks
registered on the client are kept across restarts, so the conversation store
and realtime facade do not need to reattach.

Supervisor events are logged through sutureslog, which writes to the zerolog
backed slog handler from the logging package.
*/
package supervisor
