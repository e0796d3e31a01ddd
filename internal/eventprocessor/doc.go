// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package eventprocessor provides the message transport underneath the change
// feed. Two transports share the watermill message.Publisher and
// message.Subscriber interfaces:
//
//   - nats: NATS JetStream through watermill-nats, optionally backed by an
//     embedded nats-server. A single stream captures <prefix>.> so every table
//     subject is persisted and replayable within StreamMaxAge.
//   - memory: watermill's gochannel pub/sub for single-process deployments
//     and tests.
//
// Publishes are guarded by a gobreaker circuit breaker. Subscribers run with
// one consumer goroutine per topic so row changes for a table are delivered
// in commit order.
//
// Open builds the configured transport; Close releases it in reverse order
// (subscriber, publisher, NATS connection, embedded server).
package eventprocessor
