// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package realtime turns messaging interactions into change-feed
// subscriptions and backend calls.
//
// Outbound:
//   - typing indicators on the ephemeral typing channel, with a keystroke
//     debouncer and a per-conversation rate limit
//   - reactions, presence, read receipts and messages through the mutation RPC
//
// Inbound (after Attach):
//   - remote typing state per user and conversation (idle or typing, with a
//     safety timeout back to idle)
//   - read receipts and delivery updates from message row updates
//   - reaction lists, changed only when the backend echoes the row
//   - presence records, read through a staleness window
//
// Listeners registered with the On* methods run in registration order on the
// change-feed goroutine and receive a disposable Subscription.
package realtime
