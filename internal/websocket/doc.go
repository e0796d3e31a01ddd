// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package websocket pushes conversation, realtime and monitoring events to
local consumers over gorilla/websocket.

A Hub owns the set of clients. Each Client runs a read pump (pings and
disconnect detection) and a write pump (messages and keepalive pings).
Bridge subscribes to the conversation store, the realtime facade and the
monitoring aggregator and forwards their events through the hub:

	conversation_changed  conversation.Change
	typing                models.TypingEvent
	read_receipt          models.ReadReceipt
	message_delivery      models.DeliveryUpdate
	message_reaction      models.ReactionEvent
	presence              models.PresenceRecord
	monitoring_alert      monitoring.Alert

Broadcasts never block the emitting goroutine. A full hub queue drops the
message; a client whose buffer is full is disconnected.
*/
package websocket
