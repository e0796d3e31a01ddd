// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

/*
Package models defines the rows and events Stellr mirrors from the backend.

Row models (Conversation, Message, Reaction, Profile, PresenceRecord) use the
backend's snake_case column names as JSON keys so change-feed payloads and
REST responses decode without translation. Event models (TypingEvent,
ReadReceipt, DeliveryUpdate, ReactionEvent) are derived from change-feed rows
by the realtime facade.
*/
package models
