// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package websocket

import (
	"github.com/tomtom215/stellr/internal/conversation"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/models"
	"github.com/tomtom215/stellr/internal/monitoring"
)

// Broadcaster fans a typed message out to consumers.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// ConversationSource emits conversation list changes.
type ConversationSource interface {
	OnChange(fn func(conversation.Change)) *emitter.Subscription
}

// RealtimeSource emits typing, receipt, delivery, reaction and presence
// events.
type RealtimeSource interface {
	OnTyping(fn func(models.TypingEvent)) *emitter.Subscription
	OnReadReceipt(fn func(models.ReadReceipt)) *emitter.Subscription
	OnMessageDelivery(fn func(models.DeliveryUpdate)) *emitter.Subscription
	OnMessageReaction(fn func(models.ReactionEvent)) *emitter.Subscription
	OnPresence(fn func(models.PresenceRecord)) *emitter.Subscription
}

// AlertSource emits newly raised monitoring alerts.
type AlertSource interface {
	OnAlert(fn func(monitoring.Alert)) *emitter.Subscription
}

// Bridge forwards every event of the given sources to b. Nil sources are
// skipped. The returned subscription detaches everything.
func Bridge(b Broadcaster, convs ConversationSource, rt RealtimeSource, alerts AlertSource) *emitter.Subscription {
	var subs []*emitter.Subscription

	if convs != nil {
		subs = append(subs, convs.OnChange(func(c conversation.Change) {
			b.BroadcastJSON(MessageTypeConversation, c)
		}))
	}
	if rt != nil {
		subs = append(subs,
			rt.OnTyping(func(e models.TypingEvent) { b.BroadcastJSON(MessageTypeTyping, e) }),
			rt.OnReadReceipt(func(e models.ReadReceipt) { b.BroadcastJSON(MessageTypeReadReceipt, e) }),
			rt.OnMessageDelivery(func(e models.DeliveryUpdate) { b.BroadcastJSON(MessageTypeDelivery, e) }),
			rt.OnMessageReaction(func(e models.ReactionEvent) { b.BroadcastJSON(MessageTypeReaction, e) }),
			rt.OnPresence(func(e models.PresenceRecord) { b.BroadcastJSON(MessageTypePresence, e) }),
		)
	}
	if alerts != nil {
		subs = append(subs, alerts.OnAlert(func(a monitoring.Alert) {
			b.BroadcastJSON(MessageTypeAlert, a)
		}))
	}

	return emitter.NewSubscription(func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	})
}
