// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package changefeed

import (
	"fmt"

	"github.com/tomtom215/stellr/internal/emitter"
)

// Subscriber is the subscription side of Client.
type Subscriber interface {
	Subscribe(table string, filter Filter, eventTypes []EventType, fn Callback) (*emitter.Subscription, error)
}

// Binding is one subscription request.
type Binding struct {
	Table  string
	Filter Filter
	Types  []EventType
	Fn     Callback
}

// SubscribeAll registers every binding in order. On failure the bindings
// already registered are removed. The returned subscription removes all of
// them.
func SubscribeAll(s Subscriber, bindings ...Binding) (*emitter.Subscription, error) {
	subs := make([]*emitter.Subscription, 0, len(bindings))
	unsubscribeAll := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}

	for _, b := range bindings {
		sub, err := s.Subscribe(b.Table, b.Filter, b.Types, b.Fn)
		if err != nil {
			unsubscribeAll()
			return nil, fmt.Errorf("subscribe %s (%s): %w", b.Table, b.Filter, err)
		}
		subs = append(subs, sub)
	}
	return emitter.NewSubscription(unsubscribeAll), nil
}
