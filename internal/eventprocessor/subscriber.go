// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// Subscriber is the read side of the change feed. Each table topic gets its
// own durable consumer, so a restarted process resumes per table.
type Subscriber struct {
	next message.Subscriber
}

var _ message.Subscriber = (*Subscriber)(nil)

// NewSubscriber connects a JetStream subscriber. With a stream name set the
// consumers bind to that stream; otherwise watermill provisions one per
// topic. Consumers that have never run start at the newest event: history
// before attach is loaded from the backend by a refresh, not replayed.
func NewSubscriber(cfg *SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	conn := connOptions{
		role:          "subscriber",
		maxReconnects: cfg.MaxReconnects,
		reconnectWait: cfg.ReconnectWait,
	}

	js := wmNats.JetStreamConfig{
		AutoProvision: cfg.StreamName == "",
		SubscribeOptions: []natsgo.SubOpt{
			natsgo.DeliverNew(),
			natsgo.AckWait(cfg.AckWaitTimeout),
			natsgo.MaxDeliver(cfg.MaxDeliver),
			natsgo.MaxAckPending(cfg.MaxAckPending),
		},
		DurablePrefix:     cfg.DurableName,
		DurableCalculator: DurableName,
	}
	if cfg.StreamName != "" {
		js.SubscribeOptions = append(js.SubscribeOptions, natsgo.BindStream(cfg.StreamName))
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      conn.natsOptions(logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        js,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("change feed subscriber: %w", err)
	}
	return &Subscriber{next: sub}, nil
}

// durableReplacer maps subject tokens that consumer names cannot hold.
var durableReplacer = strings.NewReplacer(".", "_", "*", "any", ">", "all")

// DurableName derives the consumer name for topic, e.g. ("stellr",
// "changefeed.messages") becomes "stellr_changefeed_messages".
func DurableName(prefix, topic string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "_" + durableReplacer.Replace(topic)
}

// Subscribe streams messages for topic until ctx is canceled or the
// subscriber closes.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.next.Subscribe(ctx, topic)
}

// Close stops every consumer.
func (s *Subscriber) Close() error {
	return s.next.Close()
}
