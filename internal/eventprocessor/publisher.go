// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Publisher is the write side of the change feed: local row changes and
// ephemeral broadcasts (typing) go out through it. Publishes pass through an
// optional circuit breaker, and every message carries a Nats-Msg-Id so
// JetStream drops retried duplicates.
type Publisher struct {
	next    message.Publisher
	breaker *gobreaker.CircuitBreaker[interface{}]

	mu     sync.RWMutex
	closed bool
}

var _ message.Publisher = (*Publisher)(nil)

// NewPublisher connects a JetStream publisher. Streams are provisioned by
// StreamInitializer, never by the publisher.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	conn := connOptions{
		role:          "publisher",
		maxReconnects: cfg.MaxReconnects,
		reconnectWait: cfg.ReconnectWait,
		reconnectBuf:  cfg.ReconnectBuffer,
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: conn.natsOptions(logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			TrackMsgId: cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("change feed publisher: %w", err)
	}
	return newPublisher(pub, logger), nil
}

func newPublisher(next message.Publisher, _ watermill.LoggerAdapter) *Publisher {
	return &Publisher{next: next}
}

// SetCircuitBreaker guards publishes with cb.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.breaker = cb
}

// Publish sends msgs to topic.
func (p *Publisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	for _, m := range msgs {
		if m.Metadata.Get(natsgo.MsgIdHdr) == "" {
			m.Metadata.Set(natsgo.MsgIdHdr, m.UUID)
		}
	}

	send := func() (interface{}, error) {
		return nil, p.next.Publish(topic, msgs...)
	}
	if p.breaker == nil {
		_, err := send()
		return err
	}
	_, err := ExecuteWithBreaker(p.breaker, send)
	return err
}

// Close is idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.next.Close()
}
