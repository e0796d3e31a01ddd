// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/stellr/internal/config"
)

// Transport bundles the publisher and subscriber of one change-feed
// transport together with the resources they depend on.
type Transport struct {
	Name       string
	Publisher  message.Publisher
	Subscriber message.Subscriber

	conn   *natsgo.Conn
	server *EmbeddedServer
}

// Open builds the transport selected by cf.Transport.
func Open(ctx context.Context, cf *config.ChangefeedConfig, n *config.NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	switch cf.Transport {
	case "memory":
		ps := NewMemoryPubSub(cf.BufferSize, logger)
		return &Transport{Name: "memory", Publisher: ps, Subscriber: ps}, nil
	case "nats":
		return openNATS(ctx, cf, n, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cf.Transport)
	}
}

func openNATS(ctx context.Context, cf *config.ChangefeedConfig, n *config.NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	t := &Transport{Name: "nats"}
	url := n.URL

	if n.EmbeddedServer {
		srv, err := NewEmbeddedServer(NewServerConfig(n))
		if err != nil {
			return nil, err
		}
		t.server = srv
		url = srv.ClientURL()
	}

	conn, err := natsgo.Connect(url, natsgo.Name("stellr-stream-init"))
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}
	t.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	streams, err := NewStreamInitializer(js, NewStreamConfig(cf.SubjectPrefix, n))
	if err != nil {
		t.Close()
		return nil, err
	}
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := streams.EnsureStream(initCtx); err != nil {
		t.Close()
		return nil, err
	}

	pub, err := NewPublisher(NewPublisherConfig(url, n), logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	pub.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("changefeed-publisher")))
	t.Publisher = pub

	sub, err := NewSubscriber(NewSubscriberConfig(url, n), logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	t.Subscriber = sub

	return t, nil
}

// Close releases the transport. It is safe to call on a partially opened
// transport.
func (t *Transport) Close() error {
	var errs []error
	if t.Subscriber != nil {
		if err := t.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	// gochannel backs both sides; closing it twice is harmless.
	if t.Publisher != nil {
		if err := t.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if t.conn != nil {
		t.conn.Close()
	}
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
	}
	return errors.Join(errs...)
}
