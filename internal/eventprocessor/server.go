// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	brokerName         = "stellr-changefeed"
	brokerReadyTimeout = 30 * time.Second
	// Row payloads are a few KB; 1MB leaves room for large message bodies.
	brokerMaxPayload = 1 << 20
)

// EmbeddedServer is an in-process JetStream broker used when no external
// NATS deployment carries the change feed.
type EmbeddedServer struct {
	ns *server.Server
}

// NewEmbeddedServer starts the broker and blocks until it accepts
// connections.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	ns, err := server.NewServer(cfg.options())
	if err != nil {
		return nil, fmt.Errorf("create embedded broker: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(brokerReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded broker on %s:%d not ready after %s", cfg.Host, cfg.Port, brokerReadyTimeout)
	}
	return &EmbeddedServer{ns: ns}, nil
}

func (c *ServerConfig) options() *server.Options {
	return &server.Options{
		ServerName:         brokerName,
		Host:               c.Host,
		Port:               c.Port,
		JetStream:          true,
		StoreDir:           c.StoreDir,
		JetStreamMaxMemory: c.JetStreamMaxMem,
		JetStreamMaxStore:  c.JetStreamMaxStore,
		MaxPayload:         brokerMaxPayload,
		NoLog:              true,
		NoSigs:             true,
	}
}

// ClientURL is the URL publishers and subscribers connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Shutdown stops the broker. It waits for JetStream to flush unless ctx
// expires first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("embedded broker shutdown: %w", ctx.Err())
	}
}
