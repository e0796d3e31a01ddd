// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the part of jetstream.JetStream needed to provision
// the change-feed stream.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer provisions the stream that retains change events for
// every table subject, so a subscriber that reconnects can resume from its
// durable consumer.
type StreamInitializer struct {
	js  JetStreamContext
	cfg StreamConfig
}

// NewStreamInitializer returns an initializer for cfg.
func NewStreamInitializer(js JetStreamContext, cfg *StreamConfig) (*StreamInitializer, error) {
	switch {
	case js == nil:
		return nil, fmt.Errorf("%w: nil JetStream context", ErrInvalidConfig)
	case cfg == nil:
		return nil, fmt.Errorf("%w: nil stream config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &StreamInitializer{js: js, cfg: *cfg}, nil
}

// StreamSettings is the stream definition. Old events are discarded first
// once a limit is hit; the store rebuilds from the backend anyway.
func (s *StreamInitializer) StreamSettings() jetstream.StreamConfig {
	c := s.cfg
	return jetstream.StreamConfig{
		Name:        c.Name,
		Subjects:    c.Subjects,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      c.MaxAge,
		MaxBytes:    c.MaxBytes,
		MaxMsgs:     c.MaxMsgs,
		Duplicates:  c.DuplicateWindow,
		Replicas:    c.Replicas,
		AllowDirect: true,
	}
}

// EnsureStream creates the stream on first start and re-applies the
// definition on later starts so config changes take effect.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	want := s.StreamSettings()

	_, err := s.js.Stream(ctx, want.Name)
	switch {
	case err == nil:
		stream, err := s.js.UpdateStream(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("apply settings to stream %s: %w", want.Name, err)
		}
		return stream, nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err := s.js.CreateStream(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("provision stream %s: %w", want.Name, err)
		}
		return stream, nil
	default:
		return nil, fmt.Errorf("look up stream %s: %w", want.Name, err)
	}
}

// IsHealthy reports whether the stream is reachable.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.cfg.Name)
	return err == nil
}
