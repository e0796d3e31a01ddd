// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/stellr/internal/config"
)

type fakeJetStream struct {
	streamErr error
	created   []jetstream.StreamConfig
	updated   []jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = append(f.updated, cfg)
	return nil, nil
}

func testStreamConfig() *StreamConfig {
	n := &config.NATSConfig{StreamName: "CHANGEFEED", StreamMaxAge: time.Hour, MaxStore: 1 << 20}
	return NewStreamConfig("changefeed", n)
}

func TestEnsureStreamCreates(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{streamErr: jetstream.ErrStreamNotFound}
	init, err := NewStreamInitializer(js, testStreamConfig())
	if err != nil {
		t.Fatalf("NewStreamInitializer() error = %v", err)
	}

	if _, err := init.EnsureStream(context.Background()); err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}
	if len(js.created) != 1 || len(js.updated) != 0 {
		t.Fatalf("created=%d updated=%d, want 1/0", len(js.created), len(js.updated))
	}
	cfg := js.created[0]
	if cfg.Subjects[0] != "changefeed.>" {
		t.Errorf("Subjects = %v, want [changefeed.>]", cfg.Subjects)
	}
	if cfg.Retention != jetstream.LimitsPolicy || cfg.Discard != jetstream.DiscardOld {
		t.Errorf("unexpected retention/discard: %v/%v", cfg.Retention, cfg.Discard)
	}
}

func TestEnsureStreamUpdatesExisting(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{}
	init, err := NewStreamInitializer(js, testStreamConfig())
	if err != nil {
		t.Fatalf("NewStreamInitializer() error = %v", err)
	}

	if _, err := init.EnsureStream(context.Background()); err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}
	if len(js.updated) != 1 || len(js.created) != 0 {
		t.Fatalf("created=%d updated=%d, want 0/1", len(js.created), len(js.updated))
	}
	if !init.IsHealthy(context.Background()) {
		t.Error("IsHealthy() = false, want true")
	}
}

func TestEnsureStreamUnexpectedError(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{streamErr: errors.New("timeout")}
	init, _ := NewStreamInitializer(js, testStreamConfig())

	if _, err := init.EnsureStream(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if init.IsHealthy(context.Background()) {
		t.Error("IsHealthy() = true, want false")
	}
}

func TestNewStreamInitializerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewStreamInitializer(nil, testStreamConfig()); err == nil {
		t.Error("expected error for nil JetStream context")
	}
	if _, err := NewStreamInitializer(&fakeJetStream{}, &StreamConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
