// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes restart behavior. It applies to every layer.
type TreeConfig struct {
	// FailureThreshold is the failure count that triggers backoff. Default 5.
	FailureThreshold float64

	// FailureDecay is the failure half-life in seconds. Default 30.
	FailureDecay float64

	// FailureBackoff is the pause once the threshold is hit. Default 15s.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take. Default 10s.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Layer is one child supervisor of the tree. A failure restarts services
// inside its own layer only.
type Layer int

const (
	// LayerFeed holds change-feed consumers and backend caches.
	LayerFeed Layer = iota
	// LayerCore holds the websocket hub and monitoring loops.
	LayerCore
	// LayerAPI holds the HTTP server.
	LayerAPI

	layerCount
)

func (l Layer) String() string {
	switch l {
	case LayerFeed:
		return "feed-layer"
	case LayerCore:
		return "core-layer"
	case LayerAPI:
		return "api-layer"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// Token identifies a service added to the tree.
type Token struct {
	layer Layer
	id    suture.ServiceToken
}

// SupervisorTree is the feed, core and api layering described in the
// package documentation.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers [layerCount]*suture.Supervisor
	config TreeConfig
}

// NewSupervisorTree creates the tree. Zero values in config take the
// defaults. Supervisor events are logged through logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor tree: nil logger")
	}
	config = config.withDefaults()

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	t := &SupervisorTree{
		root:   suture.New("stellr", config.spec(hook)),
		config: config,
	}
	// Layers inherit the root's event hook once added.
	for l := LayerFeed; l < layerCount; l++ {
		t.layers[l] = suture.New(l.String(), config.spec(nil))
		t.root.Add(t.layers[l])
	}
	return t, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add puts svc under layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) Token {
	return Token{layer: layer, id: t.layers[layer].Add(svc)}
}

func (t *SupervisorTree) AddFeedService(svc suture.Service) Token { return t.Add(LayerFeed, svc) }
func (t *SupervisorTree) AddCoreService(svc suture.Service) Token { return t.Add(LayerCore, svc) }
func (t *SupervisorTree) AddAPIService(svc suture.Service) Token  { return t.Add(LayerAPI, svc) }

// Remove stops the service behind tok and waits up to timeout for it.
func (t *SupervisorTree) Remove(tok Token, timeout time.Duration) error {
	if err := t.layers[tok.layer].RemoveAndWait(tok.id, timeout); err != nil {
		return fmt.Errorf("remove service from %s: %w", tok.layer, err)
	}
	return nil
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result once, when the tree stops; it is never closed.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
