// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/eventprocessor"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/models"
)

// BreakerName identifies the backend breaker in logs and metrics.
const BreakerName = "backend-api"

// CircuitBreakerClient wraps an API with a circuit breaker and per-operation
// metrics.
type CircuitBreakerClient struct {
	api API
	cb  *gobreaker.CircuitBreaker[interface{}]
}

var _ API = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps api using the breaker settings of cfg.
func NewCircuitBreakerClient(api API, cfg *config.BackendConfig) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)

	cb := eventprocessor.NewCircuitBreaker(eventprocessor.CircuitBreakerConfig{
		Name:             BreakerName,
		MaxRequests:      cfg.BreakerMaxRequests,
		Interval:         cfg.BreakerInterval,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		IsSuccessful:     countsAsSuccess,
	})
	return &CircuitBreakerClient{api: api, cb: cb}
}

// countsAsSuccess keeps caller mistakes and auth failures from tripping the
// breaker; only network failures count.
func countsAsSuccess(err error) bool {
	return err == nil || apperrors.CategoryOf(err) != apperrors.CategoryNetwork
}

// State returns the breaker state name.
func (c *CircuitBreakerClient) State() string {
	return eventprocessor.CircuitBreakerState(c.cb)
}

func (c *CircuitBreakerClient) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := eventprocessor.ExecuteWithBreaker(c.cb, fn)
	metrics.RecordBackendRequest(op, time.Since(start), err)
	return result, err
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func (c *CircuitBreakerClient) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return castResult[[]models.Conversation](c.execute("list_conversations", func() (interface{}, error) {
		return c.api.ListConversations(ctx, userID)
	}))
}

func (c *CircuitBreakerClient) CountUnread(ctx context.Context, conversationID, senderID string, since time.Time) (int, error) {
	return castResult[int](c.execute("count_unread", func() (interface{}, error) {
		return c.api.CountUnread(ctx, conversationID, senderID, since)
	}))
}

func (c *CircuitBreakerClient) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return castResult[*models.Profile](c.execute("get_profile", func() (interface{}, error) {
		return c.api.GetProfile(ctx, userID)
	}))
}

func (c *CircuitBreakerClient) Invoke(ctx context.Context, name string, payload interface{}) (json.RawMessage, error) {
	return castResult[json.RawMessage](c.execute("rpc_"+name, func() (interface{}, error) {
		return c.api.Invoke(ctx, name, payload)
	}))
}
