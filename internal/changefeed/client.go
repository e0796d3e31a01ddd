// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package changefeed delivers backend row changes to in-process callbacks.
//
// The Client consumes one topic per table from a watermill subscriber and
// dispatches each event to the callbacks registered for that table, in
// registration order, filtered by event type and column equality. Events of
// one table are dispatched sequentially in arrival order.
package changefeed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/emitter"
	"github.com/tomtom215/stellr/internal/eventprocessor"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

// Callback handles one event. It runs on the table's dispatch goroutine and
// must not block for long.
type Callback func(Event)

type handler struct {
	id         uint64
	table      string
	filter     Filter
	eventTypes map[EventType]bool // nil matches all
	fn         Callback
	active     atomic.Bool
}

func (h *handler) matches(e Event) bool {
	if h.eventTypes != nil && !h.eventTypes[e.Type] {
		return false
	}
	return h.filter.Match(e.row())
}

// Client subscribes to the change feed and routes events to callbacks.
type Client struct {
	subscriber message.Subscriber
	publisher  message.Publisher
	prefix     string
	logger     zerolog.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]*handler
}

// NewClient returns a client reading topics <prefix>.<table> from sub and
// publishing broadcasts through pub.
func NewClient(sub message.Subscriber, pub message.Publisher, prefix string) *Client {
	return &Client{
		subscriber: sub,
		publisher:  pub,
		prefix:     prefix,
		logger:     logging.WithComponent("changefeed"),
		handlers:   make(map[string][]*handler),
	}
}

// Subscribe registers fn for events on table matching filter and one of
// eventTypes (all types when empty).
func (c *Client) Subscribe(table string, filter Filter, eventTypes []EventType, fn Callback) (*emitter.Subscription, error) {
	if !KnownTable(table) {
		return nil, apperrors.Validationf("changefeed.Subscribe", "unknown table %q", table)
	}
	if fn == nil {
		return nil, apperrors.Validationf("changefeed.Subscribe", "callback is required")
	}

	h := &handler{table: table, filter: filter, fn: fn}
	if len(eventTypes) > 0 {
		h.eventTypes = make(map[EventType]bool, len(eventTypes))
		for _, t := range eventTypes {
			h.eventTypes[t] = true
		}
	}
	h.active.Store(true)

	c.mu.Lock()
	c.nextID++
	h.id = c.nextID
	c.handlers[table] = append(c.handlers[table], h)
	n := len(c.handlers[table])
	c.mu.Unlock()

	metrics.ChangefeedSubscriptions.WithLabelValues(table).Set(float64(n))
	c.logger.Debug().
		Str("table", table).
		Str("filter", filter.String()).
		Msg("Change-feed callback registered")

	return emitter.NewSubscription(func() { c.remove(h) }), nil
}

func (c *Client) remove(h *handler) {
	h.active.Store(false)

	c.mu.Lock()
	list := c.handlers[h.table]
	for i, cur := range list {
		if cur.id == h.id {
			c.handlers[h.table] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	n := len(c.handlers[h.table])
	c.mu.Unlock()

	metrics.ChangefeedSubscriptions.WithLabelValues(h.table).Set(float64(n))
}

// Dispatch delivers e to matching callbacks. Serve calls it for every
// consumed message; it is exported for transports that bypass watermill.
func (c *Client) Dispatch(e Event) {
	start := time.Now()

	c.mu.RLock()
	list := c.handlers[e.Table]
	snapshot := make([]*handler, len(list))
	copy(snapshot, list)
	c.mu.RUnlock()

	for _, h := range snapshot {
		if !h.active.Load() || !h.matches(e) {
			continue
		}
		c.invoke(h, e)
	}

	metrics.RecordChangefeedEvent(e.Table, string(e.Type), time.Since(start))
}

func (c *Client) invoke(h *handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ChangefeedCallbackPanics.WithLabelValues(e.Table).Inc()
			c.logger.Error().
				Str("table", e.Table).
				Str("type", string(e.Type)).
				Interface("panic", r).
				Msg("Change-feed callback panicked")
		}
	}()
	h.fn(e)
}

// Serve consumes every table topic until ctx is canceled.
func (c *Client) Serve(ctx context.Context) error {
	channels := make(map[string]<-chan *message.Message, len(Tables))
	for _, table := range Tables {
		ch, err := c.subscriber.Subscribe(ctx, eventprocessor.TopicFor(c.prefix, table))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", table, err)
		}
		channels[table] = ch
	}
	c.logger.Info().Int("tables", len(channels)).Msg("Change feed consuming")

	var wg sync.WaitGroup
	for table, ch := range channels {
		wg.Add(1)
		go func(table string, ch <-chan *message.Message) {
			defer wg.Done()
			c.consume(ctx, table, ch)
		}(table, ch)
	}
	wg.Wait()

	return ctx.Err()
}

func (c *Client) consume(ctx context.Context, table string, ch <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.handleMessage(table, msg)
		}
	}
}

func (c *Client) handleMessage(table string, msg *message.Message) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		metrics.ChangefeedDecodeErrors.WithLabelValues(table).Inc()
		c.logger.Warn().Err(err).
			Str("table", table).
			Str("message_uuid", msg.UUID).
			Msg("Dropping undecodable change-feed message")
		msg.Ack()
		return
	}
	if e.Table == "" {
		e.Table = table
	}
	c.Dispatch(e)
	msg.Ack()
}

// Publish sends e to its table topic.
func (c *Client) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return apperrors.Validation("changefeed.Publish", err)
	}
	if e.CommitTimestamp.IsZero() {
		e.CommitTimestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("table", e.Table)
	msg.Metadata.Set("type", string(e.Type))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	msg.SetContext(ctx)

	err = c.publisher.Publish(eventprocessor.TopicFor(c.prefix, e.Table), msg)
	metrics.RecordChangefeedPublish(e.Table, err)
	if err != nil {
		return apperrors.Network("changefeed.Publish", err)
	}
	return nil
}

// Broadcast publishes an ephemeral payload on channel.
func (c *Client) Broadcast(ctx context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}
	return c.Publish(ctx, Event{Table: channel, Type: Broadcast, New: raw})
}

// String names the client in supervisor logs.
func (c *Client) String() string {
	return "changefeed-client"
}
