// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

// Message types. Ping, pong, subscribe and subscribed are per-client control
// messages; the rest are broadcasts.
const (
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"

	MessageTypeConversation = "conversation_changed"
	MessageTypeTyping       = "typing"
	MessageTypeReadReceipt  = "read_receipt"
	MessageTypeDelivery     = "message_delivery"
	MessageTypeReaction     = "message_reaction"
	MessageTypePresence     = "presence"
	MessageTypeAlert        = "monitoring_alert"
)

const broadcastBuffer = 256

// Message is the envelope written to every client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MarshalMessage encodes msg as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Hub owns the set of consumer connections. All membership changes and
// fan-out happen on the Serve goroutine; mu only guards reads from other
// goroutines.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	broadcast chan Message

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an idle hub. Serve must run for messages to flow.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Message, broadcastBuffer),
		clients:    make(map[*Client]struct{}),
	}
}

func (h *Hub) String() string {
	return "websocket-hub"
}

// Serve runs until ctx is canceled, then closes every client. Pending
// registrations are applied before the next broadcast so a client that
// connected first never misses it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return h.stop(ctx)
		}

		select {
		case c := <-h.Register:
			h.join(c)
			continue
		case c := <-h.Unregister:
			h.leave(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return h.stop(ctx)
		case c := <-h.Register:
			h.join(c)
		case c := <-h.Unregister:
			h.leave(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// BroadcastJSON queues a message for every subscribed client. It never
// blocks; the message is dropped when the queue is full.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("message_type", messageType).Msg("websocket broadcast queue full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client disconnected")
}

// dropLocked closes c's send channel, which makes its write pump send a
// close frame and exit.
func (h *Hub) dropLocked(c *Client) {
	c.closeSend()
	delete(h.clients, c)
}

// orderedLocked returns clients in connection order.
func (h *Hub) orderedLocked() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// fanOut delivers msg to every client subscribed to its type. A client
// whose buffer is full is disconnected; it reconnects and refetches state
// over HTTP.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, c := range h.orderedLocked() {
		if !c.Wants(msg.Type) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
			dropped++
		}
	}

	metrics.WSMessagesSent.WithLabelValues(msg.Type).Inc()
	if dropped > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped_clients", dropped).Str("message_type", msg.Type).Msg("slow websocket clients disconnected")
	}
}

func (h *Hub) stop(ctx context.Context) error {
	h.mu.Lock()
	closed := len(h.clients)
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	metrics.WSConnections.Set(0)

	reason := "canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "deadline"
	}
	logging.Info().Str("reason", reason).Int("clients_closed", closed).Msg("websocket hub stopped")
	return ctx.Err()
}
