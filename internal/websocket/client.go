// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/stellr/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// clientIDCounter orders clients for broadcast.
var clientIDCounter atomic.Uint64

// inbound is what a consumer may send: a ping, or a subscribe naming the
// message types it wants. An empty type list restores the default of
// receiving everything.
type inbound struct {
	Type  string   `json:"type"`
	Types []string `json:"types,omitempty"`
}

// Client is one consumer connection. Writes happen only on the write pump;
// the hub hands messages over through send.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	wanted atomic.Pointer[map[string]struct{}]

	// sendMu orders replies from the read pump against the hub closing send.
	sendMu     sync.Mutex
	sendClosed bool
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// ID returns the client's connection-order identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Wants reports whether messageType passes the client's subscription.
func (c *Client) Wants(messageType string) bool {
	set := c.wanted.Load()
	if set == nil {
		return true
	}
	_, ok := (*set)[messageType]
	return ok
}

// subscribe replaces the subscription and returns the effective list.
func (c *Client) subscribe(types []string) []string {
	if len(types) == 0 {
		c.wanted.Store(nil)
		return []string{}
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	c.wanted.Store(&set)
	return types
}

// reply queues a direct answer to this client. Replies are dropped rather
// than block the read pump.
func (c *Client) reply(msg Message) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// closeSend ends the write pump. Only the hub calls it.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) handle(in inbound) {
	switch in.Type {
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	case MessageTypeSubscribe:
		c.reply(Message{Type: MessageTypeSubscribed, Data: map[string][]string{"types": c.subscribe(in.Types)}})
	default:
		logging.Debug().Uint64("client_id", c.id).Str("type", in.Type).Msg("ignoring websocket message")
	}
}

// readPump keeps the read deadline moving and handles control messages.
// Mutations go through the HTTP API, not the socket.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-time.After(writeWait):
			// hub already stopped
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(""); err != nil {
		logging.Error().Err(err).Uint64("client_id", c.id).Msg("websocket read deadline")
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		var in inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.handle(in)
	}
}

// write sends one frame under the write deadline.
func (c *Client) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			data, err := MarshalMessage(msg)
			if err != nil {
				logging.Error().Err(err).Str("message_type", msg.Type).Msg("encode websocket message")
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
