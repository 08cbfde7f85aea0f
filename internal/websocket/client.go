// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// clientIDCounter orders clients for deterministic broadcast iteration.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id      uint64
	session string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter

	// done is closed when the hub releases the client. send is never
	// closed, so replies from the read goroutine stay safe after release.
	done      chan struct{}
	closeOnce sync.Once

	// minSeq is the Seq of the snapshot this client was welcomed with.
	// Only touched on the hub goroutine.
	minSeq uint64
}

// inboundMessage is a message read from the browser.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type featureClick struct {
	LayerID string `json:"layerId"`
}

// NewClient creates a new Client with a unique deterministic ID
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return newClient(hub, conn, sendBuffer)
}

func newClient(hub *Hub, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		session: uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, buffer),
		limiter: hub.newClickLimiter(),
		done:    make(chan struct{}),
	}
}

// release marks the client as dropped by the hub. Safe to call repeatedly.
func (c *Client) release() {
	c.closeOnce.Do(func() { close(c.done) })
}

// released reports whether the hub has dropped the client.
func (c *Client) released() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// Session returns the client's session id used in logs.
func (c *Client) Session() string {
	return c.session
}

// reply queues a message for this client only. It is a no-op once the
// client is released or its buffer is full.
func (c *Client) reply(msg Message) {
	if c.released() {
		return
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
	}
}

// handle processes one message from the browser.
func (c *Client) handle(raw []byte) {
	metrics.WSMessagesReceived.Inc()

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.WSErrors.WithLabelValues("bad_message").Inc()
		logging.Debug().Err(err).Str("session", c.session).Msg("unreadable websocket message")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})
	case MessageTypeFeatureClick:
		var click featureClick
		if err := json.Unmarshal(msg.Data, &click); err != nil || click.LayerID == "" {
			metrics.WSErrors.WithLabelValues("bad_message").Inc()
			c.reply(Message{Type: MessageTypeError, Data: "feature_click requires layerId"})
			return
		}
		if !c.limiter.Allow() {
			metrics.WSClicks.WithLabelValues("rate_limited").Inc()
			c.reply(Message{Type: MessageTypeError, Data: "too many clicks"})
			return
		}
		if c.hub.dispatchClick(click.LayerID) {
			metrics.WSClicks.WithLabelValues("dispatched").Inc()
		} else {
			metrics.WSClicks.WithLabelValues("unbound").Inc()
		}
	default:
		logging.Debug().Str("type", msg.Type).Str("session", c.session).Msg("ignoring websocket message")
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-time.After(writeWait):
			// hub is gone; its shutdown already released c
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Error().Err(err).Str("session", c.session).Msg("unexpected websocket close error")
			}
			return
		}
		c.handle(raw)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			payload, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("marshal").Inc()
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
