// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/metrics"
	"github.com/tomtom215/geotrack/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeMapState        = "map_state"
	MessageTypeDraw            = "draw"
	MessageTypeConnectivity    = "connectivity"
	MessageTypeGeofenceEvent   = "geofence_event"
	MessageTypeFeatureSelected = "feature_selected"
	MessageTypeFeatureClick    = "feature_click"
	MessageTypeError           = "error"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
)

// Message represents a WebSocket message. Seq is set on draw commands and on
// the map_state snapshot; a client never receives a draw command whose Seq is
// already covered by the snapshot it was sent on registration.
type Message struct {
	Type string      `json:"type"`
	Seq  uint64      `json:"seq,omitempty"`
	Data interface{} `json:"data"`
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClickRate limits feature_click messages per client.
func WithClickRate(limit rate.Limit, burst int) HubOption {
	return func(h *Hub) {
		h.clickLimit = limit
		h.clickBurst = burst
	}
}

// WithBroadcastBuffer sets the broadcast queue size.
func WithBroadcastBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.broadcast = make(chan Message, n)
		}
	}
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	resync     chan struct{}
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	ready     chan struct{}
	readyOnce sync.Once
	running   atomic.Bool

	hookMu  sync.RWMutex
	welcome func() Message
	onClick func(layerID string) bool

	clickLimit rate.Limit
	clickBurst int
}

// NewHub creates a new Hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		broadcast:  make(chan Message, 1024),
		resync:     make(chan struct{}, 1),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ready:      make(chan struct{}),
		clickLimit: rate.Limit(5),
		clickBurst: 10,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetWelcome installs the function producing the first message every newly
// registered client receives. It is called on the hub goroutine.
func (h *Hub) SetWelcome(fn func() Message) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.welcome = fn
}

// SetClickHandler installs the handler for feature_click messages. It
// reports whether anything was bound to the clicked layer.
func (h *Hub) SetClickHandler(fn func(layerID string) bool) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onClick = fn
}

// Ready is closed the first time the hub starts running.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Running reports whether RunWithContext is currently executing.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// RunWithContext starts the hub with context support for graceful shutdown.
// When the context is canceled all connected clients are closed and
// ctx.Err() is returned, so a supervisor can restart the hub without leaving
// orphaned connections.
//
// Selection is prioritized: shutdown first, then client lifecycle events,
// then broadcasts, so client state is consistent before messages fan out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)
	h.readyOnce.Do(func() { close(h.ready) })

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		case <-h.resync:
			h.resyncClients()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case <-h.resync:
			h.resyncClients()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) addClient(client *Client) {
	h.hookMu.RLock()
	welcome := h.welcome
	h.hookMu.RUnlock()

	if welcome != nil {
		msg := welcome()
		client.minSeq = msg.Seq
		select {
		case client.send <- msg:
		default:
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			client.release()
			return
		}
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("session", client.session).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.release()
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Str("session", client.session).Int("total_clients", total).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err() is
// not logged as an error because cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends a message to all connected clients in client ID
// order. Clients whose buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if message.Seq != 0 && message.Seq <= client.minSeq {
			continue
		}
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	h.dropSlow(toRemove)
}

// dropSlow releases clients whose buffer was full. Callers hold mu.
func (h *Hub) dropSlow(clients []*Client) {
	for _, client := range clients {
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		logging.Warn().Str("session", client.session).Msg("websocket client too slow, disconnecting")
		client.release()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// resyncClients sends a fresh welcome snapshot to every client after a draw
// command was dropped. Each client's minSeq moves to the snapshot's Seq, so
// queued draw commands the snapshot already covers are skipped.
func (h *Hub) resyncClients() {
	h.hookMu.RLock()
	welcome := h.welcome
	h.hookMu.RUnlock()
	if welcome == nil {
		return
	}
	msg := welcome()

	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for client := range h.clients {
		client.minSeq = msg.Seq
		select {
		case client.send <- msg:
		default:
			toRemove = append(toRemove, client)
		}
	}
	h.dropSlow(toRemove)

	metrics.WSErrors.WithLabelValues("resync").Inc()
	logging.Warn().Uint64("seq", msg.Seq).Int("clients", len(h.clients)).Msg("draw command dropped, clients resynced")
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.release()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// enqueue queues message for broadcast, dropping it when the queue is full.
// Dropping a sequenced message schedules a resync of every client.
func (h *Hub) enqueue(message Message) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
	}

	metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
	logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	if message.Seq != 0 {
		select {
		case h.resync <- struct{}{}:
		default:
		}
	}
	return false
}

// BroadcastJSON sends a message to all connected clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.enqueue(Message{Type: messageType, Data: data})
}

// BroadcastConnectivity notifies all clients of a stream connectivity change.
func (h *Hub) BroadcastConnectivity(status models.ConnectivityStatus) {
	if h.enqueue(Message{Type: MessageTypeConnectivity, Data: status}) {
		logging.Debug().Bool("connected", status.Connected).Str("state", status.State).Msg("broadcast connectivity")
	}
}

// BroadcastGeofenceEvent forwards an accepted geofence crossing to all clients.
func (h *Hub) BroadcastGeofenceEvent(ev models.GeofenceEvent) {
	h.enqueue(Message{Type: MessageTypeGeofenceEvent, Data: ev})
}

// BroadcastFeatureSelected tells all clients which feature was clicked.
func (h *Hub) BroadcastFeatureSelected(f models.Feature) {
	h.enqueue(Message{Type: MessageTypeFeatureSelected, Data: f})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dispatchClick routes a feature_click to the installed handler.
func (h *Hub) dispatchClick(layerID string) bool {
	h.hookMu.RLock()
	fn := h.onClick
	h.hookMu.RUnlock()
	if fn == nil {
		return false
	}
	return fn(layerID)
}

func (h *Hub) newClickLimiter() *rate.Limiter {
	return rate.NewLimiter(h.clickLimit, h.clickBurst)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
