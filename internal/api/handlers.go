// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/models"
	ws "github.com/tomtom215/geotrack/internal/websocket"
)

// DefaultQueryTimeout bounds how long a state endpoint waits on the engine.
const DefaultQueryTimeout = 2 * time.Second

// LiveState answers read-only state queries. livestate.Engine implements it.
type LiveState interface {
	Devices(ctx context.Context) ([]models.DevicePosition, error)
	EventLog(ctx context.Context) ([]models.GeofenceEvent, error)
}

// StreamStatus reports upstream connectivity. stream.Manager implements it.
type StreamStatus interface {
	Status() models.ConnectivityStatus
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrade
//   - handlers_helpers.go: response helpers
//   - handlers_health.go: liveness, readiness and detailed health
//   - handlers_live.go: devices, events and connectivity views
type Handler struct {
	state        LiveState
	stream       StreamStatus
	wsHub        *ws.Hub
	corsOrigins  []string
	queryTimeout time.Duration
	startTime    time.Time
}

// NewHandler creates a Handler. corsOrigins also gates websocket upgrades;
// nil allows any origin.
func NewHandler(state LiveState, stream StreamStatus, hub *ws.Hub, corsOrigins []string) *Handler {
	return &Handler{
		state:        state,
		stream:       stream,
		wsHub:        hub,
		corsOrigins:  corsOrigins,
		queryTimeout: DefaultQueryTimeout,
		startTime:    time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin on websocket handshakes.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.corsOrigins == nil {
		return true
	}

	for _, allowedOrigin := range h.corsOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades a browser map widget connection and registers it with
// the hub. The first message the client receives is the current map_state.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil || !h.wsHub.Running() {
		logging.Warn().Msg("WebSocket connection rejected: hub not running")
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	select {
	case h.wsHub.Register <- client:
		client.Start()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}
