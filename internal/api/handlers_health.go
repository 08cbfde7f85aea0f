// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/geotrack/internal/models"
)

// HealthLive reports that the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady returns 200 once the state engine answers queries and the hub
// accepts browsers, 503 otherwise. Upstream connectivity is not required:
// the service keeps serving the last known state while the stream is down.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	engineRunning := h.engineRunning(r.Context())
	hubRunning := h.wsHub != nil && h.wsHub.Running()
	ready := engineRunning && hubRunning

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"engine_running": engineRunning,
			"hub_running":    hubRunning,
			"ready_to_serve": ready,
			"uptime":         time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// Health returns the detailed health view.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	health := models.HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	if h.stream != nil {
		st := h.stream.Status()
		health.StreamConnected = st.Connected
		health.StreamState = st.State
	}

	if h.state != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
		devices, err := h.state.Devices(ctx)
		cancel()
		if err == nil {
			health.EngineRunning = true
			health.TrackedDevices = len(devices)
		}
	}

	if h.wsHub != nil {
		health.WebSocketClients = h.wsHub.GetClientCount()
	}

	if !health.StreamConnected || !health.EngineRunning {
		health.Status = "degraded"
	}

	respondSuccess(w, health, 0, start)
}

func (h *Handler) engineRunning(ctx context.Context) bool {
	if h.state == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout)
	defer cancel()
	_, err := h.state.Devices(ctx)
	return err == nil
}
