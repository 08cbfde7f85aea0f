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

// Devices returns every tracked device, sorted by deviceId.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.state == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "State engine is not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	devices, err := h.state.Devices(ctx)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	respondSuccess(w, devices, len(devices), start)
}

// Events returns the geofence event log, newest first. limit (optional,
// positive) truncates the result.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, ok := getIntParam(r, "limit", 0)
	if !ok || limit < 0 {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "limit must be a non-negative integer", nil)
		return
	}

	if h.state == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "State engine is not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	events, err := h.state.EventLog(ctx)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}

	respondSuccess(w, events, len(events), start)
}

// Connectivity returns the upstream stream status.
func (h *Handler) Connectivity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.stream == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Stream is not configured", nil)
		return
	}
	respondSuccess(w, h.stream.Status(), 0, start)
}
