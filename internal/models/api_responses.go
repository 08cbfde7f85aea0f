// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package models

import (
	"time"
)

// APIResponse is the envelope returned by every JSON endpoint.
//
// Status is "success" (see Data) or "error" (see Error).
//
//	{
//	  "status": "success",
//	  "data": [{"deviceId": "d1", "longitude": 106.71, "latitude": 10.81}],
//	  "metadata": {"timestamp": "2026-01-01T12:00:00Z", "count": 1}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Count       int       `json:"count,omitempty"`
}

// APIError is the structured error body. Code is one of the ErrCode
// constants.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes carried in APIError.Code.
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable = "UNAVAILABLE"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// ConnectivityStatus is the public view of the upstream stream connection.
type ConnectivityStatus struct {
	Connected bool      `json:"connected"`
	State     string    `json:"state"`
	Since     time.Time `json:"since"`
}

// HealthStatus is the detailed health view served at /api/v1/health.
//
// Status is "healthy" when the state engine answers and the upstream stream
// is connected, "degraded" otherwise.
type HealthStatus struct {
	Status           string  `json:"status"`
	StreamConnected  bool    `json:"stream_connected"`
	StreamState      string  `json:"stream_state"`
	EngineRunning    bool    `json:"engine_running"`
	TrackedDevices   int     `json:"tracked_devices"`
	WebSocketClients int     `json:"websocket_clients"`
	Uptime           float64 `json:"uptime_seconds"`
}
