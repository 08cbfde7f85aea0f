// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the live tracking pipeline:
// - Upstream stream connection lifecycle
// - Live state (snapshot, event log, malformed input)
// - Render reconciliation against the map surface
// - Browser WebSocket connections and clicks
// - HTTP API

var (
	// Stream Connection Metrics
	StreamState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_stream_state",
			Help: "Stream connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed)",
		},
	)

	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_stream_connected",
			Help: "1 while the upstream stream connection is established",
		},
	)

	StreamConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_stream_connect_attempts_total",
			Help: "Total number of upstream connection attempts",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geotrack_stream_reconnects_total",
			Help: "Total number of reconnections scheduled after a transport drop",
		},
	)

	StreamBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrack_stream_backoff_seconds",
			Help:    "Delay waited before each reconnection attempt",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30, 60},
		},
	)

	StreamMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_stream_messages_received_total",
			Help: "Total number of messages received from the upstream broker",
		},
		[]string{"kind"}, // "position", "geofence"
	)

	StreamMessagesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geotrack_stream_messages_discarded_total",
			Help: "Messages dropped because their session was already closed",
		},
	)

	// Live State Metrics
	MessagesMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_messages_malformed_total",
			Help: "Total number of inbound messages rejected as malformed",
		},
		[]string{"kind", "field"},
	)

	TrackedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_tracked_devices",
			Help: "Number of devices in the live snapshot",
		},
	)

	EventLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_event_log_size",
			Help: "Number of geofence events held in the event log",
		},
	)

	EngineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_engine_queue_depth",
			Help: "Messages waiting in the state engine inbox",
		},
	)

	// Render Metrics
	RenderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_render_operations_total",
			Help: "Total number of draw operations issued to the map surface",
		},
		[]string{"operation"}, // "add_source", "set_data", "add_layer", "remove_layer", "remove_source", "on"
	)

	RenderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_render_errors_total",
			Help: "Total number of failed draw operations",
		},
		[]string{"operation"},
	)

	RenderBindings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_render_bindings",
			Help: "Number of features currently drawn on the map surface",
		},
	)

	RenderDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geotrack_render_deferred_total",
			Help: "Reconciliations deferred until the surface became ready",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrack_reconcile_duration_seconds",
			Help:    "Duration of a single reconciliation pass",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSClicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_feature_clicks_total",
			Help: "Feature clicks received from map widgets",
		},
		[]string{"result"}, // "dispatched", "unbound", "rate_limited"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordStreamState publishes a connection state transition.
func RecordStreamState(state int, connected bool) {
	StreamState.Set(float64(state))
	if connected {
		StreamConnected.Set(1)
	} else {
		StreamConnected.Set(0)
	}
}

// RecordConnectAttempt records the outcome of one dial.
func RecordConnectAttempt(result string) {
	StreamConnectAttempts.WithLabelValues(result).Inc()
}

// RecordReconnect records a scheduled reconnection and the delay before it.
func RecordReconnect(delay time.Duration) {
	StreamReconnects.Inc()
	StreamBackoffSeconds.Observe(delay.Seconds())
}

// RecordStreamMessage counts an inbound message by kind.
func RecordStreamMessage(kind string) {
	StreamMessagesReceived.WithLabelValues(kind).Inc()
}

// RecordMalformed counts a rejected message. field is the first offending field.
func RecordMalformed(kind, field string) {
	if field == "" {
		field = "payload"
	}
	MessagesMalformed.WithLabelValues(kind, field).Inc()
}

// UpdateLiveState sets the live-state gauges.
func UpdateLiveState(devices, events int) {
	TrackedDevices.Set(float64(devices))
	EventLogSize.Set(float64(events))
}

// RecordRenderOp records a draw operation and its failure, if any.
func RecordRenderOp(operation string, err error) {
	RenderOperations.WithLabelValues(operation).Inc()
	if err != nil {
		RenderErrors.WithLabelValues(operation).Inc()
	}
}

// RecordReconcile records one reconciliation pass.
func RecordReconcile(duration time.Duration, bindings int) {
	ReconcileDuration.Observe(duration.Seconds())
	RenderBindings.Set(float64(bindings))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCircuitBreakerTransition records a breaker moving between states.
func RecordCircuitBreakerTransition(name, from, to string, toValue int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toValue))
}
