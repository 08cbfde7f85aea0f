// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package metrics provides Prometheus metrics collection and export for observability.

All instruments are registered on the default registry through promauto at
package init and exposed by the API router at /metrics:

	curl http://localhost:8090/metrics

# Available Metrics

Stream Metrics:
  - geotrack_stream_state: Current connection state (gauge)
    Values: 0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed
  - geotrack_stream_connected: 1 while connected (gauge)
  - geotrack_stream_connect_attempts_total: Dial outcomes (counter)
    Labels: result (success, failure, rejected)
  - geotrack_stream_reconnects_total: Scheduled reconnections (counter)
  - geotrack_stream_backoff_seconds: Reconnect delays (histogram)
  - geotrack_stream_messages_received_total: Inbound messages (counter)
    Labels: kind (position, geofence)

Live State Metrics:
  - geotrack_messages_malformed_total: Rejected payloads (counter)
    Labels: kind, field
  - geotrack_tracked_devices: Devices in the snapshot (gauge)
  - geotrack_event_log_size: Geofence events retained (gauge)
  - geotrack_engine_queue_depth: Pending engine inbox messages (gauge)

Render Metrics:
  - geotrack_render_operations_total: Draw operations (counter)
    Labels: operation
  - geotrack_render_errors_total: Failed draw operations (counter)
  - geotrack_render_bindings: Features currently drawn (gauge)
  - geotrack_render_deferred_total: Reconciliations deferred until ready (counter)
  - geotrack_reconcile_duration_seconds: Reconciliation latency (histogram)

WebSocket, API and circuit breaker metrics follow the names used across the
rest of the stack (websocket_*, api_*, circuit_breaker_*).

# Usage

Prefer the Record* helpers over touching the vectors directly:

	metrics.RecordRenderOp("add_source", err)
	metrics.RecordReconnect(delay)

# Thread Safety

All metric operations are safe for concurrent use.
*/
package metrics
