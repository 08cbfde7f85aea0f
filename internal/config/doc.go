// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package config loads and validates geotrack configuration.

Configuration is layered with koanf v2: built-in defaults, then an optional
YAML file, then environment variables. Struct tags are checked with the
shared validator from internal/validation; rules spanning several fields
(reconnect_initial <= reconnect_max, zoom within min/max, broker URL scheme
per transport) are checked in Validate.

# Environment Variables

Stream:
  - STREAM_TRANSPORT: stomp or nats (default: stomp)
  - STREAM_URL: broker endpoint (default: ws://localhost:8081/ws/positions)
  - STREAM_LOGIN, STREAM_PASSCODE, STREAM_HOST: STOMP credentials
  - STREAM_POSITION_CHANNEL: default /topic/devices
  - STREAM_GEOFENCE_CHANNEL: default /topic/geofences
  - STREAM_RECONNECT_INITIAL / STREAM_RECONNECT_MAX: default 1s / 30s
  - STREAM_RECONNECT_MULTIPLIER / STREAM_RECONNECT_JITTER: default 2 / 0
  - STREAM_BREAKER_FAILURES / STREAM_BREAKER_TIMEOUT: default 5 / 30s

NATS:
  - NATS_EMBEDDED: run an in-process nats-server (default: false)
  - NATS_HOST, NATS_PORT, NATS_MAX_PAYLOAD

Live state and rendering:
  - EVENT_LOG_CAPACITY: geofence events kept (default: 50)
  - ENGINE_INBOX_SIZE: default 256
  - RENDER_REMOVAL_POLICY: remove or retain (default: remove)
  - MAP_CENTER_LONGITUDE, MAP_CENTER_LATITUDE, MAP_ZOOM, MAP_MIN_ZOOM, MAP_MAX_ZOOM
  - MAP_CLICK_RATE, MAP_CLICK_BURST: per-client feature_click limit

HTTP:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8090)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
  - ENVIRONMENT: development, staging or production
  - CORS_ORIGINS: comma-separated (default: *)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Supervisor:
  - SUPERVISOR_FAILURE_THRESHOLD, SUPERVISOR_FAILURE_DECAY,
    SUPERVISOR_FAILURE_BACKOFF, SUPERVISOR_SHUTDOWN_TIMEOUT

# Config File

	stream:
	  transport: nats
	  url: nats://broker:4222
	  reconnect_max: 1m
	render:
	  removal_policy: retain
	security:
	  cors_origins:
	    - https://map.example.com
*/
package config
