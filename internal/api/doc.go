// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package api provides the HTTP layer for geotrack.

Routes (chi):

	GET /healthz                 liveness, always 200 while the process runs
	GET /metrics                 Prometheus exposition
	GET /ws                      websocket upgrade for browser map widgets
	GET /api/v1/health           detailed health (stream, engine, clients)
	GET /api/v1/health/ready     readiness: 200 once the engine and hub run
	GET /api/v1/devices          tracked devices, sorted by deviceId
	GET /api/v1/events?limit=N   geofence event log, newest first
	GET /api/v1/connectivity     upstream stream status

State endpoints never read the aggregator directly; they query the state
engine, which answers from its own goroutine. An engine that is not running
yields 503 UNAVAILABLE, a query that outlives its deadline yields 504 TIMEOUT.

JSON bodies use the models.APIResponse envelope:

	{
	  "status": "success",
	  "data": [...],
	  "metadata": {"timestamp": "...", "query_time_ms": 0, "count": 2}
	}

Middleware order: request id, real IP, panic recovery, CORS, then per-group
rate limiting, security headers and Prometheus instrumentation.
*/
package api
