// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package stream owns the persistent subscription connection to the upstream
position broker.

A Manager drives one Transport through an explicit state machine:

	DISCONNECTED -> CONNECTING -> CONNECTED -> RECONNECTING -> CONNECTING -> ...
	any state    -> CLOSED (Deactivate)

Every successful connection subscribes exactly two channels (positions and
geofence events) and forwards their payloads to a Sink. Subscriptions are
never assumed durable: after a transport drop the Manager waits according to
its Backoff, dials again, and re-subscribes both channels on the new
connection. Dials go through a gobreaker circuit breaker; a rejected dial
counts as a failed attempt.

Deactivate cancels any in-flight dial or scheduled reconnect, releases the
connection and fences the session's handlers, so no message received after
Deactivate returns reaches the Sink. Activate after Deactivate starts a new
session.

Transports live in subpackages:
  - stream/stomp: STOMP 1.2 over WebSocket
  - stream/natsbus: NATS core subjects
*/
package stream
