// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package natsbus implements the stream transport contract on NATS core
subjects, plus an optional embedded nats-server for single-binary
deployments and tests.

STOMP-style channel names map to subjects by dropping the leading slash and
replacing the remaining slashes with dots:

	/topic/devices          -> topic.devices
	/topic/geofences.<id>   -> topic.geofences.<id>

The client library's own reconnect logic is disabled. A disconnect ends the
Conn and the stream Manager decides when to dial again, so connection
lifecycle is owned by one state machine.
*/
package natsbus
