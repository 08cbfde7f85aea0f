// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

// Package stomp implements the stream transport contract with STOMP 1.2 over
// a WebSocket connection (gorilla/websocket), the protocol spoken by the live
// position broker at ws://<host>:8081/ws/positions.
//
// Each Dial performs the CONNECT/CONNECTED handshake and negotiates
// heart-beats. Subscriptions use random ids, MESSAGE frames are routed to
// their subscription's handler on the connection's read goroutine (so per
// channel arrival order is preserved), and an ERROR frame, a missed
// heart-beat or a socket failure ends the connection.
package stomp
