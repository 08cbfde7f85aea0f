// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package livestate folds the live broker's device-position and
geofence-crossing messages into in-memory state and feeds the resulting
device snapshot to the renderer.

# State

The Aggregator owns two containers:

  - a snapshot mapping deviceId to its last accepted DevicePosition
    (last write wins, one entry per device)
  - an EventLog of GeofenceEvents, newest first, holding at most its
    capacity (50 by default); pushing past capacity evicts the oldest

A malformed message fails with an error matching ErrMalformedMessage and
leaves both containers untouched.

# Engine

The Engine is a single-consumer actor. Transport callbacks (HandlePosition,
HandleGeofence, HandleState) only enqueue typed messages; one goroutine in
Run applies them to the Aggregator in arrival order, projects the snapshot
to features and calls the renderer. Read-only queries (Devices, EventLog)
travel through the same inbox, so readers always get a copy taken between
two messages.

After the stream reports CLOSED the Engine keeps folding already-queued
messages into state but issues no further reconciliation until the next
session connects.
*/
package livestate
