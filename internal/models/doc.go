// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package models defines the data structures shared by the geotrack packages.

Key Components:

  - Feature: a single geometric entity (paulmach/orb geometry) with a layer id
    and arbitrary properties, the unit the render package reconciles
  - DevicePosition: the latest known location of one tracked device
  - GeofenceEvent: a discrete ENTER/EXIT crossing computed upstream

Positions and geofence events are created on message arrival, held only in
memory, and discarded when the process exits.

JSON encoding of GeoJSON values is routed through goccy/go-json by installing
it as the orb/geojson custom marshaler at package init.
*/
package models
