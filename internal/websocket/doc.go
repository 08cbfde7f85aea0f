// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package websocket fans the live map out to browser widgets.

The Hub manages client connections and broadcasts messages. MapSurface is the
render.Surface the reconciler draws on: every AddSource, SetSourceData,
AddLayer, RemoveLayer and RemoveSource is recorded and broadcast as a draw
message, so each connected browser replays the same operations against its
own map widget.

Architecture:

	reconciler ──> MapSurface ──> Hub ──┬──> Client ──> browser
	                   ^                ├──> Client ──> browser
	                   └─ feature_click ┘

Each client has two goroutines:
  - readPump: reads pings and feature_click messages
  - writePump: writes queued messages and keepalive pings

Message Types:

Server to browser:

  - map_state: sent once on connect; viewport defaults plus every source and
    layer currently drawn, stamped with the latest draw sequence number
  - draw: one surface operation ({op, id, data?, layer?}) with its seq
  - connectivity: live broker connectivity ({connected, state, since})
  - geofence_event: an accepted geofence crossing
  - feature_selected: the feature whose layer was clicked
  - pong, error

Browser to server:

  - ping
  - feature_click: {"layerId": "..."}; rate limited per client

Late joiners:

A client receives map_state before any draw message, and the hub skips draw
messages whose seq is not newer than that snapshot, so a browser never
applies an operation twice.

Connection Settings:
  - writeWait: 10 seconds
  - pongWait: 60 seconds
  - pingPeriod: 54 seconds
  - maxMessageSize: 64 KB
*/
package websocket
