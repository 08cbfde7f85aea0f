// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

// Package services adapts blocking servers to suture.Service.
//
// Most geotrack components (stream.Manager, livestate.Engine, websocket.Hub,
// natsbus.EmbeddedServer) implement Serve(ctx) themselves and are added to
// the tree directly. HTTPServerService covers net/http's
// ListenAndServe/Shutdown pair.
package services
