// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package supervisor runs geotrack's long-lived components under a suture v4
tree.

	RootSupervisor ("geotrack")
	├── "broker-layer"
	│   └── natsbus.EmbeddedServer (NATS_EMBEDDED only)
	├── "stream-layer"
	│   ├── livestate.Engine
	│   └── stream.Manager
	├── "messaging-layer"
	│   └── websocket.Hub
	└── "api-layer"
	    └── services.HTTPServerService

Each layer counts failures independently, so a crashing stream does not
restart the hub or drop browser connections. Supervisor events are logged
through sutureslog on top of the zerolog-backed slog handler from
internal/logging.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureDecay:     cfg.Supervisor.FailureDecay,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddStreamService(engine)
	tree.AddStreamService(manager)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor
