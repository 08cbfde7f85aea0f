// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/tomtom215/geotrack/internal/api"
	"github.com/tomtom215/geotrack/internal/config"
	"github.com/tomtom215/geotrack/internal/livestate"
	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/render"
	"github.com/tomtom215/geotrack/internal/stream"
	"github.com/tomtom215/geotrack/internal/stream/natsbus"
	"github.com/tomtom215/geotrack/internal/stream/stomp"
	"github.com/tomtom215/geotrack/internal/supervisor"
	"github.com/tomtom215/geotrack/internal/supervisor/services"
	ws "github.com/tomtom215/geotrack/internal/websocket"
)

// app holds the wired components. Everything long-running is owned by tree.
type app struct {
	tree       *supervisor.SupervisorTree
	hub        *ws.Hub
	surface    *ws.MapSurface
	reconciler *render.Reconciler
	engine     *livestate.Engine
	manager    *stream.Manager
	broker     *natsbus.EmbeddedServer // nil unless NATS_EMBEDDED
	handler    http.Handler
	server     *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}

	a.hub = ws.NewHub(ws.WithClickRate(rate.Limit(cfg.Map.ClickRate), cfg.Map.ClickBurst))
	a.surface = ws.NewMapSurface(a.hub, ws.MapDefaults{
		Center:  [2]float64{cfg.Map.CenterLongitude, cfg.Map.CenterLatitude},
		Zoom:    cfg.Map.Zoom,
		MinZoom: cfg.Map.MinZoom,
		MaxZoom: cfg.Map.MaxZoom,
	})

	a.reconciler = render.NewReconciler(a.surface,
		render.WithRemovalPolicy(render.RemovalPolicy(cfg.Render.RemovalPolicy)),
		render.WithClickHandler(a.hub.BroadcastFeatureSelected),
	)

	a.engine = livestate.NewEngine(
		livestate.NewAggregator(cfg.LiveState.EventLogCapacity),
		a.reconciler,
		a.surface.Ready(),
		livestate.WithInboxSize(cfg.LiveState.InboxSize),
		livestate.WithGeofenceListener(a.hub.BroadcastGeofenceEvent),
		livestate.WithConnectivityListener(func(stream.State) {
			a.hub.BroadcastConnectivity(a.manager.Status())
		}),
	)

	transport, err := a.newTransport(cfg)
	if err != nil {
		return nil, err
	}

	a.manager = stream.NewManager(transport, a.engine, stream.Config{
		PositionChannel:     cfg.Stream.PositionChannel,
		GeofenceChannel:     cfg.Stream.GeofenceChannel,
		ReconnectInitial:    cfg.Stream.ReconnectInitial,
		ReconnectMax:        cfg.Stream.ReconnectMax,
		ReconnectMultiplier: cfg.Stream.ReconnectMultiplier,
		ReconnectJitter:     cfg.Stream.ReconnectJitter,
		BreakerFailures:     cfg.Stream.BreakerFailures,
		BreakerTimeout:      cfg.Stream.BreakerTimeout,
	})

	handler := api.NewHandler(a.engine, a.manager, a.hub, cfg.Security.CORSOrigins)
	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security))
	a.handler = api.NewRouter(handler, mw).SetupChi()

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           a.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	a.tree, err = supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		a.shutdownBroker()
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	if a.broker != nil {
		a.tree.AddBrokerService(a.broker)
	}
	a.tree.AddStreamService(a.engine)
	a.tree.AddStreamService(a.manager)
	a.tree.AddMessagingService(a.hub)
	a.tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Server.ShutdownTimeout))

	return a, nil
}

// newTransport builds the configured stream transport, starting the
// embedded NATS server first when enabled.
func (a *app) newTransport(cfg *config.Config) (stream.Transport, error) {
	switch cfg.Stream.Transport {
	case config.TransportNATS:
		url := cfg.Stream.URL
		if cfg.NATS.EmbeddedServer {
			broker, err := natsbus.NewEmbeddedServer(natsbus.ServerConfig{
				Host:       cfg.NATS.Host,
				Port:       cfg.NATS.Port,
				MaxPayload: cfg.NATS.MaxPayload,
				Debug:      cfg.Logging.Level == "debug" || cfg.Logging.Level == "trace",
			})
			if err != nil {
				return nil, fmt.Errorf("start embedded nats: %w", err)
			}
			a.broker = broker
			if url == "" {
				url = broker.ClientURL()
			}
			logging.Info().Str("url", broker.ClientURL()).Msg("Embedded NATS server started")
		}
		return natsbus.NewTransport(natsbus.Config{
			URL:            url,
			ConnectTimeout: cfg.Stream.HandshakeTimeout,
		}), nil

	case config.TransportSTOMP:
		return stomp.NewTransport(stomp.Config{
			URL:              cfg.Stream.URL,
			Host:             cfg.Stream.Host,
			Login:            cfg.Stream.Login,
			Passcode:         cfg.Stream.Passcode,
			HeartbeatOut:     cfg.Stream.HeartbeatOut,
			HeartbeatIn:      cfg.Stream.HeartbeatIn,
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown stream transport %q", cfg.Stream.Transport)
}

func (a *app) shutdownBroker() {
	if a.broker == nil {
		return
	}
	if err := a.broker.Shutdown(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS shutdown failed")
	}
}

// run serves the supervisor tree until ctx is canceled, then releases the
// reconciler and surface and reports services that did not stop in time.
func (a *app) run(ctx context.Context) error {
	logging.Info().Msg("Starting supervisor tree")
	errCh := a.tree.ServeBackground(ctx)

	var runErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	a.reconciler.Close()
	a.surface.Close()

	unstopped, _ := a.tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return runErr
}
