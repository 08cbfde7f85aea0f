// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

// Package main is the entry point for the geotrack server.
//
// geotrack consumes a live tracking broker (STOMP over websocket, or NATS),
// folds device positions and geofence events into in-memory state, and keeps
// browser map widgets in sync over a websocket.
//
// # Startup
//
//  1. Configuration: defaults, optional YAML, environment (koanf v2)
//  2. Logging: zerolog, level and format from config
//  3. Components: hub and map surface, reconciler, aggregator and engine,
//     stream transport and manager, embedded NATS (optional), HTTP router
//  4. Supervisor tree: every long-running component runs under suture
//
// # Quick start
//
// Against an existing STOMP broker:
//
//	STREAM_URL=ws://tracker:8081/ws/positions geotrack
//
// Self-contained, with an in-process NATS broker:
//
//	STREAM_TRANSPORT=nats NATS_EMBEDDED=true geotrack
//
// Browsers connect to ws://<host>:8090/ws; state is also readable at
// /api/v1/devices and /api/v1/events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/geotrack/internal/config"
	"github.com/tomtom215/geotrack/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("transport", cfg.Stream.Transport).
		Str("stream_url", cfg.Stream.URL).
		Bool("nats_embedded", cfg.NATS.EmbeddedServer).
		Str("removal_policy", cfg.Render.RemovalPolicy).
		Msg("Configuration loaded")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin in production; set CORS_ORIGINS")
	}

	a, err := newApp(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
		stop()
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}
