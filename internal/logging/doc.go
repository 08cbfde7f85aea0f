// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

// Package logging provides the zerolog-based structured logger shared by every
// Geotrack component.
//
// A single global logger is configured once at startup:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
// Components log through the package-level helpers or a component logger:
//
//	logging.Info().Str("channel", "/topic/devices").Msg("subscribed")
//
//	log := logging.WithComponent("stream")
//	log.Warn().Err(err).Dur("delay", d).Msg("transport dropped, reconnecting")
//
// Context-aware logging carries the request id set by the HTTP middleware:
//
//	ctx = logging.ContextWithCorrelationID(ctx, requestID)
//	logging.Ctx(ctx).Info().Msg("devices queried")
//
// The suture supervisor requires an slog.Logger; NewSlogLogger returns one
// that writes through zerolog so supervisor events land in the same stream.
//
// Environment variables (read by the config package, not here):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
package logging
