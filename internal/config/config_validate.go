// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/validation"
)

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateStream(); err != nil {
		return err
	}

	if err := c.validateMap(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateStream() error {
	if c.Stream.ReconnectInitial > c.Stream.ReconnectMax {
		return fmt.Errorf("STREAM_RECONNECT_INITIAL (%v) must not exceed STREAM_RECONNECT_MAX (%v)",
			c.Stream.ReconnectInitial, c.Stream.ReconnectMax)
	}

	switch c.Stream.Transport {
	case TransportSTOMP:
		if c.Stream.URL == "" {
			return fmt.Errorf("STREAM_URL is required for the stomp transport")
		}
		return validateBrokerURL(c.Stream.URL, "STREAM_URL", "ws", "wss")
	case TransportNATS:
		if c.Stream.URL == "" {
			if !c.NATS.EmbeddedServer {
				return fmt.Errorf("STREAM_URL is required unless NATS_EMBEDDED is enabled")
			}
			return nil
		}
		return validateBrokerURL(c.Stream.URL, "STREAM_URL", "nats", "tls", "ws", "wss")
	}
	return nil
}

func (c *Config) validateMap() error {
	if c.Map.Zoom < c.Map.MinZoom || c.Map.Zoom > c.Map.MaxZoom {
		return fmt.Errorf("MAP_ZOOM (%v) must be between MAP_MIN_ZOOM (%v) and MAP_MAX_ZOOM (%v)",
			c.Map.Zoom, c.Map.MinZoom, c.Map.MaxZoom)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic, disabled")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS origin in production, which
// should be logged at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardCORS()
}
