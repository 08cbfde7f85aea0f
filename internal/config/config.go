// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package config

import "time"

// Transport names accepted in stream.transport.
const (
	TransportSTOMP = "stomp"
	TransportNATS  = "nats"
)

// Config holds all application configuration.
//
// Loading order (koanf v2):
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML (CONFIG_PATH, config.yaml, /etc/geotrack/config.yaml)
//  3. Environment variables: override any setting (see envTransformFunc)
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("invalid configuration")
//	}
type Config struct {
	Stream     StreamConfig     `koanf:"stream"`
	NATS       NATSConfig       `koanf:"nats"`
	LiveState  LiveStateConfig  `koanf:"livestate"`
	Render     RenderConfig     `koanf:"render"`
	Map        MapConfig        `koanf:"map"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// StreamConfig configures the live broker connection.
type StreamConfig struct {
	// Transport selects the wire protocol: stomp (STOMP over websocket) or nats.
	Transport string `koanf:"transport" validate:"oneof=stomp nats"`

	// URL of the broker endpoint. May be empty for nats with the embedded
	// server enabled.
	URL string `koanf:"url"`

	// STOMP credentials and virtual host. Ignored by nats.
	Login    string `koanf:"login"`
	Passcode string `koanf:"passcode"`
	Host     string `koanf:"host"`

	PositionChannel string `koanf:"position_channel" validate:"required"`
	GeofenceChannel string `koanf:"geofence_channel" validate:"required"`

	ReconnectInitial    time.Duration `koanf:"reconnect_initial" validate:"gt=0"`
	ReconnectMax        time.Duration `koanf:"reconnect_max" validate:"gt=0"`
	ReconnectMultiplier float64       `koanf:"reconnect_multiplier" validate:"gte=1"`
	ReconnectJitter     float64       `koanf:"reconnect_jitter" validate:"gte=0,lte=1"`

	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	HeartbeatOut     time.Duration `koanf:"heartbeat_out"`
	HeartbeatIn      time.Duration `koanf:"heartbeat_in"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
}

// NATSConfig configures the optional embedded NATS server.
type NATSConfig struct {
	// EmbeddedServer starts an in-process nats-server. When stream.url is
	// empty the stream connects to it.
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port" validate:"gte=-1,lte=65535"`
	MaxPayload     int32  `koanf:"max_payload" validate:"gte=0"`
}

// LiveStateConfig sizes the in-memory live state.
type LiveStateConfig struct {
	EventLogCapacity int `koanf:"event_log_capacity" validate:"gte=1,lte=10000"`
	InboxSize        int `koanf:"inbox_size" validate:"gte=1"`
}

// RenderConfig controls reconciliation.
type RenderConfig struct {
	// RemovalPolicy: remove tears down features absent from the latest
	// collection; retain keeps them drawn.
	RemovalPolicy string `koanf:"removal_policy" validate:"oneof=remove retain"`
}

// MapConfig is the initial viewport sent to browsers and the click limits.
type MapConfig struct {
	CenterLongitude float64 `koanf:"center_longitude" validate:"longitude"`
	CenterLatitude  float64 `koanf:"center_latitude" validate:"latitude"`
	Zoom            float64 `koanf:"zoom"`
	MinZoom         float64 `koanf:"min_zoom" validate:"gte=0,ltefield=MaxZoom"`
	MaxZoom         float64 `koanf:"max_zoom" validate:"lte=24"`
	ClickRate       float64 `koanf:"click_rate" validate:"gt=0"`
	ClickBurst      int     `koanf:"click_burst" validate:"gte=1"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment" validate:"oneof=development staging production"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json (production) or console (development).
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
