// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/geotrack/config.yaml",
	"/etc/geotrack/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			Transport:           TransportSTOMP,
			URL:                 "ws://localhost:8081/ws/positions",
			PositionChannel:     "/topic/devices",
			GeofenceChannel:     "/topic/geofences",
			ReconnectInitial:    time.Second,
			ReconnectMax:        30 * time.Second,
			ReconnectMultiplier: 2,
			ReconnectJitter:     0,
			BreakerFailures:     5,
			BreakerTimeout:      30 * time.Second,
			HeartbeatOut:        10 * time.Second,
			HeartbeatIn:         10 * time.Second,
			HandshakeTimeout:    10 * time.Second,
		},
		NATS: NATSConfig{
			EmbeddedServer: false,
			Host:           "127.0.0.1",
			Port:           4222,
			MaxPayload:     1024 * 1024,
		},
		LiveState: LiveStateConfig{
			EventLogCapacity: 50,
			InboxSize:        256,
		},
		Render: RenderConfig{
			RemovalPolicy: "remove",
		},
		Map: MapConfig{
			CenterLongitude: 106.6297,
			CenterLatitude:  10.8231,
			Zoom:            12,
			MinZoom:         3,
			MaxZoom:         18,
			ClickRate:       5,
			ClickBurst:      10,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// STREAM_URL -> stream.url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when set from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"stream_transport":            "stream.transport",
	"stream_url":                  "stream.url",
	"stream_login":                "stream.login",
	"stream_passcode":             "stream.passcode",
	"stream_host":                 "stream.host",
	"stream_position_channel":     "stream.position_channel",
	"stream_geofence_channel":     "stream.geofence_channel",
	"stream_reconnect_initial":    "stream.reconnect_initial",
	"stream_reconnect_max":        "stream.reconnect_max",
	"stream_reconnect_multiplier": "stream.reconnect_multiplier",
	"stream_reconnect_jitter":     "stream.reconnect_jitter",
	"stream_breaker_failures":     "stream.breaker_failures",
	"stream_breaker_timeout":      "stream.breaker_timeout",
	"stream_heartbeat_out":        "stream.heartbeat_out",
	"stream_heartbeat_in":         "stream.heartbeat_in",
	"stream_handshake_timeout":    "stream.handshake_timeout",

	"nats_embedded":    "nats.embedded_server",
	"nats_host":        "nats.host",
	"nats_port":        "nats.port",
	"nats_max_payload": "nats.max_payload",

	"event_log_capacity": "livestate.event_log_capacity",
	"engine_inbox_size":  "livestate.inbox_size",

	"render_removal_policy": "render.removal_policy",

	"map_center_longitude": "map.center_longitude",
	"map_center_latitude":  "map.center_latitude",
	"map_zoom":             "map.zoom",
	"map_min_zoom":         "map.min_zoom",
	"map_max_zoom":         "map.max_zoom",
	"map_click_rate":       "map.click_rate",
	"map_click_burst":      "map.click_burst",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped, so unrelated environment
// does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
