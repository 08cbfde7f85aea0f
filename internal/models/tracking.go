// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package models

import "github.com/paulmach/orb"

// Geofence crossing directions.
const (
	EventTypeEnter = "ENTER"
	EventTypeExit  = "EXIT"
)

// DevicePosition is the latest reported location of a single device.
// Speed (km/h) and Heading (degrees) are only set when the producer sent them.
type DevicePosition struct {
	DeviceID   string   `json:"deviceId"`
	DeviceCode string   `json:"deviceCode"`
	DeviceName string   `json:"deviceName"`
	Longitude  float64  `json:"longitude"`
	Latitude   float64  `json:"latitude"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
}

// Point returns the position as an orb point ([lng, lat]).
func (p DevicePosition) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// GeofenceEvent records a device entering or leaving a geofence. Events are
// immutable once received and ordered by arrival, not by Timestamp.
type GeofenceEvent struct {
	DeviceID     string  `json:"deviceId"`
	DeviceCode   string  `json:"deviceCode"`
	DeviceName   string  `json:"deviceName"`
	GeofenceID   string  `json:"geofenceId"`
	GeofenceName string  `json:"geofenceName"`
	EventType    string  `json:"eventType"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
	Timestamp    string  `json:"timestamp,omitempty"`
}

// Point returns the crossing location as an orb point.
func (e GeofenceEvent) Point() orb.Point {
	return orb.Point{e.Longitude, e.Latitude}
}
