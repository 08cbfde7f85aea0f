// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package livestate

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geotrack/internal/models"
	"github.com/tomtom215/geotrack/internal/validation"
)

// Message kinds, used as the Channel of MalformedMessageError and as metric labels.
const (
	KindPosition = "position"
	KindGeofence = "geofence"
)

// Coordinates are pointers so a missing key is distinguishable from 0.
type positionWire struct {
	DeviceID   string   `json:"deviceId" validate:"required"`
	DeviceCode string   `json:"deviceCode"`
	DeviceName string   `json:"deviceName"`
	Longitude  *float64 `json:"longitude" validate:"required,longitude"`
	Latitude   *float64 `json:"latitude" validate:"required,latitude"`
	Timestamp  string   `json:"timestamp" validate:"omitempty,rfc3339"`
	Speed      *float64 `json:"speed" validate:"omitempty,gte=0"`
	Heading    *float64 `json:"heading" validate:"omitempty,gte=0,lte=360"`
}

type geofenceWire struct {
	DeviceID     string   `json:"deviceId" validate:"required"`
	DeviceCode   string   `json:"deviceCode"`
	DeviceName   string   `json:"deviceName"`
	GeofenceID   string   `json:"geofenceId" validate:"required"`
	GeofenceName string   `json:"geofenceName"`
	EventType    string   `json:"eventType" validate:"required,oneof=ENTER EXIT"`
	Longitude    *float64 `json:"longitude" validate:"required,longitude"`
	Latitude     *float64 `json:"latitude" validate:"required,latitude"`
	Timestamp    string   `json:"timestamp" validate:"omitempty,rfc3339"`
}

// ParsePosition decodes and validates a device-position payload.
func ParsePosition(raw []byte) (models.DevicePosition, error) {
	var w positionWire
	if err := decode(KindPosition, raw, &w); err != nil {
		return models.DevicePosition{}, err
	}
	return models.DevicePosition{
		DeviceID:   w.DeviceID,
		DeviceCode: w.DeviceCode,
		DeviceName: w.DeviceName,
		Longitude:  *w.Longitude,
		Latitude:   *w.Latitude,
		Timestamp:  w.Timestamp,
		Speed:      w.Speed,
		Heading:    w.Heading,
	}, nil
}

// ParseGeofence decodes and validates a geofence-crossing payload.
func ParseGeofence(raw []byte) (models.GeofenceEvent, error) {
	var w geofenceWire
	if err := decode(KindGeofence, raw, &w); err != nil {
		return models.GeofenceEvent{}, err
	}
	return models.GeofenceEvent{
		DeviceID:     w.DeviceID,
		DeviceCode:   w.DeviceCode,
		DeviceName:   w.DeviceName,
		GeofenceID:   w.GeofenceID,
		GeofenceName: w.GeofenceName,
		EventType:    w.EventType,
		Longitude:    *w.Longitude,
		Latitude:     *w.Latitude,
		Timestamp:    w.Timestamp,
	}, nil
}

func decode(kind string, raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &MalformedMessageError{Channel: kind, Field: typeErr.Field, Err: err}
		}
		return &MalformedMessageError{Channel: kind, Err: err}
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return &MalformedMessageError{Channel: kind, Field: verr.First().Field, Err: verr}
	}
	return nil
}
