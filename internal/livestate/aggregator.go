// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package livestate

import (
	"sort"

	"github.com/tomtom215/geotrack/internal/models"
)

// LiveLayerID is the layer id assigned to projected device features.
const LiveLayerID = "live-devices"

// Aggregator holds the device snapshot and the geofence event log. It is not
// safe for concurrent use; the Engine owns it.
type Aggregator struct {
	snapshot map[string]models.DevicePosition
	log      *EventLog
}

// NewAggregator creates an empty Aggregator whose event log holds capacity
// events (DefaultEventLogCapacity when capacity < 1).
func NewAggregator(capacity int) *Aggregator {
	return &Aggregator{
		snapshot: make(map[string]models.DevicePosition),
		log:      NewEventLog(capacity),
	}
}

// OnPositionMessage parses raw and replaces the snapshot entry for its
// device. A malformed payload leaves the snapshot unchanged.
func (a *Aggregator) OnPositionMessage(raw []byte) (models.DevicePosition, error) {
	pos, err := ParsePosition(raw)
	if err != nil {
		return models.DevicePosition{}, err
	}
	a.snapshot[pos.DeviceID] = pos
	return pos, nil
}

// OnGeofenceMessage parses raw and prepends it to the event log. A malformed
// payload leaves the log unchanged.
func (a *Aggregator) OnGeofenceMessage(raw []byte) (models.GeofenceEvent, error) {
	ev, err := ParseGeofence(raw)
	if err != nil {
		return models.GeofenceEvent{}, err
	}
	a.log.PushFront(ev)
	return ev, nil
}

// ProjectFeatures maps every snapshot entry to a Point feature keyed by its
// deviceId, ordered by deviceId.
func (a *Aggregator) ProjectFeatures() []models.Feature {
	positions := a.Snapshot()
	features := make([]models.Feature, len(positions))
	for i, p := range positions {
		props := map[string]interface{}{
			"name": p.DeviceName,
			"code": p.DeviceCode,
		}
		if p.Speed != nil {
			props["speed"] = *p.Speed
		}
		if p.Heading != nil {
			props["heading"] = *p.Heading
		}
		features[i] = models.NewPointFeature(p.DeviceID, LiveLayerID, p.Longitude, p.Latitude, props)
	}
	return features
}

// Snapshot returns a copy of the current device positions sorted by deviceId.
func (a *Aggregator) Snapshot() []models.DevicePosition {
	out := make([]models.DevicePosition, 0, len(a.snapshot))
	for _, p := range a.snapshot {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Events returns a copy of the event log, newest first.
func (a *Aggregator) Events() []models.GeofenceEvent {
	return a.log.Items()
}

// DeviceCount returns the number of devices in the snapshot.
func (a *Aggregator) DeviceCount() int {
	return len(a.snapshot)
}

// EventCount returns the number of events in the log.
func (a *Aggregator) EventCount() int {
	return a.log.Len()
}
