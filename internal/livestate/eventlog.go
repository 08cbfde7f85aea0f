// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package livestate

import "github.com/tomtom215/geotrack/internal/models"

// DefaultEventLogCapacity is the number of geofence events kept when no
// capacity is configured.
const DefaultEventLogCapacity = 50

// EventLog is a fixed-capacity ring of geofence events. Insertion is always
// at the front and the oldest event is evicted from the back, so Items is
// strictly newest-first by arrival. Not safe for concurrent use.
type EventLog struct {
	buf  []models.GeofenceEvent
	head int
	n    int
}

// NewEventLog creates a log holding at most capacity events. A capacity
// below 1 selects DefaultEventLogCapacity.
func NewEventLog(capacity int) *EventLog {
	if capacity < 1 {
		capacity = DefaultEventLogCapacity
	}
	return &EventLog{buf: make([]models.GeofenceEvent, capacity)}
}

// PushFront inserts e as the newest event, evicting the oldest when full.
func (l *EventLog) PushFront(e models.GeofenceEvent) {
	l.head = (l.head - 1 + len(l.buf)) % len(l.buf)
	l.buf[l.head] = e
	if l.n < len(l.buf) {
		l.n++
	}
}

// Items returns a copy of the log, newest first.
func (l *EventLog) Items() []models.GeofenceEvent {
	out := make([]models.GeofenceEvent, l.n)
	for i := range out {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of events held.
func (l *EventLog) Len() int { return l.n }

// Cap returns the maximum number of events held.
func (l *EventLog) Cap() int { return len(l.buf) }
