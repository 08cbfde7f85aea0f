// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import "github.com/paulmach/orb/geojson"

// EventKind names a surface interaction event.
type EventKind string

// EventClick is a hit-test click on a layer.
const EventClick EventKind = "click"

// LayerSpec describes a layer to add to the surface.
type LayerSpec struct {
	ID       string        `json:"id"`
	Kind     PrimitiveKind `json:"type"`
	Paint    Paint         `json:"paint"`
	SourceID string        `json:"source"`
}

// Surface is the rendering target the Reconciler draws on. Only the
// Reconciler issues draw operations against it.
type Surface interface {
	// Ready is closed once the surface accepts draw operations.
	Ready() <-chan struct{}

	// Alive reports false once the surface has been torn down.
	Alive() bool

	AddSource(id string, data *geojson.FeatureCollection) error
	HasSource(id string) bool
	SetSourceData(id string, data *geojson.FeatureCollection) error
	AddLayer(spec LayerSpec) error
	RemoveLayer(id string) error
	RemoveSource(id string) error

	// On registers handler for event on layerID. Handlers are never removed
	// individually; they go away with their layer.
	On(event EventKind, layerID string, handler func()) error
}

// SourceID returns the surface source id for a feature key.
func SourceID(key string) string {
	return "feature-" + key
}

// LayerID returns the surface layer id for a feature key.
func LayerID(key string) string {
	return "feature-layer-" + key
}
