// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package models

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeometryKind is the GeoJSON type name of a feature geometry.
type GeometryKind string

// Geometry kinds with dedicated render primitives. Anything else is drawn as a fill.
const (
	GeometryPoint      GeometryKind = "Point"
	GeometryLineString GeometryKind = "LineString"
	GeometryPolygon    GeometryKind = "Polygon"
)

// positionalKeyPrefix marks keys derived from a feature's index in its collection.
const positionalKeyPrefix = "idx-"

type goccyJSON struct{}

func (goccyJSON) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (goccyJSON) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

//nolint:gochecknoinits // orb reads the custom codec from package variables
func init() {
	geojson.CustomJSONMarshaler = goccyJSON{}
	geojson.CustomJSONUnmarshaler = goccyJSON{}
}

// Feature is a single geometric entity with typed coordinates and arbitrary properties.
//
// ID is optional. Features without one are identified by their position in the
// collection they arrived in; see Key.
type Feature struct {
	ID         string
	LayerID    string
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// NewPointFeature builds a Point feature at lng/lat.
func NewPointFeature(id, layerID string, lng, lat float64, props map[string]interface{}) Feature {
	return Feature{
		ID:         id,
		LayerID:    layerID,
		Geometry:   orb.Point{lng, lat},
		Properties: props,
	}
}

// Kind returns the GeoJSON type of the geometry, or "" when it is nil.
func (f Feature) Kind() GeometryKind {
	if f.Geometry == nil {
		return ""
	}
	return GeometryKind(f.Geometry.GeoJSONType())
}

// Key returns the identity used for reconciliation: the feature id when set,
// otherwise a positional key derived from index. Positional keys are only
// stable within a single collection.
//
// An explicit id that already starts with the positional prefix gets the
// prefix again, so "idx-1" keys as "idx-idx-1" and never meets the id-less
// feature at index 1.
func (f Feature) Key(index int) string {
	switch {
	case f.ID == "":
		return PositionalKey(index)
	case strings.HasPrefix(f.ID, positionalKeyPrefix):
		return positionalKeyPrefix + f.ID
	default:
		return f.ID
	}
}

// PositionalKey returns the fallback identity for the feature at index.
func PositionalKey(index int) string {
	return positionalKeyPrefix + strconv.Itoa(index)
}

// GeoJSON converts the feature to an orb/geojson feature. Properties are
// copied so the result can be handed to other goroutines.
func (f Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	if f.ID != "" {
		gf.ID = f.ID
	}
	for k, v := range f.Properties {
		gf.Properties[k] = v
	}
	if f.LayerID != "" {
		gf.Properties["layerId"] = f.LayerID
	}
	return gf
}

// Collection wraps the feature in a single-feature FeatureCollection, the
// payload each render source holds.
func (f Feature) Collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(f.GeoJSON())
	return fc
}

type featureJSON struct {
	ID         string                 `json:"id,omitempty"`
	LayerID    string                 `json:"layerId"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// MarshalJSON encodes the feature with a GeoJSON geometry object.
func (f Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{
		ID:         f.ID,
		LayerID:    f.LayerID,
		Properties: f.Properties,
	}
	if f.Geometry != nil {
		out.Geometry = geojson.NewGeometry(f.Geometry)
	}
	if out.Properties == nil {
		out.Properties = map[string]interface{}{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var in featureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	f.ID = in.ID
	f.LayerID = in.LayerID
	f.Properties = in.Properties
	f.Geometry = nil
	if in.Geometry != nil {
		f.Geometry = in.Geometry.Geometry()
	}
	return nil
}
