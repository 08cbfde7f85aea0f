// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import "github.com/tomtom215/geotrack/internal/models"

// PrimitiveKind is a render layer type understood by the map surface.
type PrimitiveKind string

// Render primitive kinds.
const (
	PrimitiveCircle PrimitiveKind = "circle"
	PrimitiveLine   PrimitiveKind = "line"
	PrimitiveFill   PrimitiveKind = "fill"
)

// Paint holds layer paint properties keyed by map style property name.
type Paint map[string]interface{}

// Default colors per primitive kind.
const (
	CircleColor = "#3b82f6"
	LineColor   = "#ef4444"
	FillColor   = "#10b981"
)

// ResolveStyle maps a geometry kind to the primitive used to draw it and its
// default paint. Points draw as circles, line strings as lines, and every other
// kind (Polygon included) as a fill. A fresh Paint is returned on each call.
func ResolveStyle(kind models.GeometryKind) (PrimitiveKind, Paint) {
	switch kind {
	case models.GeometryPoint:
		return PrimitiveCircle, Paint{
			"circle-radius": 8,
			"circle-color":  CircleColor,
		}
	case models.GeometryLineString:
		return PrimitiveLine, Paint{
			"line-color": LineColor,
			"line-width": 3,
		}
	default:
		return PrimitiveFill, Paint{
			"fill-color":   FillColor,
			"fill-opacity": 0.3,
		}
	}
}
