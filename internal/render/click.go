// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import "github.com/tomtom215/geotrack/internal/models"

// ClickFunc receives the feature a clicked layer was created for.
type ClickFunc func(models.Feature)

// attachClick registers exactly one click handler on layerID forwarding the
// feature captured at creation time. The callback owns its own failures.
func attachClick(s Surface, layerID string, feature models.Feature, fn ClickFunc) error {
	return s.On(EventClick, layerID, func() {
		fn(feature)
	})
}
