// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import "errors"

var (
	// ErrNotReady is returned by a Surface that has not finished initializing.
	ErrNotReady = errors.New("render: surface not ready")

	// ErrSurfaceClosed is returned by a Surface after teardown.
	ErrSurfaceClosed = errors.New("render: surface closed")
)
