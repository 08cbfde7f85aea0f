// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

/*
Package render keeps a map surface's drawn layers consistent with an evolving
collection of features.

The Reconciler owns one binding per feature identity: a GeoJSON source holding
a single-feature collection, a layer of the primitive kind chosen by
ResolveStyle, and at most one click handler. Each Reconcile call creates
bindings for unseen identities, replaces source data in place for known ones,
and (under RemovalRemove) tears down bindings whose identity is absent from
the collection.

	rec := render.NewReconciler(surface,
	    render.WithClickHandler(func(f models.Feature) { ... }),
	    render.WithRemovalPolicy(render.RemovalRemove),
	)
	rec.Reconcile(features)

Reconcile never returns an error. Calls made before the surface signals
readiness are deferred (only the latest collection is kept) and applied by
Flush; calls after the surface is torn down, or after Close, do nothing.
Failed or panicking draw operations are logged and counted, and the next
call proceeds normally.

The Reconciler is not designed for concurrent producers. Callers serialize
Reconcile, Flush and Close; an internal mutex only protects BoundIDs readers.
*/
package render
