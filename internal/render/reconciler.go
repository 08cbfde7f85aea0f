// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/metrics"
	"github.com/tomtom215/geotrack/internal/models"
)

// RemovalPolicy decides what happens to bindings absent from a collection.
type RemovalPolicy string

const (
	// RemovalRemove tears down bindings whose id is not in the latest collection.
	RemovalRemove RemovalPolicy = "remove"

	// RemovalRetain keeps every binding ever created (add/update only).
	RemovalRetain RemovalPolicy = "retain"
)

// binding links a feature identity to its drawing objects.
type binding struct {
	sourceID        string
	layerID         string
	kind            PrimitiveKind
	hasClickHandler bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClickHandler sets the callback invoked when a feature layer is clicked.
func WithClickHandler(fn ClickFunc) Option {
	return func(r *Reconciler) {
		r.onClick = fn
	}
}

// WithRemovalPolicy sets the stale-binding policy. The default is RemovalRemove.
func WithRemovalPolicy(p RemovalPolicy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// WithLogger overrides the component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// Reconciler makes the surface's drawn layers match a target feature collection.
type Reconciler struct {
	surface Surface
	onClick ClickFunc
	policy  RemovalPolicy
	logger  zerolog.Logger

	mu         sync.Mutex
	bindings   map[string]*binding
	pending    []models.Feature
	hasPending bool
	closed     bool
}

// NewReconciler creates a Reconciler that exclusively owns surface.
func NewReconciler(surface Surface, opts ...Option) *Reconciler {
	r := &Reconciler{
		surface:  surface,
		policy:   RemovalRemove,
		logger:   logging.WithComponent("reconciler"),
		bindings: make(map[string]*binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the surface in line with features. See the package
// documentation for deferral and failure behavior.
func (r *Reconciler) Reconcile(features []models.Feature) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.surface.Alive() {
		return
	}
	if !r.ready() {
		r.pending = append(r.pending[:0], features...)
		r.hasPending = true
		metrics.RenderDeferred.Inc()
		r.logger.Debug().Int("features", len(features)).Msg("surface not ready, reconciliation deferred")
		return
	}

	r.hasPending = false
	r.pending = nil
	r.apply(features)
}

// Flush applies a deferred collection once the surface is ready. It reports
// whether anything was applied.
func (r *Reconciler) Flush() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasPending || r.closed || !r.surface.Alive() || !r.ready() {
		return false
	}
	features := r.pending
	r.pending = nil
	r.hasPending = false
	r.apply(features)
	return true
}

// Pending reports whether a collection is waiting for the surface.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPending
}

// Close stops all further reconciliation and drops any deferred collection.
// Drawn layers are left in place.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pending = nil
	r.hasPending = false
}

// BoundIDs returns the feature keys currently drawn, sorted.
func (r *Reconciler) BoundIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Reconciler) ready() bool {
	select {
	case <-r.surface.Ready():
		return true
	default:
		return false
	}
}

// apply must be called with mu held.
func (r *Reconciler) apply(features []models.Feature) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RenderErrors.WithLabelValues("panic").Inc()
			r.logger.Error().Interface("panic", rec).Msg("reconciliation panicked")
		}
		metrics.RecordReconcile(time.Since(start), len(r.bindings))
	}()

	seen := make(map[string]struct{}, len(features))
	for i := range features {
		f := features[i]
		key := f.Key(i)
		seen[key] = struct{}{}

		if b, ok := r.bindings[key]; ok {
			if kind, _ := ResolveStyle(f.Kind()); kind == b.kind {
				r.update(key, b, f)
				continue
			}
			// Geometry kind changed: the layer type cannot be mutated in place.
			r.remove(key, b)
		}
		r.create(key, f)
	}

	if r.policy == RemovalRemove {
		for key, b := range r.bindings {
			if _, ok := seen[key]; !ok {
				r.remove(key, b)
			}
		}
	}
}

func (r *Reconciler) update(key string, b *binding, f models.Feature) {
	err := r.surface.SetSourceData(b.sourceID, f.Collection())
	metrics.RecordRenderOp("set_data", err)
	if err != nil {
		r.logger.Error().Err(err).Str("feature", key).Msg("failed to update source data")
	}
}

func (r *Reconciler) create(key string, f models.Feature) {
	b := &binding{
		sourceID: SourceID(key),
		layerID:  LayerID(key),
	}

	// A source can outlive its binding when an earlier teardown failed.
	if r.surface.HasSource(b.sourceID) {
		err := r.surface.SetSourceData(b.sourceID, f.Collection())
		metrics.RecordRenderOp("set_data", err)
		if err != nil {
			r.logger.Error().Err(err).Str("feature", key).Msg("failed to reuse existing source")
			return
		}
	} else {
		err := r.surface.AddSource(b.sourceID, f.Collection())
		metrics.RecordRenderOp("add_source", err)
		if err != nil {
			r.logger.Error().Err(err).Str("feature", key).Msg("failed to add source")
			return
		}
	}

	kind, paint := ResolveStyle(f.Kind())
	b.kind = kind
	err := r.surface.AddLayer(LayerSpec{ID: b.layerID, Kind: kind, Paint: paint, SourceID: b.sourceID})
	metrics.RecordRenderOp("add_layer", err)
	if err != nil {
		r.logger.Error().Err(err).Str("feature", key).Msg("failed to add layer")
		if rmErr := r.surface.RemoveSource(b.sourceID); rmErr != nil {
			r.logger.Warn().Err(rmErr).Str("feature", key).Msg("failed to remove orphaned source")
		}
		return
	}

	if r.onClick != nil {
		err := attachClick(r.surface, b.layerID, f, r.onClick)
		metrics.RecordRenderOp("on", err)
		if err != nil {
			r.logger.Warn().Err(err).Str("feature", key).Msg("failed to attach click handler")
		} else {
			b.hasClickHandler = true
		}
	}

	r.bindings[key] = b
	r.logger.Debug().Str("feature", key).Str("kind", string(kind)).Msg("feature bound")
}

func (r *Reconciler) remove(key string, b *binding) {
	delete(r.bindings, key)

	err := r.surface.RemoveLayer(b.layerID)
	metrics.RecordRenderOp("remove_layer", err)
	if err != nil {
		r.logger.Warn().Err(err).Str("feature", key).Msg("failed to remove layer")
	}
	err = r.surface.RemoveSource(b.sourceID)
	metrics.RecordRenderOp("remove_source", err)
	if err != nil {
		r.logger.Warn().Err(err).Str("feature", key).Msg("failed to remove source")
	}
}

// String implements fmt.Stringer for log output.
func (r *Reconciler) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Reconciler(bindings=%d, policy=%s)", len(r.bindings), r.policy)
}
