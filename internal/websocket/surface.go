// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package websocket

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/tomtom215/geotrack/internal/render"
)

// Surface operation errors.
var (
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	ErrSourceInUse    = errors.New("source still referenced by a layer")
	ErrLayerExists    = errors.New("layer already exists")
	ErrLayerNotFound  = errors.New("layer not found")
)

// MapDefaults is the initial viewport sent to every map widget.
type MapDefaults struct {
	Center  [2]float64 `json:"center"`
	Zoom    float64    `json:"zoom"`
	MinZoom float64    `json:"minZoom"`
	MaxZoom float64    `json:"maxZoom"`
}

// DefaultMapDefaults centers the map on Ho Chi Minh City at zoom 12.
func DefaultMapDefaults() MapDefaults {
	return MapDefaults{
		Center:  [2]float64{106.6297, 10.8231},
		Zoom:    12,
		MinZoom: 3,
		MaxZoom: 18,
	}
}

// DrawOp names an incremental map operation.
type DrawOp string

// Draw operations mirror the Surface methods.
const (
	DrawAddSource    DrawOp = "add_source"
	DrawSetData      DrawOp = "set_data"
	DrawAddLayer     DrawOp = "add_layer"
	DrawRemoveLayer  DrawOp = "remove_layer"
	DrawRemoveSource DrawOp = "remove_source"
)

// DrawCommand is the payload of a draw message.
type DrawCommand struct {
	Op    DrawOp                     `json:"op"`
	ID    string                     `json:"id"`
	Data  *geojson.FeatureCollection `json:"data,omitempty"`
	Layer *render.LayerSpec          `json:"layer,omitempty"`
}

// MapState is the payload of the map_state message a client receives on
// connect: the viewport plus everything currently drawn.
type MapState struct {
	MapDefaults
	Sources map[string]*geojson.FeatureCollection `json:"sources"`
	Layers  []render.LayerSpec                    `json:"layers"`
}

// MapSurface is a render.Surface whose draw operations are mirrored to every
// browser connected to the hub. It keeps the full drawn state so a client
// that joins late starts from a complete map_state.
type MapSurface struct {
	hub      *Hub
	defaults MapDefaults

	mu       sync.Mutex
	seq      uint64
	closed   bool
	sources  map[string]*geojson.FeatureCollection
	layers   []render.LayerSpec
	handlers map[string][]func()
}

// NewMapSurface creates a surface bound to hub and installs its welcome and
// click hooks on the hub.
func NewMapSurface(hub *Hub, defaults MapDefaults) *MapSurface {
	s := &MapSurface{
		hub:      hub,
		defaults: defaults,
		sources:  make(map[string]*geojson.FeatureCollection),
		handlers: make(map[string][]func()),
	}
	hub.SetWelcome(s.snapshot)
	hub.SetClickHandler(s.dispatchClick)
	return s
}

// Ready is closed once the hub has started.
func (s *MapSurface) Ready() <-chan struct{} {
	return s.hub.Ready()
}

// Alive reports false after Close.
func (s *MapSurface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close tears the surface down. Later operations fail with
// render.ErrSurfaceClosed.
func (s *MapSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = make(map[string][]func())
}

func (s *MapSurface) usable() error {
	if s.closed {
		return render.ErrSurfaceClosed
	}
	select {
	case <-s.hub.Ready():
		return nil
	default:
		return render.ErrNotReady
	}
}

// emit broadcasts cmd with the next sequence number. Callers hold s.mu so
// sequence order equals broadcast queue order.
func (s *MapSurface) emit(cmd DrawCommand) {
	s.seq++
	s.hub.enqueue(Message{Type: MessageTypeDraw, Seq: s.seq, Data: cmd})
}

// AddSource implements render.Surface.
func (s *MapSurface) AddSource(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	s.sources[id] = data
	s.emit(DrawCommand{Op: DrawAddSource, ID: id, Data: data})
	return nil
}

// HasSource implements render.Surface.
func (s *MapSurface) HasSource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[id]
	return ok
}

// SetSourceData implements render.Surface. The new data replaces the
// source's previous collection for late joiners too.
func (s *MapSurface) SetSourceData(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	s.sources[id] = data
	s.emit(DrawCommand{Op: DrawSetData, ID: id, Data: data})
	return nil
}

// AddLayer implements render.Surface. The layer's source must exist.
func (s *MapSurface) AddLayer(spec render.LayerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if s.layerIndex(spec.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, spec.ID)
	}
	if _, ok := s.sources[spec.SourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, spec.SourceID)
	}
	s.layers = append(s.layers, spec)
	s.emit(DrawCommand{Op: DrawAddLayer, ID: spec.ID, Layer: &spec})
	return nil
}

// RemoveLayer implements render.Surface and drops the layer's click handlers.
func (s *MapSurface) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	i := s.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	delete(s.handlers, id)
	s.emit(DrawCommand{Op: DrawRemoveLayer, ID: id})
	return nil
}

// RemoveSource implements render.Surface. It fails while a layer still
// draws from the source.
func (s *MapSurface) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	for _, l := range s.layers {
		if l.SourceID == id {
			return fmt.Errorf("%w: %s used by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(s.sources, id)
	s.emit(DrawCommand{Op: DrawRemoveSource, ID: id})
	return nil
}

// On registers a click handler on a layer. Only render.EventClick is
// supported.
func (s *MapSurface) On(event render.EventKind, layerID string, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if event != render.EventClick {
		return fmt.Errorf("unsupported event %q", event)
	}
	if s.layerIndex(layerID) < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	s.handlers[layerID] = append(s.handlers[layerID], handler)
	return nil
}

// Layers returns a copy of the layer list in draw order.
func (s *MapSurface) Layers() []render.LayerSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]render.LayerSpec(nil), s.layers...)
}

func (s *MapSurface) layerIndex(id string) int {
	for i := range s.layers {
		if s.layers[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshot builds the map_state message for a newly registered client.
func (s *MapSurface) snapshot() Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make(map[string]*geojson.FeatureCollection, len(s.sources))
	for id, fc := range s.sources {
		sources[id] = fc
	}
	return Message{
		Type: MessageTypeMapState,
		Seq:  s.seq,
		Data: MapState{
			MapDefaults: s.defaults,
			Sources:     sources,
			Layers:      append([]render.LayerSpec{}, s.layers...),
		},
	}
}

// dispatchClick runs the handlers bound to layerID outside the lock.
func (s *MapSurface) dispatchClick(layerID string) bool {
	s.mu.Lock()
	handlers := append([]func(){}, s.handlers[layerID]...)
	s.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return len(handlers) > 0
}
