// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package render

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/tomtom215/geotrack/internal/logging"
)

//nolint:gochecknoinits // silence logging for the package's tests
func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeSurface records every draw operation in order.
type fakeSurface struct {
	mu       sync.Mutex
	ready    chan struct{}
	alive    bool
	sources  map[string]*geojson.FeatureCollection
	layers   map[string]LayerSpec
	handlers map[string][]func()
	ops      []string

	failAddLayer   bool
	panicOnSetData bool
}

func newFakeSurface(ready bool) *fakeSurface {
	s := &fakeSurface{
		ready:    make(chan struct{}),
		alive:    true,
		sources:  make(map[string]*geojson.FeatureCollection),
		layers:   make(map[string]LayerSpec),
		handlers: make(map[string][]func()),
	}
	if ready {
		close(s.ready)
	}
	return s
}

func (s *fakeSurface) markReady() { close(s.ready) }

func (s *fakeSurface) Ready() <-chan struct{} { return s.ready }

func (s *fakeSurface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSurface) record(op string) {
	s.ops = append(s.ops, op)
}

func (s *fakeSurface) AddSource(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("add_source:" + id)
	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("source %s exists", id)
	}
	s.sources[id] = data
	return nil
}

func (s *fakeSurface) HasSource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[id]
	return ok
}

func (s *fakeSurface) SetSourceData(id string, data *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnSetData {
		panic("set_data exploded")
	}
	s.record("set_data:" + id)
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("source %s missing", id)
	}
	s.sources[id] = data
	return nil
}

func (s *fakeSurface) AddLayer(spec LayerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("add_layer:" + spec.ID)
	if s.failAddLayer {
		return errors.New("style rejected layer")
	}
	s.layers[spec.ID] = spec
	return nil
}

func (s *fakeSurface) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove_layer:" + id)
	delete(s.layers, id)
	delete(s.handlers, id)
	return nil
}

func (s *fakeSurface) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove_source:" + id)
	delete(s.sources, id)
	return nil
}

func (s *fakeSurface) On(event EventKind, layerID string, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("on:" + string(event) + ":" + layerID)
	s.handlers[layerID] = append(s.handlers[layerID], handler)
	return nil
}

// click fires every handler registered on layerID.
func (s *fakeSurface) click(layerID string) {
	s.mu.Lock()
	hs := append([]func(){}, s.handlers[layerID]...)
	s.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (s *fakeSurface) takeOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.ops
	s.ops = nil
	return ops
}

func countPrefix(ops []string, prefix string) int {
	n := 0
	for _, op := range ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
