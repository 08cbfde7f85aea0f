// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geotrack/internal/models"
	"github.com/tomtom215/geotrack/internal/render"
)

// wireMessage decodes server messages on the browser side.
type wireMessage struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// browser connects a real websocket client to hub through httptest.
func browser(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestMapSurface_NotReadyAndClosed(t *testing.T) {
	hub := NewHub()
	s := NewMapSurface(hub, DefaultMapDefaults())
	fc := models.NewPointFeature("d1", "l", 1, 2, nil).Collection()

	if err := s.AddSource("src", fc); !errors.Is(err, render.ErrNotReady) {
		t.Errorf("AddSource before hub start = %v, want ErrNotReady", err)
	}
	if !s.Alive() {
		t.Error("surface should be alive before Close")
	}

	startHub(t, hub)
	if err := s.AddSource("src", fc); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	s.Close()
	if s.Alive() {
		t.Error("Alive after Close")
	}
	if err := s.SetSourceData("src", fc); !errors.Is(err, render.ErrSurfaceClosed) {
		t.Errorf("SetSourceData after Close = %v, want ErrSurfaceClosed", err)
	}
}

func TestMapSurface_OperationErrors(t *testing.T) {
	hub := NewHub()
	s := NewMapSurface(hub, DefaultMapDefaults())
	startHub(t, hub)
	fc := models.NewPointFeature("d1", "l", 1, 2, nil).Collection()

	if err := s.AddSource("src", fc); err != nil {
		t.Fatal(err)
	}
	layer := render.LayerSpec{ID: "lyr", Kind: render.PrimitiveCircle, SourceID: "src"}
	if err := s.AddLayer(layer); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate source", s.AddSource("src", fc), ErrSourceExists},
		{"set data on unknown source", s.SetSourceData("nope", fc), ErrSourceNotFound},
		{"duplicate layer", s.AddLayer(layer), ErrLayerExists},
		{"layer without source", s.AddLayer(render.LayerSpec{ID: "x", SourceID: "nope"}), ErrSourceNotFound},
		{"remove source in use", s.RemoveSource("src"), ErrSourceInUse},
		{"remove unknown layer", s.RemoveLayer("nope"), ErrLayerNotFound},
		{"click on unknown layer", s.On(render.EventClick, "nope", func() {}), ErrLayerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if err := s.RemoveLayer("lyr"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveSource("src"); err != nil {
		t.Fatal(err)
	}
	if s.HasSource("src") || len(s.Layers()) != 0 {
		t.Error("surface not empty after removals")
	}
}

func TestMapSurface_LateJoinerGetsFullState(t *testing.T) {
	hub := NewHub()
	s := NewMapSurface(hub, DefaultMapDefaults())
	startHub(t, hub)

	rec := render.NewReconciler(s)
	rec.Reconcile([]models.Feature{
		models.NewPointFeature("d1", "live", 106.7, 10.8, map[string]interface{}{"name": "Truck 1"}),
	})

	conn := browser(t, hub)
	first := read(t, conn)
	if first.Type != MessageTypeMapState {
		t.Fatalf("first message = %s, want map_state", first.Type)
	}
	var state MapState
	if err := json.Unmarshal(first.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.Center != [2]float64{106.6297, 10.8231} || state.Zoom != 12 || state.MinZoom != 3 || state.MaxZoom != 18 {
		t.Errorf("defaults = %+v", state.MapDefaults)
	}
	if _, ok := state.Sources[render.SourceID("d1")]; !ok {
		t.Errorf("snapshot missing source: %v", state.Sources)
	}
	if len(state.Layers) != 1 || state.Layers[0].ID != render.LayerID("d1") || state.Layers[0].Kind != render.PrimitiveCircle {
		t.Errorf("snapshot layers = %+v", state.Layers)
	}

	rec.Reconcile([]models.Feature{models.NewPointFeature("d1", "live", 106.71, 10.81, nil)})
	next := read(t, conn)
	if next.Type != MessageTypeDraw || next.Seq <= first.Seq {
		t.Fatalf("next message = %s seq %d (snapshot seq %d)", next.Type, next.Seq, first.Seq)
	}
	var cmd DrawCommand
	if err := json.Unmarshal(next.Data, &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Op != DrawSetData || cmd.ID != render.SourceID("d1") {
		t.Errorf("draw = %+v, want set_data on the existing source", cmd)
	}
}

func TestMapSurface_ClickDispatch(t *testing.T) {
	hub := NewHub()
	s := NewMapSurface(hub, DefaultMapDefaults())
	startHub(t, hub)

	var clicked atomic.Value
	rec := render.NewReconciler(s, render.WithClickHandler(func(f models.Feature) {
		clicked.Store(f.ID)
		hub.BroadcastFeatureSelected(f)
	}))
	rec.Reconcile([]models.Feature{models.NewPointFeature("d1", "live", 1, 2, nil)})

	conn := browser(t, hub)
	read(t, conn) // map_state

	send(t, conn, `{"type":"feature_click","data":{"layerId":"`+render.LayerID("d1")+`"}}`)
	m := read(t, conn)
	if m.Type != MessageTypeFeatureSelected {
		t.Fatalf("message = %s, want feature_selected", m.Type)
	}
	if clicked.Load() != "d1" {
		t.Errorf("callback got %v", clicked.Load())
	}

	send(t, conn, `{"type":"ping"}`)
	if m := read(t, conn); m.Type != MessageTypePong {
		t.Errorf("ping reply = %s", m.Type)
	}

	send(t, conn, `{"type":"feature_click","data":{}}`)
	if m := read(t, conn); m.Type != MessageTypeError {
		t.Errorf("click without layer = %s, want error", m.Type)
	}
}

func TestClient_ClickRateLimited(t *testing.T) {
	hub := NewHub(WithClickRate(rate.Limit(0.001), 1))
	s := NewMapSurface(hub, DefaultMapDefaults())
	startHub(t, hub)

	var clicks atomic.Int32
	rec := render.NewReconciler(s, render.WithClickHandler(func(models.Feature) { clicks.Add(1) }))
	rec.Reconcile([]models.Feature{models.NewPointFeature("d1", "live", 1, 2, nil)})

	c := fakeClient(hub)
	click := []byte(`{"type":"feature_click","data":{"layerId":"` + render.LayerID("d1") + `"}}`)
	c.handle(click)
	c.handle(click)

	if clicks.Load() != 1 {
		t.Errorf("callback ran %d times, want 1", clicks.Load())
	}
	select {
	case m := <-c.send:
		if m.Type != MessageTypeError {
			t.Errorf("rate limited reply = %s", m.Type)
		}
	default:
		t.Error("rate limited click got no reply")
	}
}

func TestMapSurface_ResyncAfterDroppedDraws(t *testing.T) {
	hub := NewHub(WithBroadcastBuffer(1))
	s := NewMapSurface(hub, DefaultMapDefaults())
	// Ready without draining, so the queue overflows.
	hub.readyOnce.Do(func() { close(hub.ready) })

	c := fakeClient(hub)
	hub.addClient(c)
	if m := recv(t, c); m.Type != MessageTypeMapState {
		t.Fatalf("welcome = %s", m.Type)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := s.AddSource(id, geojson.NewFeatureCollection()); err != nil {
			t.Fatalf("AddSource(%s): %v", id, err)
		}
	}

	startHub(t, hub)

	m := recv(t, c)
	if m.Type != MessageTypeMapState || m.Seq != 3 {
		t.Fatalf("got %s seq %d, want map_state seq 3", m.Type, m.Seq)
	}
	state, ok := m.Data.(MapState)
	if !ok || len(state.Sources) != 3 {
		t.Fatalf("resync snapshot = %#v", m.Data)
	}

	if err := s.SetSourceData("a", geojson.NewFeatureCollection()); err != nil {
		t.Fatal(err)
	}
	m = recv(t, c)
	cmd, ok := m.Data.(DrawCommand)
	if m.Seq != 4 || !ok || cmd.Op != DrawSetData || cmd.ID != "a" {
		t.Errorf("next message = seq %d %#v", m.Seq, m.Data)
	}
}
