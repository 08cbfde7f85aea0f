// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geotrack/internal/livestate"
	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/models"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

type fakeState struct {
	mu      sync.Mutex
	devices []models.DevicePosition
	events  []models.GeofenceEvent
	err     error
	block   bool
}

func (f *fakeState) Devices(ctx context.Context) ([]models.DevicePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.DevicePosition(nil), f.devices...), nil
}

func (f *fakeState) EventLog(ctx context.Context) ([]models.GeofenceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.GeofenceEvent(nil), f.events...), nil
}

type fakeStream struct {
	status models.ConnectivityStatus
}

func (f *fakeStream) Status() models.ConnectivityStatus { return f.status }

func sampleState() *fakeState {
	return &fakeState{
		devices: []models.DevicePosition{
			{DeviceID: "d1", Longitude: 106.7, Latitude: 10.8},
			{DeviceID: "d2", Longitude: 106.71, Latitude: 10.81},
		},
		events: []models.GeofenceEvent{
			{DeviceID: "d1", GeofenceID: "E3", EventType: "ENTER"},
			{DeviceID: "d1", GeofenceID: "E2", EventType: "EXIT"},
			{DeviceID: "d2", GeofenceID: "E1", EventType: "ENTER"},
		},
	}
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDevices(t *testing.T) {
	h := NewHandler(sampleState(), nil, nil, nil)

	rec := serve(h.Devices, "/api/v1/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}

	env := decode(t, rec)
	if env.Status != "success" || env.Metadata.Count != 2 {
		t.Errorf("envelope = %+v", env)
	}
	var devices []models.DevicePosition
	if err := json.Unmarshal(env.Data, &devices); err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0].DeviceID != "d1" || devices[1].Longitude != 106.71 {
		t.Errorf("devices = %+v", devices)
	}
}

func TestEvents_Limit(t *testing.T) {
	h := NewHandler(sampleState(), nil, nil, nil)

	tests := []struct {
		target     string
		wantStatus int
		wantIDs    []string
	}{
		{"/api/v1/events", http.StatusOK, []string{"E3", "E2", "E1"}},
		{"/api/v1/events?limit=2", http.StatusOK, []string{"E3", "E2"}},
		{"/api/v1/events?limit=10", http.StatusOK, []string{"E3", "E2", "E1"}},
		{"/api/v1/events?limit=0", http.StatusOK, []string{"E3", "E2", "E1"}},
		{"/api/v1/events?limit=-1", http.StatusBadRequest, nil},
		{"/api/v1/events?limit=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(h.Events, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decode(t, rec)
			if tt.wantStatus != http.StatusOK {
				if env.Error == nil || env.Error.Code != models.ErrCodeBadRequest {
					t.Errorf("error = %+v", env.Error)
				}
				return
			}
			var events []models.GeofenceEvent
			if err := json.Unmarshal(env.Data, &events); err != nil {
				t.Fatal(err)
			}
			if len(events) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if events[i].GeofenceID != id {
					t.Errorf("events[%d] = %s, want %s", i, events[i].GeofenceID, id)
				}
			}
		})
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name       string
		state      LiveState
		wantStatus int
		wantCode   string
	}{
		{"no engine", nil, http.StatusServiceUnavailable, models.ErrCodeUnavailable},
		{"engine stopped", &fakeState{err: livestate.ErrEngineStopped}, http.StatusServiceUnavailable, models.ErrCodeUnavailable},
		{"engine slow", &fakeState{block: true}, http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{"unexpected", &fakeState{err: errors.New("boom")}, http.StatusInternalServerError, models.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.state, nil, nil, nil)
			h.queryTimeout = 20 * time.Millisecond

			rec := serve(h.Devices, "/api/v1/devices")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decode(t, rec)
			if env.Status != "error" || env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestConnectivity(t *testing.T) {
	since := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHandler(nil, &fakeStream{status: models.ConnectivityStatus{
		Connected: true, State: "CONNECTED", Since: since,
	}}, nil, nil)

	rec := serve(h.Connectivity, "/api/v1/connectivity")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st models.ConnectivityStatus
	if err := json.Unmarshal(decode(t, rec).Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Connected || st.State != "CONNECTED" || !st.Since.Equal(since) {
		t.Errorf("status = %+v", st)
	}

	rec = serve(NewHandler(nil, nil, nil, nil).Connectivity, "/api/v1/connectivity")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("nil stream status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	connected := &fakeStream{status: models.ConnectivityStatus{Connected: true, State: "CONNECTED"}}
	down := &fakeStream{status: models.ConnectivityStatus{State: "RECONNECTING"}}

	tests := []struct {
		name       string
		state      LiveState
		stream     StreamStatus
		wantStatus string
		wantDev    int
	}{
		{"healthy", sampleState(), connected, "healthy", 2},
		{"stream down", sampleState(), down, "degraded", 2},
		{"engine stopped", &fakeState{err: livestate.ErrEngineStopped}, connected, "degraded", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.state, tt.stream, nil, nil)
			rec := serve(h.Health, "/api/v1/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var hs models.HealthStatus
			if err := json.Unmarshal(decode(t, rec).Data, &hs); err != nil {
				t.Fatal(err)
			}
			if hs.Status != tt.wantStatus || hs.TrackedDevices != tt.wantDev {
				t.Errorf("health = %+v", hs)
			}
		})
	}
}

func TestHealthReady_NoHub(t *testing.T) {
	h := NewHandler(sampleState(), nil, nil, nil)
	rec := serve(h.HealthReady, "/api/v1/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a hub", rec.Code)
	}
	if env := decode(t, rec); env.Status != "not_ready" {
		t.Errorf("status = %q", env.Status)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"missing origin", nil, "", false},
		{"no allow list", nil, "https://anywhere.example", true},
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"listed", []string{"https://map.example.com"}, "https://map.example.com", true},
		{"not listed", []string{"https://map.example.com"}, "https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(nil, nil, nil, tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkWebSocketOrigin(req); got != tt.want {
				t.Errorf("checkWebSocketOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
