// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/geotrack/internal/models"
	ws "github.com/tomtom215/geotrack/internal/websocket"
)

func startHub(t *testing.T) *ws.Hub {
	t.Helper()
	hub := ws.NewHub()
	ws.NewMapSurface(hub, ws.DefaultMapDefaults())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-hub.Ready()
	return hub
}

func newTestServer(t *testing.T, hub *ws.Hub, mwCfg *ChiMiddlewareConfig) *httptest.Server {
	t.Helper()
	stream := &fakeStream{status: models.ConnectivityStatus{Connected: true, State: "CONNECTED"}}
	h := NewHandler(sampleState(), stream, hub, []string{"https://map.example.com"})
	srv := httptest.NewServer(NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t, startHub(t), nil)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/health/live", http.StatusOK},
		{"/api/v1/health/ready", http.StatusOK},
		{"/api/v1/devices", http.StatusOK},
		{"/api/v1/events", http.StatusOK},
		{"/api/v1/connectivity", http.StatusOK},
		{"/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := get(t, srv.URL+tt.path, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t, startHub(t), nil)

	resp := get(t, srv.URL+"/api/v1/devices", nil)
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t, startHub(t), &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://map.example.com"},
		CORSAllowedMethods: []string{"GET"},
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	})

	resp := get(t, srv.URL+"/api/v1/devices", http.Header{"Origin": {"https://map.example.com"}})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://map.example.com" {
		t.Errorf("allowed origin header = %q", got)
	}

	resp = get(t, srv.URL+"/api/v1/devices", http.Header{"Origin": {"https://evil.example"}})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, startHub(t), &ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	for i := 0; i < 2; i++ {
		if resp := get(t, srv.URL+"/api/v1/devices", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}

	resp := get(t, srv.URL+"/api/v1/devices", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Error == nil || env.Error.Code != models.ErrCodeRateLimited {
		t.Errorf("error = %+v", env.Error)
	}

	// Health endpoints use their own budget.
	if resp := get(t, srv.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestRouter_RateLimitDisabled(t *testing.T) {
	srv := newTestServer(t, startHub(t), &ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
	})

	for i := 0; i < 5; i++ {
		if resp := get(t, srv.URL+"/api/v1/devices", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestRouter_WebSocket(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"https://map.example.com"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != ws.MessageTypeMapState {
		t.Errorf("first message = %q, want %q", msg.Type, ws.MessageTypeMapState)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.GetClientCount(); n != 1 {
		t.Errorf("clients = %d, want 1", n)
	}
}

func TestRouter_WebSocketRejectsOrigin(t *testing.T) {
	srv := newTestServer(t, startHub(t), nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial from a foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestRouter_WebSocketHubStopped(t *testing.T) {
	srv := newTestServer(t, ws.NewHub(), nil)

	resp := get(t, srv.URL+"/ws", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
