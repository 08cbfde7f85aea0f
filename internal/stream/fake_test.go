// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/geotrack/internal/logging"
)

//nolint:gochecknoinits // silence logging for the package's tests
func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeConn is an in-memory Conn whose drops are triggered by the test.
type fakeConn struct {
	mu     sync.Mutex
	subs   map[string][]*fakeSub
	done   chan struct{}
	err    error
	closed bool
}

type fakeSub struct {
	conn    *fakeConn
	channel string
	handler Handler
	active  bool
}

func (s *fakeSub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.active = false
	return nil
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string][]*fakeSub), done: make(chan struct{})}
}

func (c *fakeConn) Subscribe(channel string, h Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	sub := &fakeSub{conn: c, channel: channel, handler: h, active: true}
	c.subs[channel] = append(c.subs[channel], sub)
	return sub, nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	close(c.done)
	return nil
}

// drop simulates the broker going away.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.done)
}

// deliver invokes every handler subscribed to channel, active or not, the
// way a broker would for messages already in flight.
func (c *fakeConn) deliver(channel string, payload []byte) {
	c.mu.Lock()
	subs := append([]*fakeSub(nil), c.subs[channel]...)
	c.mu.Unlock()
	for _, s := range subs {
		s.handler(payload)
	}
}

func (c *fakeConn) activeSubs() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int)
	for ch, subs := range c.subs {
		for _, s := range subs {
			if s.active {
				out[ch]++
			}
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeTransport hands out fakeConns, failing the first failFirst dials.
type fakeTransport struct {
	mu        sync.Mutex
	failFirst int
	failAll   bool
	dials     int
	conns     []*fakeConn
}

func (t *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.failAll || t.dials <= t.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.conns) {
		return nil
	}
	return t.conns[i]
}

// recordingSink captures everything the Manager forwards.
type recordingSink struct {
	mu        sync.Mutex
	positions []string
	geofences []string
	states    []State
}

func (s *recordingSink) HandlePosition(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, string(p))
}

func (s *recordingSink) HandleGeofence(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geofences = append(s.geofences, string(p))
}

func (s *recordingSink) HandleState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func (s *recordingSink) snapshot() (positions, geofences []string, states []State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.positions...),
		append([]string(nil), s.geofences...),
		append([]State(nil), s.states...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectInitial = time.Millisecond
	cfg.ReconnectMax = 4 * time.Millisecond
	cfg.BreakerFailures = 1000
	return cfg
}
