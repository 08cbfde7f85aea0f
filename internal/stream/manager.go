// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/metrics"
	"github.com/tomtom215/geotrack/internal/models"
)

// Config configures a Manager.
type Config struct {
	PositionChannel string
	GeofenceChannel string

	ReconnectInitial    time.Duration
	ReconnectMax        time.Duration
	ReconnectMultiplier float64
	ReconnectJitter     float64

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the channel names and reconnect policy of the live
// tracking broker: 1s doubling to a 30s ceiling, no jitter.
func DefaultConfig() Config {
	return Config{
		PositionChannel:     "/topic/devices",
		GeofenceChannel:     "/topic/geofences",
		ReconnectInitial:    time.Second,
		ReconnectMax:        30 * time.Second,
		ReconnectMultiplier: 2,
		BreakerFailures:     5,
		BreakerTimeout:      30 * time.Second,
	}
}

// session is one Activate..Deactivate lifetime.
type session struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) active() bool {
	return s.ctx.Err() == nil
}

// Manager owns one persistent subscription connection.
type Manager struct {
	transport Transport
	sink      Sink
	cfg       Config
	breaker   *gobreaker.CircuitBreaker[Conn]
	logger    zerolog.Logger

	state atomic.Int32

	mu        sync.Mutex
	session   *session
	sessionID uint64
	since     time.Time
}

// NewManager creates a Manager in the DISCONNECTED state. Nothing is dialed
// until Activate (or Serve) is called.
func NewManager(transport Transport, sink Sink, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.PositionChannel == "" {
		cfg.PositionChannel = def.PositionChannel
	}
	if cfg.GeofenceChannel == "" {
		cfg.GeofenceChannel = def.GeofenceChannel
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = def.ReconnectInitial
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = def.ReconnectMax
	}
	if cfg.ReconnectMultiplier < 1 {
		cfg.ReconnectMultiplier = def.ReconnectMultiplier
	}

	m := &Manager{
		transport: transport,
		sink:      sink,
		cfg:       cfg,
		breaker:   newDialBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
		logger:    logging.WithComponent("stream"),
		since:     time.Now(),
	}
	m.state.Store(int32(StateDisconnected))
	return m
}

// Activate starts a session: the manager connects, subscribes both channels
// and keeps reconnecting until Deactivate. Calling Activate on an active
// manager does nothing.
func (m *Manager) Activate() {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return
	}
	m.sessionID++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     m.sessionID,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.session = sess
	m.mu.Unlock()

	m.logger.Info().Uint64("session", sess.id).Msg("stream activated")
	m.transition(sess, StateConnecting)
	go m.run(sess)
}

// Deactivate closes the connection and stops reconnecting. It blocks until
// the session has released its transport. Safe to call repeatedly.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess != nil {
		sess.cancel()
		<-sess.done
		m.logger.Info().Uint64("session", sess.id).Msg("stream deactivated")
	}

	m.mu.Lock()
	reactivated := m.session != nil
	m.mu.Unlock()
	if reactivated || m.State() == StateClosed {
		return
	}
	m.setState(StateClosed)
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Connected reports whether the manager currently holds a subscribed connection.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Status returns the public connectivity view.
func (m *Manager) Status() models.ConnectivityStatus {
	m.mu.Lock()
	since := m.since
	m.mu.Unlock()

	st := m.State()
	return models.ConnectivityStatus{
		Connected: st == StateConnected,
		State:     st.String(),
		Since:     since,
	}
}

// Serve implements suture.Service. It activates the manager and deactivates
// it when ctx is canceled.
func (m *Manager) Serve(ctx context.Context) error {
	m.Activate()
	<-ctx.Done()
	m.Deactivate()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (m *Manager) String() string {
	return "stream-manager"
}

// transition moves to state on behalf of sess. Transitions from a session
// that is no longer current are dropped.
func (m *Manager) transition(sess *session, state State) {
	m.mu.Lock()
	current := m.session == sess && sess.active()
	m.mu.Unlock()
	if !current {
		return
	}
	m.setState(state)
}

func (m *Manager) setState(state State) {
	prev := State(m.state.Swap(int32(state)))
	if prev == state {
		return
	}

	m.mu.Lock()
	m.since = time.Now()
	m.mu.Unlock()

	metrics.RecordStreamState(int(state), state == StateConnected)
	m.logger.Info().Str("from", prev.String()).Str("to", state.String()).Msg("stream state changed")
	if m.sink != nil {
		m.sink.HandleState(state)
	}
}

// run is the session's connect/reconnect loop.
func (m *Manager) run(sess *session) {
	defer close(sess.done)

	backoff := NewBackoff(m.cfg.ReconnectInitial, m.cfg.ReconnectMax, m.cfg.ReconnectMultiplier, m.cfg.ReconnectJitter)

	for sess.active() {
		conn, err := m.dial(sess.ctx)
		if err != nil {
			if !sess.active() {
				return
			}
			m.logger.Warn().Err(err).Msg("stream connect failed")
			if !m.waitRetry(sess, backoff) {
				return
			}
			continue
		}

		m.transition(sess, StateConnected)
		subs, err := m.subscribe(sess, conn)
		if err != nil {
			m.logger.Warn().Err(err).Msg("stream subscribe failed")
			m.release(conn, subs)
			if !m.waitRetry(sess, backoff) {
				return
			}
			continue
		}
		backoff.Reset()

		select {
		case <-sess.ctx.Done():
			m.release(conn, subs)
			return
		case <-conn.Done():
			m.logger.Warn().Err(fmt.Errorf("%w: %w", ErrTransport, dropCause(conn))).Msg("stream connection dropped")
			m.release(conn, nil)
			if !m.waitRetry(sess, backoff) {
				return
			}
		}
	}
}

func dropCause(conn Conn) error {
	if err := conn.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// waitRetry enters RECONNECTING, waits out the next backoff delay and moves
// back to CONNECTING. It returns false if the session ended while waiting.
func (m *Manager) waitRetry(sess *session, backoff *Backoff) bool {
	delay := backoff.Next()
	m.transition(sess, StateReconnecting)
	metrics.RecordReconnect(delay)
	m.logger.Info().Dur("delay", delay).Msg("reconnecting")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-sess.ctx.Done():
		return false
	}

	m.transition(sess, StateConnecting)
	return sess.active()
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	conn, err := m.breaker.Execute(func() (Conn, error) {
		return m.transport.Dial(ctx)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordConnectAttempt("rejected")
	case err != nil:
		metrics.RecordConnectAttempt("failure")
	default:
		metrics.RecordConnectAttempt("success")
		return conn, nil
	}
	if errors.Is(err, ErrTransport) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: dial: %w", ErrTransport, err)
}

// subscribe binds both channels on conn. Handlers are fenced to sess so a
// message arriving after Deactivate is discarded.
func (m *Manager) subscribe(sess *session, conn Conn) ([]Subscription, error) {
	bindings := []struct {
		channel string
		kind    string
		deliver func([]byte)
	}{
		{m.cfg.PositionChannel, "position", m.sink.HandlePosition},
		{m.cfg.GeofenceChannel, "geofence", m.sink.HandleGeofence},
	}

	subs := make([]Subscription, 0, len(bindings))
	for _, b := range bindings {
		deliver, kind := b.deliver, b.kind
		sub, err := conn.Subscribe(b.channel, func(payload []byte) {
			if !sess.active() {
				metrics.StreamMessagesDiscarded.Inc()
				return
			}
			metrics.RecordStreamMessage(kind)
			deliver(payload)
		})
		if err != nil {
			return subs, fmt.Errorf("%w: subscribe %s: %w", ErrTransport, b.channel, err)
		}
		subs = append(subs, sub)
		m.logger.Debug().Str("channel", b.channel).Msg("subscribed")
	}
	return subs, nil
}

// release unsubscribes subs and closes conn, logging failures.
func (m *Manager) release(conn Conn, subs []Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	if err := conn.Close(); err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Debug().Err(err).Msg("close failed")
	}
}
