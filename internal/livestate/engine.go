// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package livestate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/metrics"
	"github.com/tomtom215/geotrack/internal/models"
	"github.com/tomtom215/geotrack/internal/stream"
)

// DefaultInboxSize is the Engine inbox buffer when none is configured.
const DefaultInboxSize = 256

// Renderer receives projected feature collections. *render.Reconciler
// satisfies it.
type Renderer interface {
	Reconcile(features []models.Feature)
	Flush() bool
}

// message is one item in the Engine inbox.
type message interface {
	isMessage()
}

// PositionMsg carries a raw device-position payload.
type PositionMsg struct{ Raw []byte }

// GeofenceMsg carries a raw geofence-crossing payload.
type GeofenceMsg struct{ Raw []byte }

// ConnectivityMsg carries a stream state change.
type ConnectivityMsg struct{ State stream.State }

type devicesQuery struct{ reply chan []models.DevicePosition }

type eventsQuery struct{ reply chan []models.GeofenceEvent }

func (PositionMsg) isMessage()     {}
func (GeofenceMsg) isMessage()     {}
func (ConnectivityMsg) isMessage() {}
func (devicesQuery) isMessage()    {}
func (eventsQuery) isMessage()     {}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInboxSize sets the inbox buffer size.
func WithInboxSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.inboxSize = n
		}
	}
}

// WithGeofenceListener registers fn to be called on the Engine goroutine for
// every accepted geofence event.
func WithGeofenceListener(fn func(models.GeofenceEvent)) EngineOption {
	return func(e *Engine) {
		e.onGeofence = fn
	}
}

// WithConnectivityListener registers fn to be called on the Engine goroutine
// for every stream state change.
func WithConnectivityListener(fn func(stream.State)) EngineOption {
	return func(e *Engine) {
		e.onConnectivity = fn
	}
}

// Engine serializes all mutation of an Aggregator onto one goroutine and
// drives the Renderer from it. It implements stream.Sink.
type Engine struct {
	agg      *Aggregator
	renderer Renderer
	ready    <-chan struct{}
	logger   zerolog.Logger

	onGeofence     func(models.GeofenceEvent)
	onConnectivity func(stream.State)

	inboxSize int
	inbox     chan message
	halted    atomic.Bool

	mu   sync.Mutex
	idle chan struct{} // closed while Run is not executing
}

// NewEngine creates an Engine. ready is the rendering surface's readiness
// signal; when it fires, any reconciliation deferred by the renderer is
// flushed. A nil ready disables flushing.
func NewEngine(agg *Aggregator, renderer Renderer, ready <-chan struct{}, opts ...EngineOption) *Engine {
	e := &Engine{
		agg:       agg,
		renderer:  renderer,
		ready:     ready,
		logger:    logging.WithComponent("livestate"),
		inboxSize: DefaultInboxSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.inbox = make(chan message, e.inboxSize)
	e.idle = make(chan struct{})
	close(e.idle)
	return e
}

// HandlePosition implements stream.Sink.
func (e *Engine) HandlePosition(raw []byte) {
	e.enqueue(PositionMsg{Raw: raw})
}

// HandleGeofence implements stream.Sink.
func (e *Engine) HandleGeofence(raw []byte) {
	e.enqueue(GeofenceMsg{Raw: raw})
}

// HandleState implements stream.Sink. CLOSED halts reconciliation
// immediately, before any queued message is processed; CONNECTED resumes it.
func (e *Engine) HandleState(state stream.State) {
	switch state {
	case stream.StateClosed:
		e.halted.Store(true)
	case stream.StateConnected:
		e.halted.Store(false)
	}
	e.enqueue(ConnectivityMsg{State: state})
}

// Devices returns a copy of the device snapshot sorted by deviceId.
func (e *Engine) Devices(ctx context.Context) ([]models.DevicePosition, error) {
	q := devicesQuery{reply: make(chan []models.DevicePosition, 1)}
	if err := e.send(ctx, q); err != nil {
		return nil, err
	}
	select {
	case out := <-q.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EventLog returns a copy of the geofence event log, newest first.
func (e *Engine) EventLog(ctx context.Context) ([]models.GeofenceEvent, error) {
	q := eventsQuery{reply: make(chan []models.GeofenceEvent, 1)}
	if err := e.send(ctx, q); err != nil {
		return nil, err
	}
	select {
	case out := <-q.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes the inbox until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.idle = make(chan struct{})
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		close(e.idle)
		e.mu.Unlock()
	}()

	e.logger.Info().Msg("livestate engine started")
	ready := e.ready
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("livestate engine stopped")
			return ctx.Err()
		case <-ready:
			ready = nil
			if e.renderer.Flush() {
				e.logger.Debug().Msg("deferred reconciliation applied")
			}
		case m := <-e.inbox:
			metrics.EngineQueueDepth.Set(float64(len(e.inbox)))
			e.handle(m)
		}
	}
}

// Serve implements suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	return e.Run(ctx)
}

// String implements fmt.Stringer for suture logging.
func (e *Engine) String() string {
	return "livestate-engine"
}

func (e *Engine) idleCh() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

// enqueue buffers m, blocking only while the Engine is running.
func (e *Engine) enqueue(m message) {
	select {
	case e.inbox <- m:
		metrics.EngineQueueDepth.Set(float64(len(e.inbox)))
		return
	default:
	}
	select {
	case e.inbox <- m:
	case <-e.idleCh():
		metrics.StreamMessagesDiscarded.Inc()
		e.logger.Warn().Msg("livestate inbox full and engine not running, message dropped")
	}
}

func (e *Engine) send(ctx context.Context, m message) error {
	idle := e.idleCh()
	select {
	case <-idle:
		return ErrEngineStopped
	default:
	}
	select {
	case e.inbox <- m:
		return nil
	case <-idle:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handle(m message) {
	switch m := m.(type) {
	case PositionMsg:
		if _, err := e.agg.OnPositionMessage(m.Raw); err != nil {
			e.malformed(KindPosition, err)
			return
		}
		e.updateGauges()
		if e.halted.Load() {
			return
		}
		e.renderer.Reconcile(e.agg.ProjectFeatures())
	case GeofenceMsg:
		ev, err := e.agg.OnGeofenceMessage(m.Raw)
		if err != nil {
			e.malformed(KindGeofence, err)
			return
		}
		e.updateGauges()
		e.logger.Debug().
			Str("device_id", ev.DeviceID).
			Str("geofence_id", ev.GeofenceID).
			Str("event_type", ev.EventType).
			Msg("geofence event")
		if e.onGeofence != nil {
			e.onGeofence(ev)
		}
	case ConnectivityMsg:
		if e.onConnectivity != nil {
			e.onConnectivity(m.State)
		}
	case devicesQuery:
		m.reply <- e.agg.Snapshot()
	case eventsQuery:
		m.reply <- e.agg.Events()
	}
}

func (e *Engine) malformed(kind string, err error) {
	field := ""
	var mErr *MalformedMessageError
	if errors.As(err, &mErr) {
		field = mErr.Field
	}
	metrics.RecordMalformed(kind, field)
	e.logger.Warn().Err(err).Str("channel", kind).Str("field", field).Msg("dropping malformed message")
}

func (e *Engine) updateGauges() {
	metrics.UpdateLiveState(e.agg.DeviceCount(), e.agg.EventCount())
}
