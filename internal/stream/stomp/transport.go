// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stomp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/stream"
)

// Config configures the STOMP transport.
type Config struct {
	URL      string
	Host     string // virtual host sent in CONNECT; defaults to the URL host
	Login    string
	Passcode string

	// Heart-beat intervals offered to the broker. Zero disables that direction.
	HeartbeatOut time.Duration
	HeartbeatIn  time.Duration

	HandshakeTimeout time.Duration
}

// Transport dials STOMP connections.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewTransport creates a Transport for cfg.URL.
func NewTransport(cfg Config) *Transport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		},
		logger: logging.WithComponent("stomp"),
	}
}

// Dial opens the socket and completes the STOMP handshake.
func (t *Transport) Dial(ctx context.Context) (stream.Conn, error) {
	ws, resp, err := t.dialer.DialContext(ctx, t.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.Debug().Err(cerr).Msg("failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket dial failed (status %d): %w", stream.ErrTransport, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: websocket dial failed: %w", stream.ErrTransport, err)
	}

	c := &Conn{
		ws:     ws,
		subs:   make(map[string]*subscription),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	if err := c.handshake(ctx, t.cfg); err != nil {
		_ = ws.Close() //nolint:errcheck // handshake error takes precedence
		return nil, err
	}

	go c.readLoop()
	if c.sendEvery > 0 {
		go c.heartbeatLoop()
	}
	t.logger.Info().Str("url", t.cfg.URL).Str("version", c.version).Msg("STOMP session established")
	return c, nil
}

// Conn is one STOMP session.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	version   string
	sendEvery time.Duration
	readLimit time.Duration
	logger    zerolog.Logger

	mu   sync.Mutex
	subs map[string]*subscription

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

type subscription struct {
	conn        *Conn
	id          string
	destination string
	handler     stream.Handler
}

func (c *Conn) handshake(ctx context.Context, cfg Config) error {
	host := cfg.Host
	if host == "" {
		host = hostOf(cfg.URL)
	}
	connect := newFrame(cmdConnect,
		"accept-version", "1.2,1.1,1.0",
		"host", host,
		"heart-beat", fmt.Sprintf("%d,%d", cfg.HeartbeatOut.Milliseconds(), cfg.HeartbeatIn.Milliseconds()),
	)
	if cfg.Login != "" {
		connect.Headers = append(connect.Headers, [2]string{"login", cfg.Login}, [2]string{"passcode", cfg.Passcode})
	}

	deadline := time.Now().Add(cfg.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", stream.ErrTransport, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, connect.Encode()); err != nil {
		return fmt.Errorf("%w: send CONNECT: %w", stream.ErrTransport, err)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", stream.ErrTransport, err)
	}

	// Abort the blocking read if ctx is canceled mid-handshake.
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() }) //nolint:errcheck // best effort
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: awaiting CONNECTED: %w", stream.ErrTransport, err)
		}
		frames, err := Decode(data)
		if err != nil {
			return fmt.Errorf("%w: %w", stream.ErrTransport, err)
		}
		for _, f := range frames {
			switch f.Command {
			case cmdConnected:
				c.version, _ = f.Header("version")
				c.negotiateHeartbeat(cfg, f)
				_ = c.ws.SetReadDeadline(time.Time{})  //nolint:errcheck // the read loop owns deadlines from here
				_ = c.ws.SetWriteDeadline(time.Time{}) //nolint:errcheck
				return nil
			case cmdError:
				msg, _ := f.Header("message")
				return fmt.Errorf("%w: broker rejected CONNECT: %s", stream.ErrTransport, msg)
			}
		}
	}
}

// negotiateHeartbeat applies the STOMP rule: each side uses the larger of
// what it offers and what the other side wants, and zero disables.
func (c *Conn) negotiateHeartbeat(cfg Config, connected *Frame) {
	hb, ok := connected.Header("heart-beat")
	if !ok {
		return
	}
	sx, sy := parseHeartbeat(hb)
	if cx := cfg.HeartbeatOut; cx > 0 && sy > 0 {
		c.sendEvery = max(cx, sy)
	}
	if cy := cfg.HeartbeatIn; cy > 0 && sx > 0 {
		// Tolerate one late beat before declaring the broker gone.
		c.readLimit = 2 * max(cy, sx)
	}
}

func parseHeartbeat(v string) (time.Duration, time.Duration) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0
	}
	x, errX := strconv.Atoi(strings.TrimSpace(a))
	y, errY := strconv.Atoi(strings.TrimSpace(b))
	if errX != nil || errY != nil {
		return 0, 0
	}
	return time.Duration(x) * time.Millisecond, time.Duration(y) * time.Millisecond
}

func hostOf(rawURL string) string {
	s := rawURL
	if _, rest, ok := strings.Cut(s, "://"); ok {
		s = rest
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if h, _, ok := strings.Cut(s, ":"); ok {
		return h
	}
	return s
}

// Subscribe sends SUBSCRIBE for destination and routes its messages to h.
func (c *Conn) Subscribe(destination string, h stream.Handler) (stream.Subscription, error) {
	sub := &subscription{
		conn:        c,
		id:          uuid.NewString(),
		destination: destination,
		handler:     h,
	}

	c.mu.Lock()
	if c.closed() {
		c.mu.Unlock()
		return nil, stream.ErrClosed
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	err := c.send(newFrame(cmdSubscribe, "id", sub.id, "destination", destination, "ack", "auto"))
	if err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: subscribe %s: %w", stream.ErrTransport, destination, err)
	}
	return sub, nil
}

// Unsubscribe stops delivery and tells the broker.
func (s *subscription) Unsubscribe() error {
	c := s.conn
	c.mu.Lock()
	_, ok := c.subs[s.id]
	delete(c.subs, s.id)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if c.closed() {
		return stream.ErrClosed
	}
	return c.send(newFrame(cmdUnsubscribe, "id", s.id))
}

// Done is closed when the session ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the session ended; nil after Close.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends DISCONNECT and closes the socket.
func (c *Conn) Close() error {
	if c.closed() {
		return stream.ErrClosed
	}
	if err := c.send(newFrame(cmdDisconnect)); err != nil {
		c.logger.Debug().Err(err).Msg("failed to send DISCONNECT")
	}
	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug().Err(err).Msg("failed to send close message")
	}
	c.finish(nil)
	return nil
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// finish ends the session once, recording cause.
func (c *Conn) finish(cause error) {
	c.closeOnce.Do(func() {
		c.err = cause
		close(c.done)
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("failed to close socket")
		}
	})
}

func (c *Conn) send(f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, f.Encode())
}

func (c *Conn) readLoop() {
	for {
		if c.readLimit > 0 {
			if err := c.ws.SetReadDeadline(time.Now().Add(c.readLimit)); err != nil {
				c.finish(fmt.Errorf("%w: %w", stream.ErrTransport, err))
				return
			}
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed() {
				return
			}
			c.finish(fmt.Errorf("%w: read: %w", stream.ErrTransport, err))
			return
		}

		frames, err := Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable frame")
		}
		for _, f := range frames {
			if !c.dispatch(f) {
				return
			}
		}
	}
}

// dispatch handles one inbound frame and reports whether reading continues.
func (c *Conn) dispatch(f *Frame) bool {
	switch f.Command {
	case cmdMessage:
		id, _ := f.Header("subscription")
		c.mu.Lock()
		sub := c.subs[id]
		c.mu.Unlock()
		if sub == nil {
			c.logger.Debug().Str("subscription", id).Msg("message for unknown subscription")
			return true
		}
		sub.handler(f.Body)
	case cmdError:
		msg, _ := f.Header("message")
		c.finish(fmt.Errorf("%w: broker error: %s", stream.ErrTransport, msg))
		return false
	case cmdReceipt:
	default:
		c.logger.Debug().Str("command", f.Command).Msg("ignoring frame")
	}
	return true
}

func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.sendEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.SetWriteDeadline(time.Now().Add(c.sendEvery))
			if err == nil {
				err = c.ws.WriteMessage(websocket.TextMessage, []byte{'\n'})
			}
			c.writeMu.Unlock()
			if err != nil {
				c.finish(fmt.Errorf("%w: heart-beat: %w", stream.ErrTransport, err))
				return
			}
		}
	}
}
