// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/geotrack/internal/logging"
	"github.com/tomtom215/geotrack/internal/stream"
)

// Config configures the NATS transport.
type Config struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	PingInterval   time.Duration
}

// Transport dials NATS connections.
type Transport struct {
	cfg    Config
	logger zerolog.Logger
}

// NewTransport creates a Transport for cfg.URL.
func NewTransport(cfg Config) *Transport {
	if cfg.Name == "" {
		cfg.Name = "geotrack"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	return &Transport{cfg: cfg, logger: logging.WithComponent("natsbus")}
}

// SubjectFor converts a channel name to a NATS subject.
func SubjectFor(channel string) string {
	return strings.ReplaceAll(strings.TrimPrefix(channel, "/"), "/", ".")
}

// Dial connects to the server. Canceling ctx abandons the attempt.
func (t *Transport) Dial(ctx context.Context) (stream.Conn, error) {
	c := &Conn{done: make(chan struct{}), logger: t.logger}

	type result struct {
		nc  *nats.Conn
		err error
	}
	resc := make(chan result, 1)
	go func() {
		nc, err := nats.Connect(t.cfg.URL,
			nats.Name(t.cfg.Name),
			nats.NoReconnect(),
			nats.Timeout(t.cfg.ConnectTimeout),
			nats.PingInterval(t.cfg.PingInterval),
			nats.DisconnectErrHandler(c.handleDisconnect),
			nats.ClosedHandler(c.handleClosed),
			nats.ErrorHandler(c.handleError),
		)
		resc <- result{nc, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resc; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, fmt.Errorf("%w: connect: %w", stream.ErrTransport, ctx.Err())
	case r := <-resc:
		if r.err != nil {
			return nil, fmt.Errorf("%w: connect %s: %w", stream.ErrTransport, t.cfg.URL, r.err)
		}
		c.nc = r.nc
	}

	t.logger.Info().Str("url", c.nc.ConnectedUrlRedacted()).Msg("NATS connection established")
	return c, nil
}

// Conn is one NATS connection.
type Conn struct {
	nc     *nats.Conn
	logger zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (c *Conn) handleDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		c.finish(fmt.Errorf("%w: disconnected: %w", stream.ErrTransport, err))
		return
	}
	c.finish(nil)
}

func (c *Conn) handleClosed(_ *nats.Conn) {
	c.finish(nil)
}

func (c *Conn) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Warn().Err(err).Str("subject", subject).Msg("NATS async error")
}

func (c *Conn) finish(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		close(c.done)
	})
}

// Subscribe subscribes to the subject for channel. Messages for one
// subscription are delivered sequentially in arrival order.
func (c *Conn) Subscribe(channel string, h stream.Handler) (stream.Subscription, error) {
	if c.nc.IsClosed() {
		return nil, stream.ErrClosed
	}
	sub, err := c.nc.Subscribe(SubjectFor(channel), func(m *nats.Msg) {
		h(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %w", stream.ErrTransport, channel, err)
	}
	return &subscription{sub: sub}, nil
}

// Done is closed when the connection is lost or closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended; nil after Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection.
func (c *Conn) Close() error {
	if c.nc.IsClosed() {
		return stream.ErrClosed
	}
	c.nc.Close()
	c.finish(nil)
	return nil
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return stream.ErrClosed
		}
		return err
	}
	return nil
}
