// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stream

import (
	"context"
	"errors"
)

var (
	// ErrTransport wraps every dial, subscribe and drop cause.
	ErrTransport = errors.New("stream: transport error")

	// ErrClosed is returned when using a connection after teardown.
	ErrClosed = errors.New("stream: connection closed")
)

// Handler receives the raw payload of one message.
type Handler func(payload []byte)

// Transport opens connections to the upstream broker.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one established broker connection.
type Conn interface {
	// Subscribe delivers every message on channel to h, in arrival order.
	Subscribe(channel string, h Handler) (Subscription, error)

	// Done is closed when the connection drops or is closed.
	Done() <-chan struct{}

	// Err reports why Done was closed; nil after a clean Close.
	Err() error

	Close() error
}

// Subscription is a handle to an active channel subscription.
type Subscription interface {
	Unsubscribe() error
}

// Sink consumes what the Manager receives.
type Sink interface {
	HandlePosition(payload []byte)
	HandleGeofence(payload []byte)
	HandleState(state State)
}
