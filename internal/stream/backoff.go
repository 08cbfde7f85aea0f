// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package stream

import (
	"math/rand/v2"
	"time"
)

// Backoff computes exponentially growing reconnect delays.
// It is not safe for concurrent use.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	current    time.Duration
}

// NewBackoff returns a Backoff starting at initial, multiplying by multiplier
// after every Next, capped at max. jitter in [0,1] adds up to that fraction of
// the delay at random.
func NewBackoff(initial, maxDelay time.Duration, multiplier, jitter float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	if multiplier < 1 {
		multiplier = 1
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Backoff{
		initial:    initial,
		max:        maxDelay,
		multiplier: multiplier,
		jitter:     jitter,
		current:    initial,
	}
}

// Next returns the delay before the next attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	delay := b.current

	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max || next < b.current {
		next = b.max
	}
	b.current = next

	if b.jitter > 0 {
		delay += time.Duration(rand.Float64() * b.jitter * float64(delay)) //nolint:gosec // jitter needs no crypto randomness
	}
	return delay
}

// Reset restarts the sequence at the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
