// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

package livestate

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage matches every inbound payload that failed to parse
	// or validate.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrEngineStopped is returned by queries made while the Engine is not running.
	ErrEngineStopped = errors.New("livestate engine not running")
)

// MalformedMessageError describes why a message on Channel was rejected.
// Field is the offending JSON key, empty when the payload as a whole was
// unreadable.
type MalformedMessageError struct {
	Channel string
	Field   string
	Err     error
}

func (e *MalformedMessageError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s message: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("malformed %s message: field %s: %v", e.Channel, e.Field, e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// Is reports ErrMalformedMessage as a match.
func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}
