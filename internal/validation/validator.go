// Geotrack - Real-time Geospatial Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geotrack

// Package validation wraps a shared go-playground/validator v10 instance.
//
// Both inbound broker payloads and the loaded configuration are checked with
// struct tags. Failures are reported by the field's wire name (its json key,
// else its koanf key) so a malformed message or a bad config file points at
// the key the operator actually wrote.
//
//	type positionWire struct {
//	    DeviceID  string   `json:"deviceId" validate:"required"`
//	    Latitude  *float64 `json:"latitude" validate:"required,latitude"`
//	    Timestamp string   `json:"timestamp" validate:"omitempty,rfc3339"`
//	}
//
//	if verr := validation.ValidateStruct(&w); verr != nil {
//	    return fmt.Errorf("%s: %w", verr.First().Field, verr)
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed constraint.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error holds every failed constraint of one ValidateStruct call, in struct
// field order.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// First returns the first failed constraint, or the zero FieldError.
func (e *Error) First() FieldError {
	if len(e.Fields) == 0 {
		return FieldError{}
	}
	return e.Fields[0]
}

// Has reports whether field failed any constraint.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// GetValidator returns the shared validator, building it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(wireName)
		// Only fails for an empty tag or nil func.
		_ = validate.RegisterValidation("rfc3339", isRFC3339) //nolint:errcheck
	})
	return validate
}

func wireName(fld reflect.StructField) string {
	for _, key := range []string{"json", "koanf"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func isRFC3339(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.RFC3339, fl.Field().String())
	return err == nil
}

// ValidateStruct checks s against its validate tags. It returns nil when s is
// valid.
func ValidateStruct(s interface{}) *Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return out
}

var messages = map[string]string{
	"required":  "%s is required",
	"rfc3339":   "%s must be an RFC3339 timestamp",
	"url":       "%s must be a valid URL",
	"latitude":  "%s must be a latitude between -90 and 90",
	"longitude": "%s must be a longitude between -180 and 180",
	"oneof":     "%s must be one of: %s",
	"gte":       "%s must be >= %s",
	"lte":       "%s must be <= %s",
	"gt":        "%s must be > %s",
	"lt":        "%s must be < %s",
	"ltefield":  "%s must not exceed %s",
	"min":       "%s must be at least %s",
	"max":       "%s must be at most %s",
}

func message(fe validator.FieldError) string {
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(tmpl, fe.Field())
}
