// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package apperrors defines the error taxonomy shared by the conversation
// store, the realtime facade, the monitoring aggregator and the API layer.
//
// Every failure that crosses a package boundary is either a plain wrapped
// error or an *Error carrying a Category. Categories decide how the failure is
// handled: network and validation errors are returned to the caller,
// monitoring errors are logged and swallowed, security errors additionally go
// to the security log channel.
package apperrors

import (
	"errors"
	"fmt"
)

// Category classifies a failure.
type Category string

const (
	// CategoryNetwork covers backend fetch and mutation failures.
	CategoryNetwork Category = "network"
	// CategoryValidation covers rejected input.
	CategoryValidation Category = "validation"
	// CategoryMonitoring covers instrumentation failures. Never propagated.
	CategoryMonitoring Category = "monitoring"
	// CategorySecurity covers auth failures and unauthorized data access.
	CategorySecurity Category = "security"
	// CategoryUnknown is returned by CategoryOf for uncategorized errors.
	CategoryUnknown Category = "unknown"
)

var (
	// ErrNotFound is returned when a conversation, alert or record is unknown.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the session token is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCircuitOpen is returned when the backend circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("backend circuit open")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error is a categorized failure of one operation.
type Error struct {
	Category Category
	// Op names the failing operation, e.g. "rpc unmatch" or "refresh".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps err as a network failure of op.
func Network(op string, err error) error {
	return &Error{Category: CategoryNetwork, Op: op, Err: err}
}

// Validation wraps err as a validation failure of op.
func Validation(op string, err error) error {
	return &Error{Category: CategoryValidation, Op: op, Err: err}
}

// Validationf builds a validation failure from a format string.
func Validationf(op, format string, args ...interface{}) error {
	return &Error{Category: CategoryValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Security wraps err as a security failure of op.
func Security(op string, err error) error {
	return &Error{Category: CategorySecurity, Op: op, Err: err}
}

// Monitoring wraps err as a monitoring failure of op.
func Monitoring(op string, err error) error {
	return &Error{Category: CategoryMonitoring, Op: op, Err: err}
}

// CategoryOf returns the category of the outermost *Error in err's chain.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	if errors.Is(err, ErrUnauthorized) {
		return CategorySecurity
	}
	if errors.Is(err, ErrCircuitOpen) {
		return CategoryNetwork
	}
	return CategoryUnknown
}

// Is reports whether err belongs to category c.
func Is(err error, c Category) bool {
	return CategoryOf(err) == c
}
