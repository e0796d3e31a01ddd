// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/monitoring"
)

// Error codes returned in the envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidJSON  = "INVALID_JSON"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeBackend      = "BACKEND_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrMutationFailed is reported when a conversation mutation was rejected.
// The store keeps its state and the cause is logged there.
var ErrMutationFailed = errors.New("conversation mutation failed")

// statusFor maps an error onto an HTTP status and envelope code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, monitoring.ErrInvalidTransition):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, apperrors.ErrCircuitOpen):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	}

	switch apperrors.CategoryOf(err) {
	case apperrors.CategoryValidation:
		return http.StatusBadRequest, CodeValidation
	case apperrors.CategorySecurity:
		return http.StatusForbidden, CodeForbidden
	case apperrors.CategoryNetwork:
		return http.StatusBadGateway, CodeBackend
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
