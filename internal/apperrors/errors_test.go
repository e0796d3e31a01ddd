// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"plain", base, CategoryUnknown},
		{"network", Network("rpc unmatch", base), CategoryNetwork},
		{"wrapped network", fmt.Errorf("delete: %w", Network("rpc delete-conversation", base)), CategoryNetwork},
		{"validation", Validationf("archive", "id required"), CategoryValidation},
		{"security", Security("auth", base), CategorySecurity},
		{"monitoring", Monitoring("push", base), CategoryMonitoring},
		{"unauthorized sentinel", fmt.Errorf("token: %w", ErrUnauthorized), CategorySecurity},
		{"circuit open sentinel", ErrCircuitOpen, CategoryNetwork},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	t.Parallel()

	err := Network("rpc unmatch", ErrCircuitOpen)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("expected errors.Is to see the wrapped sentinel")
	}
	if got := err.Error(); got != "rpc unmatch: network error: backend circuit open" {
		t.Errorf("unexpected message %q", got)
	}
	if !Is(err, CategoryNetwork) {
		t.Error("expected Is to match network")
	}

	noOp := &Error{Category: CategoryValidation, Err: errors.New("bad")}
	if got := noOp.Error(); got != "validation error: bad" {
		t.Errorf("unexpected message %q", got)
	}
}
