// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package changefeed

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Filter restricts a subscription to rows whose Column equals Value. The zero
// Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// Eq returns a column equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

// String renders the filter in the backend's column=eq.value notation.
func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}

// Match evaluates the filter against a JSON row image.
func (f Filter) Match(row json.RawMessage) bool {
	if f.IsZero() {
		return true
	}
	if len(row) == 0 {
		return false
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val == f.Value
	case bool:
		return fmt.Sprint(val) == f.Value
	case float64:
		return fmt.Sprint(val) == f.Value
	default:
		return false
	}
}
