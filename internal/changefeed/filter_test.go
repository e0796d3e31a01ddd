// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package changefeed

import "testing"

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		row    string
		want   bool
	}{
		{"zero filter", Filter{}, `{"id":"x"}`, true},
		{"zero filter empty row", Filter{}, ``, true},
		{"string equal", Eq("user_id", "u1"), `{"user_id":"u1"}`, true},
		{"string differs", Eq("user_id", "u1"), `{"user_id":"u2"}`, false},
		{"missing column", Eq("user_id", "u1"), `{"id":"x"}`, false},
		{"null column", Eq("user_id", "u1"), `{"user_id":null}`, false},
		{"number", Eq("age", "30"), `{"age":30}`, true},
		{"bool", Eq("is_typing", "true"), `{"is_typing":true}`, true},
		{"invalid json", Eq("id", "x"), `{`, false},
		{"empty row", Eq("id", "x"), ``, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Match([]byte(tt.row)); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"insert", Event{Table: TableMessages, Type: Insert, New: []byte(`{}`)}, false},
		{"insert without row", Event{Table: TableMessages, Type: Insert}, true},
		{"delete with old row", Event{Table: TableConversations, Type: Delete, Old: []byte(`{}`)}, false},
		{"delete without old row", Event{Table: TableConversations, Type: Delete, New: []byte(`{}`)}, true},
		{"broadcast", Event{Table: ChannelTyping, Type: Broadcast, New: []byte(`{}`)}, false},
		{"unknown table", Event{Table: "profiles", Type: Insert, New: []byte(`{}`)}, true},
		{"unknown type", Event{Table: TableMessages, Type: "TRUNCATE", New: []byte(`{}`)}, true},
	}

	for _, tt := range tests {
		tt := tt
		if err := tt.event.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
