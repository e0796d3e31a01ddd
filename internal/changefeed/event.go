// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package changefeed

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert    EventType = "INSERT"
	Update    EventType = "UPDATE"
	Delete    EventType = "DELETE"
	Broadcast EventType = "BROADCAST" // Ephemeral channel message, no row behind it
)

// Tables carried by the change feed.
const (
	TableMessages         = "messages"
	TableConversations    = "conversations"
	TableUserPresence     = "user_presence"
	TableMessageReactions = "message_reactions"
	ChannelTyping         = "typing"
)

// Tables lists every table the client consumes.
var Tables = []string{
	TableMessages,
	TableConversations,
	TableUserPresence,
	TableMessageReactions,
	ChannelTyping,
}

// KnownTable reports whether table is carried by the feed.
func KnownTable(table string) bool {
	for _, t := range Tables {
		if t == table {
			return true
		}
	}
	return false
}

// Event is one row change. Old is empty for inserts and New is empty for
// deletes.
type Event struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	Old             json.RawMessage `json:"old,omitempty"`
	New             json.RawMessage `json:"new,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// DecodeNew unmarshals the new row image into v.
func (e Event) DecodeNew(v interface{}) error {
	if len(e.New) == 0 {
		return fmt.Errorf("%s %s event has no new row", e.Table, e.Type)
	}
	return json.Unmarshal(e.New, v)
}

// DecodeOld unmarshals the old row image into v.
func (e Event) DecodeOld(v interface{}) error {
	if len(e.Old) == 0 {
		return fmt.Errorf("%s %s event has no old row", e.Table, e.Type)
	}
	return json.Unmarshal(e.Old, v)
}

// row returns the image filters are evaluated against: the old row for
// deletes, the new row otherwise.
func (e Event) row() json.RawMessage {
	if e.Type == Delete {
		return e.Old
	}
	return e.New
}

// Validate checks the event before it is published.
func (e Event) Validate() error {
	if !KnownTable(e.Table) {
		return fmt.Errorf("unknown table %q", e.Table)
	}
	switch e.Type {
	case Insert, Update:
		if len(e.New) == 0 {
			return fmt.Errorf("%s event requires a new row", e.Type)
		}
	case Delete:
		if len(e.Old) == 0 {
			return fmt.Errorf("DELETE event requires an old row")
		}
	case Broadcast:
		if len(e.New) == 0 {
			return fmt.Errorf("BROADCAST event requires a payload")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}
