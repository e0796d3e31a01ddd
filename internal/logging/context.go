// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// idKey names an identifier carried through a context. The key's string is
// also the log field it is written under.
type idKey string

const (
	correlationIDKey idKey = "correlation_id"
	requestIDKey     idKey = "request_id"
	sessionIDKey     idKey = "session_id"
)

// contextIDs is the order ids appear in log lines.
var contextIDs = [...]idKey{correlationIDKey, requestIDKey, sessionIDKey}

func (k idKey) with(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, k, id)
}

func (k idKey) from(ctx context.Context) string {
	id, _ := ctx.Value(k).(string)
	return id
}

// GenerateCorrelationID returns a short id tying together the log lines of
// one change-feed dispatch or background sweep.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// GenerateRequestID returns a full UUID for HTTP requests.
func GenerateRequestID() string {
	return uuid.NewString()
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return correlationIDKey.with(ctx, id)
}

// ContextWithNewCorrelationID stores a freshly generated correlation id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return correlationIDKey.with(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string { return correlationIDKey.from(ctx) }

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return requestIDKey.with(ctx, id)
}

func RequestIDFromContext(ctx context.Context) string { return requestIDKey.from(ctx) }

// ContextWithSessionID stores the monitoring session id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return sessionIDKey.with(ctx, id)
}

func SessionIDFromContext(ctx context.Context) string { return sessionIDKey.from(ctx) }

// Ctx returns the global logger enriched with the ids found in ctx.
//
//	logging.Ctx(ctx).Info().Msg("conversation refreshed")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith returns a logger context carrying every id present in ctx.
func CtxWith(ctx context.Context) zerolog.Context {
	c := With()
	for _, k := range contextIDs {
		if id := k.from(ctx); id != "" {
			c = c.Str(string(k), id)
		}
	}
	return c
}
