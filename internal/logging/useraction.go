// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package logging

import (
	"github.com/rs/zerolog"
)

// UserActionLogger records user-facing actions (archive, unmatch, reaction,
// presence change) on the user_action component.
type UserActionLogger struct {
	logger zerolog.Logger
}

// NewUserActionLogger creates a user-action logger on top of the global logger.
func NewUserActionLogger() *UserActionLogger {
	return &UserActionLogger{logger: WithComponent("user_action")}
}

// NewUserActionLoggerWithLogger creates a user-action logger on top of logger.
//
//nolint:gocritic // zerolog.Logger is a value type
func NewUserActionLoggerWithLogger(logger zerolog.Logger) *UserActionLogger {
	return &UserActionLogger{logger: logger.With().Str("component", "user_action").Logger()}
}

// Log writes one action. Field values are sanitized by key name.
func (l *UserActionLogger) Log(action, userID string, fields map[string]string) {
	if l == nil {
		return
	}
	e := l.logger.Info().Str("action", action)
	if userID != "" {
		e = e.Str("user_id", SanitizeUserID(userID))
	}
	for k, v := range fields {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("User action")
}
