// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is one entry on the security channel.
type SecurityEvent struct {
	// Event names what happened, e.g. "auth_failed" or "data_access_denied".
	Event string
	// UserID is masked before it is written.
	UserID string
	// SessionID is masked before it is written.
	SessionID string
	// Method is the authentication method or access path.
	Method   string
	Resource string
	Success  bool
	Error    string
	// Details are written after sanitization by key name.
	Details map[string]string
}

// SecurityLogger writes security-relevant events on a dedicated component so
// they can be routed separately from general application logs.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("security")}
}

// NewSecurityLoggerWithLogger creates a security logger on top of logger.
//
//nolint:gocritic // zerolog.Logger is a value type
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogEvent writes event. Failed events are logged at warn level.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	status := "success"
	if !event.Success {
		e = l.logger.Warn()
		status = "failed"
	}
	e = e.Str("event", event.Event).Str("status", status)

	if event.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(event.UserID))
	}
	if event.SessionID != "" {
		e = e.Str("session_id", SanitizeToken(event.SessionID))
	}
	if event.Method != "" {
		e = e.Str("method", event.Method)
	}
	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("")
}

// LogAuthentication records an authentication attempt.
func (l *SecurityLogger) LogAuthentication(userID, method string, success bool, reason string) {
	event := "auth_success"
	if !success {
		event = "auth_failed"
	}
	l.LogEvent(&SecurityEvent{
		Event:   event,
		UserID:  userID,
		Method:  method,
		Success: success,
		Error:   reason,
	})
}

// LogDataAccess records an access to user data. Denied access is a failure.
func (l *SecurityLogger) LogDataAccess(userID, resource string, authorized bool) {
	event := "data_access"
	if !authorized {
		event = "data_access_denied"
	}
	l.LogEvent(&SecurityEvent{
		Event:    event,
		UserID:   userID,
		Resource: resource,
		Success:  authorized,
		Error:    "unauthorized",
	})
}

// LogSuspiciousPattern records a detected pattern such as repeated failed logins.
func (l *SecurityLogger) LogSuspiciousPattern(userID, pattern string, count int) {
	l.logger.Warn().
		Str("event", "suspicious_pattern").
		Str("user_id", SanitizeUserID(userID)).
		Str("pattern", pattern).
		Int("count", count).
		Msg("Suspicious security pattern detected")
}

// SanitizeToken keeps the first and last four characters of a token.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks the middle of a user id.
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeEmail keeps two characters of the local part.
func SanitizeEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

var sensitiveErrorWords = []string{"password", "secret", "token", "key", "bearer", "authorization", "cookie"}

// SanitizeError replaces error text that mentions credentials with a generic
// message and truncates the rest.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, w := range sensitiveErrorWords {
		if strings.Contains(lower, w) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"session_id":    true,
}

// SanitizeValue masks v when k names a credential or v looks like an email.
func SanitizeValue(k, v string) string {
	if sensitiveKeys[strings.ToLower(k)] {
		return SanitizeToken(v)
	}
	if strings.Contains(v, "@") && strings.Contains(v, ".") {
		return SanitizeEmail(v)
	}
	return v
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
