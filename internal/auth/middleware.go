// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/logging"
)

type contextKey string

// ClaimsContextKey stores the verified claims of the caller.
const ClaimsContextKey contextKey = "claims"

// AuthTracker receives every authentication outcome.
type AuthTracker interface {
	TrackAuthentication(userID string, success bool, reason string)
}

// Middleware requires callers of the local API to present a token for the
// session user.
type Middleware struct {
	verifier      *TokenVerifier
	sessionUserID string
	tracker       AuthTracker
	security      *logging.SecurityLogger
}

// NewMiddleware returns the API guard. tracker may be nil.
func NewMiddleware(v *TokenVerifier, sessionUserID string, tracker AuthTracker) *Middleware {
	return &Middleware{
		verifier:      v,
		sessionUserID: sessionUserID,
		tracker:       tracker,
		security:      logging.NewSecurityLogger(),
	}
}

// Enabled reports whether requests are checked. Without a secret the API is
// open and must stay bound to loopback.
func (m *Middleware) Enabled() bool {
	return m.verifier.Verifies()
}

// RequireSession rejects requests without a valid bearer token for the
// session user.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		claims, err := m.verifier.Parse(token)
		if err != nil {
			m.fail(w, "", err.Error())
			return
		}
		if claims.Subject != m.sessionUserID {
			m.fail(w, claims.Subject, "token subject is not the session user")
			return
		}

		m.security.LogAuthentication(claims.Subject, "bearer", true, "")
		if m.tracker != nil {
			m.tracker.TrackAuthentication(claims.Subject, true, "")
		}
		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) fail(w http.ResponseWriter, userID, reason string) {
	m.security.LogAuthentication(userID, "bearer", false, reason)
	if m.tracker != nil {
		m.tracker.TrackAuthentication(userID, false, reason)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="stellr"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"status":"error","error":{"code":"UNAUTHORIZED","message":"` + apperrors.ErrUnauthorized.Error() + `"}}`))
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// Browsers cannot set headers on WebSocket upgrades.
	return r.URL.Query().Get("access_token")
}
