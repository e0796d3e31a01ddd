// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/config"
)

// Session identifies the user this process mirrors.
type Session struct {
	ID          string // Random per process, reported to the validation endpoint
	UserID      string
	AccessToken string
	ExpiresAt   time.Time // Zero when no token is configured
}

// ResolveSession derives the session from configuration. With an access
// token the user id comes from its subject and must agree with an explicitly
// configured user id.
func ResolveSession(cfg *config.SessionConfig, v *TokenVerifier) (*Session, error) {
	s := &Session{ID: uuid.New().String(), UserID: cfg.UserID}
	if cfg.AccessToken == "" {
		if s.UserID == "" {
			return nil, apperrors.Validationf("auth.ResolveSession", "no user id or access token configured")
		}
		return s, nil
	}

	claims, err := v.Parse(cfg.AccessToken)
	if err != nil {
		return nil, err
	}
	if s.UserID != "" && s.UserID != claims.Subject {
		return nil, apperrors.Security("auth.ResolveSession",
			fmt.Errorf("configured user id does not match token subject: %w", apperrors.ErrUnauthorized))
	}
	s.UserID = claims.Subject
	s.AccessToken = cfg.AccessToken
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
