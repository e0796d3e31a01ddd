// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/stellr/internal/apperrors"
)

// Claims are the backend access-token claims used here.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier parses access tokens.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenVerifier returns a verifier. An empty secret disables signature
// verification; expiry is still enforced.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verifies reports whether signatures are checked.
func (v *TokenVerifier) Verifies() bool {
	return len(v.secret) > 0
}

// Parse validates tokenString and returns its claims. Failures wrap
// apperrors.ErrUnauthorized in a security error.
func (v *TokenVerifier) Parse(tokenString string) (*Claims, error) {
	const op = "auth.Parse"
	if tokenString == "" {
		return nil, apperrors.Security(op, fmt.Errorf("empty token: %w", apperrors.ErrUnauthorized))
	}

	claims := &Claims{}
	if v.Verifies() {
		token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		})
		if err != nil {
			return nil, apperrors.Security(op, fmt.Errorf("%s: %w", reason(err), apperrors.ErrUnauthorized))
		}
		if !token.Valid {
			return nil, apperrors.Security(op, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized))
		}
	} else {
		if _, _, err := v.parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, apperrors.Security(op, fmt.Errorf("malformed token: %w", apperrors.ErrUnauthorized))
		}
		if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Add(30*time.Second)) {
			return nil, apperrors.Security(op, fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized))
		}
	}

	if claims.Subject == "" {
		return nil, apperrors.Security(op, fmt.Errorf("token has no subject: %w", apperrors.ErrUnauthorized))
	}
	return claims, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	default:
		return "invalid token"
	}
}
