// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

const (
	validationKeyInfo = "stellr-monitoring-validation"
	maxResponseBytes  = 64 << 10
)

// ValidationPayload is posted to the validation endpoint. Exactly one of
// Metrics and EncryptedData is set.
type ValidationPayload struct {
	Timestamp     int64           `json:"timestamp"` // Unix milliseconds
	SessionID     string          `json:"sessionId"`
	Metrics       json.RawMessage `json:"metrics,omitempty"`
	EncryptedData string          `json:"encryptedData,omitempty"` // base64(nonce || ciphertext)
	Checksum      string          `json:"checksum"`                // hex SHA-256 of the plaintext metrics
}

// ValidationResponse is the endpoint's verdict.
type ValidationResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// SnapshotSource provides the state to push.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Pusher periodically posts a monitoring snapshot to an external
// validation endpoint.
type Pusher struct {
	cfg       config.MonitoringConfig
	sessionID string
	source    SnapshotSource
	client    *http.Client
	now       func() time.Time
	key       []byte // nil disables encryption
	logger    zerolog.Logger
}

// NewPusher returns a pusher for cfg. A configured secret enables payload
// encryption.
func NewPusher(cfg config.MonitoringConfig, sessionID string, source SnapshotSource) (*Pusher, error) {
	timeout := cfg.ValidationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Pusher{
		cfg:       cfg,
		sessionID: sessionID,
		source:    source,
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
		logger:    logging.WithComponent("monitoring-validation"),
	}
	if cfg.ValidationSecret != "" {
		key, err := deriveKey(cfg.ValidationSecret)
		if err != nil {
			return nil, apperrors.Monitoring("monitoring.NewPusher", err)
		}
		p.key = key
	}
	return p, nil
}

// WithHTTPClient replaces the HTTP client.
func (p *Pusher) WithHTTPClient(c *http.Client) *Pusher {
	p.client = c
	return p
}

// WithClock replaces time.Now.
func (p *Pusher) WithClock(now func() time.Time) *Pusher {
	p.now = now
	return p
}

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(validationKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive validation key: %w", err)
	}
	return key, nil
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// seal encrypts plaintext with AES-256-GCM, binding the session id as
// additional data.
func seal(key, plaintext []byte, sessionID string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := gcm.Seal(nonce, nonce, plaintext, []byte(sessionID))
	return base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func open(key []byte, encoded, sessionID string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, []byte(sessionID))
}

// Payload builds the next payload from the current snapshot.
func (p *Pusher) Payload() (ValidationPayload, error) {
	data, err := json.Marshal(p.source.Snapshot())
	if err != nil {
		return ValidationPayload{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	payload := ValidationPayload{
		Timestamp: p.now().UnixMilli(),
		SessionID: p.sessionID,
		Checksum:  Checksum(data),
	}
	if p.key == nil {
		payload.Metrics = data
		return payload, nil
	}
	enc, err := seal(p.key, data, p.sessionID)
	if err != nil {
		return ValidationPayload{}, fmt.Errorf("encrypt snapshot: %w", err)
	}
	payload.EncryptedData = enc
	return payload, nil
}

// Push posts one payload and returns the endpoint's verdict. A not-valid
// verdict is logged, not returned as an error.
func (p *Pusher) Push(ctx context.Context) (ValidationResponse, error) {
	resp, err := p.push(ctx)
	switch {
	case err != nil:
		metrics.MonitoringValidationPushes.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Msg("Validation push failed")
	case !resp.Valid:
		metrics.MonitoringValidationPushes.WithLabelValues("invalid").Inc()
		p.logger.Warn().Str("reason", resp.Reason).Msg("Monitoring data rejected by validation endpoint")
	default:
		metrics.MonitoringValidationPushes.WithLabelValues("valid").Inc()
		p.logger.Debug().Msg("Monitoring data validated")
	}
	return resp, err
}

func (p *Pusher) push(ctx context.Context) (ValidationResponse, error) {
	const op = "monitoring.Push"

	payload, err := p.Payload()
	if err != nil {
		return ValidationResponse{}, apperrors.Monitoring(op, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ValidationResponse{}, apperrors.Monitoring(op, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ValidationURL, bytes.NewReader(body))
	if err != nil {
		return ValidationResponse{}, apperrors.Monitoring(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ValidationResponse{}, apperrors.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ValidationResponse{}, apperrors.Network(op, fmt.Errorf("validation endpoint returned status %d", resp.StatusCode))
	}

	var out ValidationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return ValidationResponse{}, apperrors.Monitoring(op, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// Serve pushes every ValidationInterval until ctx is canceled. Failures
// never stop the loop.
func (p *Pusher) Serve(ctx context.Context) error {
	interval := p.cfg.ValidationInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = p.Push(ctx)
		}
	}
}

func (p *Pusher) String() string {
	return "monitoring-validation-pusher"
}
