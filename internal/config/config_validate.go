// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minPresenceStaleAfter = 5 * time.Minute
	maxPresenceStaleAfter = 15 * time.Minute
	minValidationSecret   = 16
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateChangefeed(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateMonitoring(); err != nil {
		return err
	}
	if err := c.validatePreferences(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.UserID == "" && c.Session.AccessToken == "" {
		return fmt.Errorf("STELLR_USER_ID or STELLR_ACCESS_TOKEN is required")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("STELLR_BACKEND_URL is required")
	}
	if err := validateHTTPURL(c.Backend.URL, "STELLR_BACKEND_URL"); err != nil {
		return err
	}
	if c.Backend.BreakerFailureThreshold == 0 {
		return fmt.Errorf("STELLR_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateChangefeed() error {
	switch c.Changefeed.Transport {
	case "memory":
		return nil
	case "nats":
		if c.NATS.EmbeddedServer {
			return nil
		}
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED=false")
		}
		return validateNATSURL(c.NATS.URL)
	default:
		return fmt.Errorf("STELLR_CHANGEFEED_TRANSPORT must be nats or memory, got %q", c.Changefeed.Transport)
	}
}

func (c *Config) validateRealtime() error {
	r := c.Realtime
	if r.TypingDebounce <= 0 {
		return fmt.Errorf("STELLR_TYPING_DEBOUNCE must be positive")
	}
	if r.TypingTimeout < r.TypingDebounce {
		return fmt.Errorf("STELLR_TYPING_TIMEOUT must not be shorter than STELLR_TYPING_DEBOUNCE")
	}
	if r.TypingRatePerSec <= 0 || r.TypingBurst < 1 {
		return fmt.Errorf("STELLR_TYPING_RATE_PER_SEC and STELLR_TYPING_BURST must be positive")
	}
	if r.PresenceStaleAfter < minPresenceStaleAfter || r.PresenceStaleAfter > maxPresenceStaleAfter {
		return fmt.Errorf("STELLR_PRESENCE_STALE_AFTER must be between %s and %s, got %s",
			minPresenceStaleAfter, maxPresenceStaleAfter, r.PresenceStaleAfter)
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	m := c.Monitoring
	if m.EscalationInterval <= 0 || m.EscalationAfter <= 0 {
		return fmt.Errorf("STELLR_MONITORING_ESCALATION_INTERVAL and _AFTER must be positive")
	}
	if m.AlertRetention <= 0 {
		return fmt.Errorf("STELLR_MONITORING_ALERT_RETENTION must be positive")
	}
	if m.FailedAuthThreshold < 1 || m.FailedAuthWindow <= 0 {
		return fmt.Errorf("failed authentication threshold and window must be positive")
	}
	if !m.ValidationEnabled() {
		return nil
	}
	if err := validateEndpointURL(m.ValidationURL, "STELLR_MONITORING_VALIDATION_URL"); err != nil {
		return err
	}
	if m.ValidationInterval <= 0 {
		return fmt.Errorf("STELLR_MONITORING_VALIDATION_INTERVAL must be positive")
	}
	if m.ValidationSecret != "" && len(m.ValidationSecret) < minValidationSecret {
		return fmt.Errorf("STELLR_MONITORING_VALIDATION_SECRET must be at least %d characters", minValidationSecret)
	}
	return nil
}

func (c *Config) validatePreferences() error {
	if !c.Preferences.InMemory && c.Preferences.Path == "" {
		return fmt.Errorf("STELLR_PREFERENCES_PATH is required unless STELLR_PREFERENCES_IN_MEMORY=true")
	}
	if c.Preferences.BannerTTL <= 0 {
		return fmt.Errorf("STELLR_BANNER_TTL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL accepts http(s) base URLs without path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, u.Path)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", fieldName)
	}
	return nil
}

// validateEndpointURL accepts any http(s) URL with a host, path included.
func validateEndpointURL(rawURL, fieldName string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}

func validateNATSURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("NATS_URL failed to parse: %w", err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("NATS_URL scheme must be nats, tls, ws, or wss, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("NATS_URL host is required")
	}
	return nil
}
