// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package config loads Stellr configuration with koanf.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables (explicitly mapped, see envTransformFunc)
//
// The loaded configuration is validated before it is returned.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Session     SessionConfig     `koanf:"session"`
	Backend     BackendConfig     `koanf:"backend"`
	Changefeed  ChangefeedConfig  `koanf:"changefeed"`
	NATS        NATSConfig        `koanf:"nats"`
	Realtime    RealtimeConfig    `koanf:"realtime"`
	Monitoring  MonitoringConfig  `koanf:"monitoring"`
	Preferences PreferencesConfig `koanf:"preferences"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds the local HTTP API settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SessionConfig identifies the user whose conversations are mirrored.
type SessionConfig struct {
	UserID      string `koanf:"user_id"`      // Derived from the access token when empty
	AccessToken string `koanf:"access_token"` // Backend-issued JWT
}

// BackendConfig points at the backend REST gateway and functions endpoint.
type BackendConfig struct {
	URL             string        `koanf:"url"`
	AnonKey         string        `koanf:"anon_key"`
	Timeout         time.Duration `koanf:"timeout"`
	ProfileCacheTTL time.Duration `koanf:"profile_cache_ttl"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"` // Allowed in half-open state
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// ChangefeedConfig selects the change-feed transport.
type ChangefeedConfig struct {
	Transport     string `koanf:"transport"`      // nats or memory
	SubjectPrefix string `koanf:"subject_prefix"` // Topics are <prefix>.<table>
	BufferSize    int64  `koanf:"buffer_size"`    // memory transport only
}

// NATSConfig holds NATS JetStream settings for the nats transport.
type NATSConfig struct {
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	StreamName       string        `koanf:"stream_name"`
	StreamMaxAge     time.Duration `koanf:"stream_max_age"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
}

// RealtimeConfig tunes typing indicators and presence.
type RealtimeConfig struct {
	TypingDebounce     time.Duration `koanf:"typing_debounce"` // Local keystroke inactivity before stop
	TypingTimeout      time.Duration `koanf:"typing_timeout"`  // Remote typing safety net
	TypingRatePerSec   float64       `koanf:"typing_rate_per_sec"`
	TypingBurst        int           `koanf:"typing_burst"`
	PresenceStaleAfter time.Duration `koanf:"presence_stale_after"` // 5m-15m
}

// MonitoringConfig tunes the monitoring aggregator.
type MonitoringConfig struct {
	ValidationURL          string        `koanf:"validation_url"` // Empty disables the push
	ValidationInterval     time.Duration `koanf:"validation_interval"`
	ValidationTimeout      time.Duration `koanf:"validation_timeout"`
	ValidationSecret       string        `koanf:"validation_secret"` // Enables payload encryption
	EscalationInterval     time.Duration `koanf:"escalation_interval"`
	EscalationAfter        time.Duration `koanf:"escalation_after"`
	AlertRetention         time.Duration `koanf:"alert_retention"`
	SlowOperationThreshold time.Duration `koanf:"slow_operation_threshold"`
	FailedAuthThreshold    int           `koanf:"failed_auth_threshold"`
	FailedAuthWindow       time.Duration `koanf:"failed_auth_window"`
	MemoryThresholdMB      float64       `koanf:"memory_threshold_mb"`
}

// PreferencesConfig holds the local key-value store settings.
type PreferencesConfig struct {
	Path      string        `koanf:"path"`
	InMemory  bool          `koanf:"in_memory"`
	BannerTTL time.Duration `koanf:"banner_ttl"`
}

// SecurityConfig holds token verification and HTTP hardening settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"` // Verifies the session token when set
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address of the HTTP API.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ValidationEnabled reports whether the periodic validation push runs.
func (m MonitoringConfig) ValidationEnabled() bool {
	return m.ValidationURL != ""
}
