// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stellr/config.yaml",
	"/etc/stellr/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3870,
			Host:            "127.0.0.1",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Backend: BackendConfig{
			Timeout:                 15 * time.Second,
			ProfileCacheTTL:         5 * time.Minute,
			BreakerMaxRequests:      3,
			BreakerInterval:         30 * time.Second,
			BreakerTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Changefeed: ChangefeedConfig{
			Transport:     "nats",
			SubjectPrefix: "changefeed",
			BufferSize:    256,
		},
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			Host:             "127.0.0.1",
			Port:             4222,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        256 << 20, // 256MB
			MaxStore:         1 << 30,   // 1GB
			StreamName:       "CHANGEFEED",
			StreamMaxAge:     24 * time.Hour,
			DurableName:      "stellr",
			SubscribersCount: 1, // Per-table ordering
			AckWaitTimeout:   30 * time.Second,
			MaxDeliver:       5,
			MaxReconnects:    -1, // Unlimited
			ReconnectWait:    2 * time.Second,
		},
		Realtime: RealtimeConfig{
			TypingDebounce:     time.Second,
			TypingTimeout:      5 * time.Second,
			TypingRatePerSec:   2,
			TypingBurst:        3,
			PresenceStaleAfter: 10 * time.Minute,
		},
		Monitoring: MonitoringConfig{
			ValidationInterval:     5 * time.Minute,
			ValidationTimeout:      10 * time.Second,
			EscalationInterval:     time.Minute,
			EscalationAfter:        5 * time.Minute,
			AlertRetention:         24 * time.Hour,
			SlowOperationThreshold: 3 * time.Second,
			FailedAuthThreshold:    3,
			FailedAuthWindow:       5 * time.Minute,
			MemoryThresholdMB:      512,
		},
		Preferences: PreferencesConfig{
			Path:      "/data/preferences",
			InMemory:  false,
			BannerTTL: 24 * time.Hour,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then the
// environment, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated environment values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if len(values) == 0 {
			continue
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Session
	"stellr_user_id":      "session.user_id",
	"stellr_access_token": "session.access_token",

	// Backend
	"stellr_backend_url":               "backend.url",
	"stellr_backend_anon_key":          "backend.anon_key",
	"stellr_backend_timeout":           "backend.timeout",
	"stellr_profile_cache_ttl":         "backend.profile_cache_ttl",
	"stellr_breaker_max_requests":      "backend.breaker_max_requests",
	"stellr_breaker_interval":          "backend.breaker_interval",
	"stellr_breaker_timeout":           "backend.breaker_timeout",
	"stellr_breaker_failure_threshold": "backend.breaker_failure_threshold",

	// Change feed
	"stellr_changefeed_transport":   "changefeed.transport",
	"stellr_changefeed_prefix":      "changefeed.subject_prefix",
	"stellr_changefeed_buffer_size": "changefeed.buffer_size",

	// NATS
	"nats_url":               "nats.url",
	"nats_embedded":          "nats.embedded_server",
	"nats_host":              "nats.host",
	"nats_port":              "nats.port",
	"nats_store_dir":         "nats.store_dir",
	"nats_max_memory":        "nats.max_memory",
	"nats_max_store":         "nats.max_store",
	"nats_stream_name":       "nats.stream_name",
	"nats_stream_max_age":    "nats.stream_max_age",
	"nats_durable_name":      "nats.durable_name",
	"nats_subscribers_count": "nats.subscribers_count",
	"nats_ack_wait_timeout":  "nats.ack_wait_timeout",
	"nats_max_deliver":       "nats.max_deliver",
	"nats_max_reconnects":    "nats.max_reconnects",
	"nats_reconnect_wait":    "nats.reconnect_wait",

	// Realtime
	"stellr_typing_debounce":      "realtime.typing_debounce",
	"stellr_typing_timeout":       "realtime.typing_timeout",
	"stellr_typing_rate_per_sec":  "realtime.typing_rate_per_sec",
	"stellr_typing_burst":         "realtime.typing_burst",
	"stellr_presence_stale_after": "realtime.presence_stale_after",

	// Monitoring
	"stellr_monitoring_validation_url":      "monitoring.validation_url",
	"stellr_monitoring_validation_interval": "monitoring.validation_interval",
	"stellr_monitoring_validation_timeout":  "monitoring.validation_timeout",
	"stellr_monitoring_validation_secret":   "monitoring.validation_secret",
	"stellr_monitoring_escalation_interval": "monitoring.escalation_interval",
	"stellr_monitoring_escalation_after":    "monitoring.escalation_after",
	"stellr_monitoring_alert_retention":     "monitoring.alert_retention",
	"stellr_monitoring_slow_operation":      "monitoring.slow_operation_threshold",
	"stellr_monitoring_failed_auth_limit":   "monitoring.failed_auth_threshold",
	"stellr_monitoring_failed_auth_window":  "monitoring.failed_auth_window",
	"stellr_monitoring_memory_threshold_mb": "monitoring.memory_threshold_mb",

	// Preferences
	"stellr_preferences_path":      "preferences.path",
	"stellr_preferences_in_memory": "preferences.in_memory",
	"stellr_banner_ttl":            "preferences.banner_ttl",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path, or ""
// to skip it so unrelated variables never leak into the configuration.
//
//   - HTTP_PORT -> server.port
//   - STELLR_MONITORING_VALIDATION_URL -> monitoring.validation_url
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
