// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/tomtom215/stellr/internal/config"
)

// PublisherConfig holds NATS publisher settings.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool
}

// SubscriberConfig holds NATS JetStream subscriber settings.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	StreamName       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxDeliver       int
	MaxAckPending    int
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// StreamConfig holds the JetStream stream definition.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Cyclic period for clearing counts in closed state
	Timeout          time.Duration // Open state duration before half-open
	FailureThreshold uint32        // Consecutive failures before opening

	// IsSuccessful decides which errors count as failures. Nil counts every
	// non-nil error.
	IsSuccessful func(err error) bool
}

// DefaultCircuitBreakerConfig returns defaults suitable for publish paths.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// TopicFor returns the subject that carries events for table.
func TopicFor(prefix, table string) string {
	return prefix + "." + table
}

// NewPublisherConfig derives publisher settings from the NATS section.
func NewPublisherConfig(url string, n *config.NATSConfig) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    n.MaxReconnects,
		ReconnectWait:    n.ReconnectWait,
		ReconnectBuffer:  8 << 20, // 8MB
		EnableTrackMsgID: true,
	}
}

// NewSubscriberConfig derives subscriber settings from the NATS section.
func NewSubscriberConfig(url string, n *config.NATSConfig) *SubscriberConfig {
	return &SubscriberConfig{
		URL:              url,
		DurableName:      n.DurableName,
		StreamName:       n.StreamName,
		SubscribersCount: n.SubscribersCount,
		AckWaitTimeout:   n.AckWaitTimeout,
		CloseTimeout:     10 * time.Second,
		MaxDeliver:       n.MaxDeliver,
		MaxAckPending:    n.SubscribersCount,
		MaxReconnects:    n.MaxReconnects,
		ReconnectWait:    n.ReconnectWait,
	}
}

// NewServerConfig derives embedded server settings from the NATS section.
func NewServerConfig(n *config.NATSConfig) *ServerConfig {
	return &ServerConfig{
		Host:              n.Host,
		Port:              n.Port,
		StoreDir:          n.StoreDir,
		JetStreamMaxMem:   n.MaxMemory,
		JetStreamMaxStore: n.MaxStore,
	}
}

// NewStreamConfig builds a stream capturing every table subject under prefix.
func NewStreamConfig(prefix string, n *config.NATSConfig) *StreamConfig {
	return &StreamConfig{
		Name:            n.StreamName,
		Subjects:        []string{prefix + ".>"},
		MaxAge:          n.StreamMaxAge,
		MaxBytes:        n.MaxStore,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// Validate checks the stream definition.
func (c *StreamConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: stream name is required", ErrInvalidConfig)
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("%w: at least one subject is required", ErrInvalidConfig)
	}
	if c.Replicas < 1 {
		return fmt.Errorf("%w: replicas must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the subscriber settings.
func (c *SubscriberConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: subscriber URL is required", ErrInvalidConfig)
	}
	if c.SubscribersCount < 1 {
		return fmt.Errorf("%w: subscribers count must be at least 1", ErrInvalidConfig)
	}
	return nil
}
