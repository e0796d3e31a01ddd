// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package preferences persists small per-user flags in BadgerDB: the
// dismissed state of the unmatch banner and accessibility settings.
//
// The banner flag is timestamped and expires after the configured TTL. The
// expiry is checked against the stored timestamp on read, and the entry also
// carries a Badger TTL so garbage collection reclaims it.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stellr/internal/config"
	"github.com/tomtom215/stellr/internal/logging"
	"github.com/tomtom215/stellr/internal/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("preference store closed")

const (
	prefixBanner        = "banner:"
	prefixAccessibility = "a11y:"
)

type bannerRecord struct {
	DismissedAt time.Time `json:"dismissed_at"`
}

// BannerState is the dismissed state of the unmatch banner.
type BannerState struct {
	Dismissed   bool       `json:"dismissed"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Store is a BadgerDB-backed preference store.
type Store struct {
	db        *badger.DB
	bannerTTL time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store described by cfg.
func Open(cfg config.PreferencesConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}

	s := &Store{
		db:        db,
		bannerTTL: cfg.BannerTTL,
		now:       time.Now,
		logger:    logging.WithComponent("preferences"),
	}
	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("banner_ttl", cfg.BannerTTL).
		Msg("Preference store opened")
	return s, nil
}

// WithClock replaces time.Now.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PreferenceOperations.WithLabelValues(op, outcome).Inc()
}

// DismissBanner marks the banner dismissed for userID.
func (s *Store) DismissBanner(ctx context.Context, userID string) (err error) {
	defer func() { record("dismiss_banner", err) }()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(bannerRecord{DismissedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal banner record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(prefixBanner+userID), data).WithTTL(s.bannerTTL))
	})
	if err != nil {
		return fmt.Errorf("write banner record: %w", err)
	}
	s.logger.Debug().Str("user_id", logging.SanitizeUserID(userID)).Msg("Banner dismissed")
	return nil
}

// Banner returns the banner state for userID. An expired dismissal reads as
// not dismissed.
func (s *Store) Banner(ctx context.Context, userID string) (state BannerState, err error) {
	defer func() { record("get_banner", err) }()
	if err := s.checkOpen(); err != nil {
		return BannerState{}, err
	}
	if err := ctx.Err(); err != nil {
		return BannerState{}, err
	}

	var rec bannerRecord
	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixBanner + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return BannerState{}, fmt.Errorf("read banner record: %w", err)
	}
	if !found {
		return BannerState{}, nil
	}

	expires := rec.DismissedAt.Add(s.bannerTTL)
	if !s.now().Before(expires) {
		return BannerState{}, nil
	}
	return BannerState{Dismissed: true, DismissedAt: &rec.DismissedAt, ExpiresAt: &expires}, nil
}

// BannerDismissed reports whether the banner is currently dismissed.
func (s *Store) BannerDismissed(ctx context.Context, userID string) (bool, error) {
	st, err := s.Banner(ctx, userID)
	return st.Dismissed, err
}

// ResetBanner clears the dismissal for userID.
func (s *Store) ResetBanner(ctx context.Context, userID string) (err error) {
	defer func() { record("reset_banner", err) }()
	return s.delete(ctx, prefixBanner+userID)
}

// SetAccessibility stores one accessibility setting for userID.
func (s *Store) SetAccessibility(ctx context.Context, userID, feature string, enabled bool) (err error) {
	defer func() { record("set_accessibility", err) }()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	val := []byte{0}
	if enabled {
		val[0] = 1
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixAccessibility+userID+":"+feature), val)
	})
	if err != nil {
		return fmt.Errorf("write accessibility setting: %w", err)
	}
	return nil
}

// Accessibility returns every stored accessibility setting for userID.
func (s *Store) Accessibility(ctx context.Context, userID string) (settings map[string]bool, err error) {
	defer func() { record("get_accessibility", err) }()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(prefixAccessibility + userID + ":")
	settings = make(map[string]bool)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			feature := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				settings[feature] = len(val) == 1 && val[0] == 1
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read accessibility settings: %w", err)
	}
	return settings, nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close preference store: %w", err)
	}
	return nil
}
