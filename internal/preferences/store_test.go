// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package preferences

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/stellr/internal/config"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(config.PreferencesConfig{InMemory: true, BannerTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	c := &clock{now: time.Now().UTC()}
	return s.WithClock(c.Now), c
}

func TestBannerDismissalExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, c := openTestStore(t)

	dismissed, err := s.BannerDismissed(ctx, "user-1")
	if err != nil || dismissed {
		t.Fatalf("BannerDismissed() before dismissal = %v, %v", dismissed, err)
	}

	if err := s.DismissBanner(ctx, "user-1"); err != nil {
		t.Fatalf("DismissBanner() error = %v", err)
	}
	st, err := s.Banner(ctx, "user-1")
	if err != nil || !st.Dismissed || st.ExpiresAt == nil {
		t.Fatalf("Banner() = %+v, %v", st, err)
	}
	if !st.ExpiresAt.Equal(st.DismissedAt.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want DismissedAt + 24h", st.ExpiresAt)
	}

	if other, _ := s.BannerDismissed(ctx, "user-2"); other {
		t.Error("dismissal leaked to another user")
	}

	c.now = c.now.Add(23 * time.Hour)
	if dismissed, _ := s.BannerDismissed(ctx, "user-1"); !dismissed {
		t.Error("dismissal expired early")
	}
	c.now = c.now.Add(time.Hour)
	if dismissed, _ := s.BannerDismissed(ctx, "user-1"); dismissed {
		t.Error("dismissal still active after 24h")
	}
}

func TestResetBanner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTestStore(t)

	if err := s.ResetBanner(ctx, "user-1"); err != nil {
		t.Fatalf("ResetBanner() on missing key = %v", err)
	}
	_ = s.DismissBanner(ctx, "user-1")
	if err := s.ResetBanner(ctx, "user-1"); err != nil {
		t.Fatalf("ResetBanner() error = %v", err)
	}
	if dismissed, _ := s.BannerDismissed(ctx, "user-1"); dismissed {
		t.Error("banner still dismissed after reset")
	}
}

func TestAccessibilitySettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTestStore(t)

	_ = s.SetAccessibility(ctx, "user-1", "reduce_motion", true)
	_ = s.SetAccessibility(ctx, "user-1", "high_contrast", false)
	_ = s.SetAccessibility(ctx, "user-10", "reduce_motion", false)

	got, err := s.Accessibility(ctx, "user-1")
	if err != nil {
		t.Fatalf("Accessibility() error = %v", err)
	}
	if len(got) != 2 || !got["reduce_motion"] || got["high_contrast"] {
		t.Errorf("Accessibility() = %v", got)
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := s.DismissBanner(context.Background(), "user-1"); !errors.Is(err, ErrClosed) {
		t.Errorf("DismissBanner() after close = %v, want ErrClosed", err)
	}
}
