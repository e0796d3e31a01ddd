// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package backend

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/stellr/internal/cache"
	"github.com/tomtom215/stellr/internal/metrics"
	"github.com/tomtom215/stellr/internal/models"
)

// ProfileLookup resolves a user profile.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// CachedProfiles caches successful profile lookups. Failures are not cached.
// Concurrent misses for one user share a single backend call, which matters
// on refresh when many conversations name the same participant.
type CachedProfiles struct {
	next     ProfileLookup
	cache    *cache.TTL[string, *models.Profile]
	inflight singleflight.Group
}

// NewCachedProfiles fronts next with a cache of the given TTL.
func NewCachedProfiles(next ProfileLookup, ttl time.Duration) *CachedProfiles {
	return &CachedProfiles{next: next, cache: cache.NewTTL[string, *models.Profile](ttl)}
}

// GetProfile returns a cached profile or fetches it.
func (p *CachedProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if prof, ok := p.cache.Get(userID); ok {
		metrics.ProfileCacheLookups.WithLabelValues("hit").Inc()
		return prof, nil
	}
	metrics.ProfileCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := p.inflight.Do(userID, func() (interface{}, error) {
		// A flight that finished between our miss and Do already filled it.
		if prof, ok := p.cache.Get(userID); ok {
			return prof, nil
		}
		prof, err := p.next.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		p.cache.Set(userID, prof)
		return prof, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile), nil
}

// Invalidate drops a cached profile.
func (p *CachedProfiles) Invalidate(userID string) {
	p.cache.Delete(userID)
}

// Serve evicts expired profiles until ctx is canceled.
func (p *CachedProfiles) Serve(ctx context.Context) error {
	p.cache.RunCleanup(ctx, time.Minute)
	return ctx.Err()
}

// String names the cache in supervisor logs.
func (p *CachedProfiles) String() string {
	return "profile-cache"
}
