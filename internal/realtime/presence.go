// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package realtime

import (
	"context"
	"time"

	"github.com/tomtom215/stellr/internal/apperrors"
	"github.com/tomtom215/stellr/internal/backend"
	"github.com/tomtom215/stellr/internal/changefeed"
	"github.com/tomtom215/stellr/internal/models"
)

// UpdateOnlineStatus publishes the session user's presence. It is a
// best-effort heartbeat.
func (f *Facade) UpdateOnlineStatus(ctx context.Context, status models.PresenceStatus) error {
	if !status.Valid() {
		return apperrors.Validationf("realtime.UpdateOnlineStatus", "invalid presence status %q", status)
	}

	_, err := f.rpc.Invoke(ctx, backend.ProcUpdatePresence, backend.PresencePayload{Status: string(status)})
	f.track(ActionPresenceUpdated, err)
	if err != nil {
		f.logger.Warn().Err(err).Str("status", string(status)).Msg("Presence update failed")
		return err
	}
	return nil
}

// AppStateChanged maps foreground to online and background to away.
func (f *Facade) AppStateChanged(ctx context.Context, foreground bool) error {
	if foreground {
		return f.UpdateOnlineStatus(ctx, models.PresenceOnline)
	}
	return f.UpdateOnlineStatus(ctx, models.PresenceAway)
}

// PresenceOf returns the effective status of userID. Unknown users and
// records older than the staleness window read as offline.
func (f *Facade) PresenceOf(userID string) models.PresenceStatus {
	f.mu.Lock()
	rec, ok := f.presence[userID]
	f.mu.Unlock()

	if !ok {
		return models.PresenceOffline
	}
	return rec.Effective(f.now(), f.staleAfter)
}

// Presence returns the last presence record received for userID.
func (f *Facade) Presence(userID string) (models.PresenceRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.presence[userID]
	return rec, ok
}

// StaleAfter is the effective presence staleness window.
func (f *Facade) StaleAfter() time.Duration {
	return f.staleAfter
}

func (f *Facade) onPresence(e changefeed.Event) {
	var rec models.PresenceRecord
	if err := e.DecodeNew(&rec); err != nil || rec.UserID == "" {
		f.logger.Warn().Err(err).Msg("Undecodable presence row")
		return
	}

	f.mu.Lock()
	if cur, ok := f.presence[rec.UserID]; ok && rec.LastSeen.Before(cur.LastSeen) {
		f.mu.Unlock()
		return
	}
	f.presence[rec.UserID] = rec
	f.mu.Unlock()

	f.presenceEv.Emit(rec)
}
