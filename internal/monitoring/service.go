// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package monitoring

import (
	"context"
	"time"
)

// Serve runs the escalation sweep and alert pruning every
// EscalationInterval until ctx is canceled.
func (a *Aggregator) Serve(ctx context.Context) error {
	interval := a.cfg.EscalationInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Aggregator) tick() {
	defer a.guard("tick")

	now := a.now()
	a.EscalationSweep(now)
	if n := a.Prune(now); n > 0 {
		a.logger.Debug().Int("pruned", n).Msg("Resolved alerts pruned")
	}
	a.Health()
}

func (a *Aggregator) String() string {
	return "monitoring-aggregator"
}
