// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package conversation holds the session user's conversation list and unread
// counters.
//
// The Store is the only owner of this state. It is rebuilt from the backend
// by Refresh, kept current by change-feed events (see Attach) and mutated by
// user actions. All methods are safe for concurrent use: state changes happen
// under one mutex, backend calls happen outside it, and state is re-read
// after every backend call before it is modified. Change listeners run after
// the lock is released.
//
// Invariants:
//   - the list is ordered by updated_at, most recent first
//   - each conversation id appears at most once
//   - unread counters are never negative
package conversation
