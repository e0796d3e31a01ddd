// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package services adapts components whose lifecycle is not a blocking
// Serve(ctx) method to suture.Service. The hub, the change-feed client and
// the monitoring loops already implement Serve and are added to the tree
// directly.
package services
