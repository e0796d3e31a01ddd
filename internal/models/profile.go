// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package models

// Profile is the public part of a user profile returned by the profile lookup.
type Profile struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Age         int      `json:"age,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Photos      []string `json:"photos,omitempty"`
}
