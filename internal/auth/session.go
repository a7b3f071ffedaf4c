// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import "time"

// Session represents a refresh-token session.
//
// # State Machine
//
// A session is ACTIVE while RevokedAt is nil and ExpiresAt is in the future.
// It leaves that state exactly once, into one of three terminal states:
//
//	ACTIVE → ROTATED   superseded by a new session (RevokedAt set by Rotate)
//	ACTIVE → REVOKED   logout, password change/reset, or ban (RevokedAt set)
//	ACTIVE → EXPIRED   ExpiresAt passed; detected lazily or by the sweeper
//
// Only the SHA-256 hash of the refresh token is stored. At most one active
// record can match a given raw token: rotation revokes the old record in the
// same transaction that inserts its successor.
type Session struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	TokenHash string     `json:"-"` // Hashed value of the refresh token. Omitted for security.
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the session can still mint access tokens.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// Expired reports whether the session passed its natural expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
