// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import "time"

// AccessTokenRevocation is a blacklist entry that forces early rejection of
// access tokens which would otherwise still pass signature/expiry checks.
//
// A verified token is rejected when an entry exists for its account with
// RevokedAt >= the token's issued-at and ExpiresAt still in the future.
// ExpiresAt mirrors the maximum remaining access-token lifetime so the entry
// can be swept once every affected token would have expired anyway.
type AccessTokenRevocation struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason,omitempty"`
}

// Covers reports whether this entry invalidates a token issued at issuedAt.
func (r *AccessTokenRevocation) Covers(issuedAt, now time.Time) bool {
	return !r.RevokedAt.Before(issuedAt) && r.ExpiresAt.After(now)
}

// EmailVerificationCode is a one-time, attempt-limited 6-digit code.
//
// Only the SHA-256 hash of the code is stored. At most one live (unconsumed,
// unexpired) code exists per account: issuing a new one consumes prior live
// codes. Exhausting MaxAttempts consumes the code; it fails closed.
type EmailVerificationCode struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	CodeHash    string     `json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Live reports whether the code can still be submitted.
func (c *EmailVerificationCode) Live(now time.Time) bool {
	return c.ConsumedAt == nil && c.ExpiresAt.After(now)
}

// PasswordResetToken is a single-use opaque token for the forgot-password
// flow. Consuming it must, in the same transaction, invalidate all of the
// account's sessions and outstanding access tokens.
type PasswordResetToken struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
