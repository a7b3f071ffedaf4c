// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

/*
Package auth implements the identity, session, and credential lifecycle for
the Corkboard community platform.

It is the only subsystem that decides who may obtain, refresh, or lose a
valid session: registration and login, refresh-token rotation, access-token
blacklisting, account bans, email verification codes, password resets, and
external (OAuth) identity linking.

# Architecture

  - Service: orchestrates the flows (credential checks, session engine,
    ban enforcement, one-time codes).
  - Repositories: domain-defined interfaces implemented over PostgreSQL
    (durable entities) and Redis (volatile exchange codes).
  - Security: bcrypt password hashing and RSA-signed JWTs live in
    platform/sec; raw secrets never reach storage, only SHA-256 digests.

Everything that must be race-free across service instances (rotation,
logout, bans, reset consumption, attempt counting) is a single storage
transaction, never an in-process lock.
*/
package auth

import (
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/sec"
)

// # Domain Entities

// Account represents a registered member of the Corkboard platform.
//
// PasswordHash is empty for externally-authenticated accounts (OAuth):
// such accounts can never pass local password authentication.
type Account struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	Role         sec.UserRole `json:"role"`
	IsVerified   bool         `json:"is_verified"`

	// Ban state. BannedUntil == nil while IsBanned means a permanent ban.
	IsBanned    bool       `json:"-"`
	BannedUntil *time.Time `json:"-"`
	BanReason   string     `json:"-"`

	// External identity. (Provider, ProviderID) is unique together.
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExternal reports whether the account authenticates through an external
// identity provider and therefore has no local password.
func (a *Account) IsExternal() bool {
	return a.PasswordHash == ""
}

// BanActive reports whether the ban currently blocks the account. This must
// be evaluated against live account state; the token payload is stale by
// definition.
func (a *Account) BanActive(now time.Time) bool {
	if !a.IsBanned {
		return false
	}
	return a.BannedUntil == nil || a.BannedUntil.After(now)
}

// BanLapsed reports whether a temporary ban has run out and can be lifted.
func (a *Account) BanLapsed(now time.Time) bool {
	return a.IsBanned && a.BannedUntil != nil && !a.BannedUntil.After(now)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldTermsAccepted   = "terms_accepted"
	FieldCode            = "code"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldReason          = "reason"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
)
