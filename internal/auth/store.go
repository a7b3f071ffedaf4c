// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"time"
)

// # Storage Contracts
//
// The service consumes persistence exclusively through these interfaces.
// Methods documented as "one transaction" are multi-step writes that MUST
// commit or fail atomically in the implementation. They are the system's
// only defense against cross-instance races (several API replicas share the
// same database and no in-process lock helps).

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	// Create persists a brand-new account. A uniqueness collision on email
	// or (provider, providerID) is reported as ErrAccountExists; callers
	// never pre-check existence with a SELECT, which would race.
	Create(ctx context.Context, account *Account) error

	// FindByID returns the account with the given ID.
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByEmail returns the account with the given email, regardless of
	// which identity provider owns it.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByProvider returns the account matching the external identity.
	FindByProvider(ctx context.Context, provider, providerID string) (*Account, error)

	// UpdatePassword replaces only the account's password hash.
	UpdatePassword(ctx context.Context, accountID, newHash string) error

	// MarkVerified flips the account's verification flag.
	MarkVerified(ctx context.Context, accountID string) error

	// LiftBan clears the ban fields once a temporary ban has lapsed.
	LiftBan(ctx context.Context, accountID string) error

	// Ban applies a ban in one transaction: set the ban fields, revoke every
	// active session of the account, and insert the given blacklist entry.
	// A session issued concurrently either commits before the ban (and is
	// revoked by it) or after (and sees the ban flag); it can never slip
	// between the steps.
	Ban(ctx context.Context, accountID string, until *time.Time, reason string, revocation *AccessTokenRevocation) error
}

// SessionRepository defines the data access contract for refresh-token sessions.
type SessionRepository interface {
	// Create persists a new session for an authenticated login.
	Create(ctx context.Context, session *Session) error

	// FindByTokenHash returns the session matching the token hash in ANY
	// state, revoked and expired rows included. Callers classify the state;
	// filtering here would make logout non-idempotent and rotation unable to
	// distinguish replay from garbage.
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Rotate atomically supersedes the session identified by tokenHash with
	// next: one transaction locks the old row, classifies it (absent →
	// ErrInvalidToken, revoked → ErrSessionRevoked, expired →
	// ErrSessionExpired, foreign owner → ErrOwnerMismatch when
	// expectedOwner is non-empty), marks it revoked, and inserts next.
	// Rotation is intentionally not idempotent: a replayed token finds the
	// row already revoked and fails.
	Rotate(ctx context.Context, tokenHash, expectedOwner string, next *Session) (*Session, error)

	// RevokeWithBlacklist revokes one session and inserts the matching
	// access-token revocation entry in one transaction, so access tokens
	// minted from the session die with it.
	RevokeWithBlacklist(ctx context.Context, sessionID string, revocation *AccessTokenRevocation) error

	// RevokeAllExcept revokes every active session of the account except
	// keepSessionID (pass "" to revoke all) and inserts the blacklist entry,
	// in one transaction.
	RevokeAllExcept(ctx context.Context, accountID, keepSessionID string, revocation *AccessTokenRevocation) error

	// DeleteExpired physically removes sessions past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) error
}

// RevocationRepository defines the contract for access-token blacklist entries.
type RevocationRepository interface {
	// Create inserts a standalone blacklist entry (access-token-only logout).
	Create(ctx context.Context, revocation *AccessTokenRevocation) error

	// FindCovering returns a live entry for the account with
	// revokedAt >= issuedAt, or nil if none exists.
	FindCovering(ctx context.Context, accountID string, issuedAt, now time.Time) (*AccessTokenRevocation, error)

	// DeleteExpired removes entries whose covered tokens have expired anyway.
	DeleteExpired(ctx context.Context, now time.Time) error
}

// VerificationCodeRepository defines the contract for email verification codes.
type VerificationCodeRepository interface {
	// Issue consumes any live code for the account and inserts the new one,
	// in one transaction. The single-live-code invariant lives here.
	Issue(ctx context.Context, code *EmailVerificationCode) error

	// FindLive returns the account's live (unconsumed, unexpired) code, or
	// ErrNoActiveCode.
	FindLive(ctx context.Context, accountID string, now time.Time) (*EmailVerificationCode, error)

	// IncrementAttempts bumps the attempt counter and returns the new value.
	// It is a separate committed write so a crash between counting and
	// comparing still burns the attempt.
	IncrementAttempts(ctx context.Context, codeID string) (int, error)

	// Consume marks the code consumed without verifying the account
	// (attempt exhaustion, supersession).
	Consume(ctx context.Context, codeID string) error

	// ConsumeAndVerify marks the code consumed and the account verified in
	// one transaction.
	ConsumeAndVerify(ctx context.Context, codeID, accountID string) error

	// DeleteExpired removes codes past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) error
}

// ResetTokenRepository defines the contract for password reset tokens.
type ResetTokenRepository interface {
	// Issue consumes any live reset token for the account and inserts the
	// new one, in one transaction.
	Issue(ctx context.Context, token *PasswordResetToken) error

	// Consume redeems the token identified by tokenHash in one transaction:
	// classify it (absent → ErrInvalidToken, consumed → ErrResetTokenUsed,
	// expired → ErrResetTokenExpired), set the account's new password hash,
	// mark the token consumed, revoke all of the account's sessions, and
	// insert the blacklist entry (its AccountID is filled in from the token
	// row; callers do not know it yet). Returns the consumed token.
	Consume(ctx context.Context, tokenHash, newPasswordHash string, revocation *AccessTokenRevocation) (*PasswordResetToken, error)

	// DeleteExpired removes tokens past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) error
}

// ExchangeCodeStore is the volatile one-time store that moves a freshly
// issued access token across an OAuth redirect without ever putting the
// token in a URL.
type ExchangeCodeStore interface {
	// Put maps code → accessToken for ttl.
	Put(ctx context.Context, code, accessToken string, ttl time.Duration) error

	// Redeem is a one-time lookup-and-delete; a second call with the same
	// code fails with ErrExchangeCodeInvalid.
	Redeem(ctx context.Context, code string) (string, error)
}
