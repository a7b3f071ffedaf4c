// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for signing and verifying access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given account.
	GenerateAccessToken(accountID, role string, timeToLive time.Duration) (string, error)

	// VerifyToken checks signature and expiry and returns the claims.
	// Decode-without-verify has no place in this codebase: identity read
	// from a token always goes through this method.
	VerifyToken(tokenString string) (*sec.AuthClaims, error)
}

// Service implements the authentication and session lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, rotation,
// revocation, or ban logic must be reviewed by the security team.
type Service struct {
	accounts      AccountRepository
	sessions      SessionRepository
	revocations   RevocationRepository
	codes         VerificationCodeRepository
	resetTokens   ResetTokenRepository
	exchangeCodes ExchangeCodeStore
	tokenProvider TokenProvider
	mailer        Mailer
}

// NewService constructs a new [Service] with the necessary dependencies.
func NewService(
	accounts AccountRepository,
	sessions SessionRepository,
	revocations RevocationRepository,
	codes VerificationCodeRepository,
	resetTokens ResetTokenRepository,
	exchangeCodes ExchangeCodeStore,
	tokenProvider TokenProvider,
	mailer Mailer,
) *Service {
	return &Service{
		accounts:      accounts,
		sessions:      sessions,
		revocations:   revocations,
		codes:         codes,
		resetTokens:   resetTokens,
		exchangeCodes: exchangeCodes,
		tokenProvider: tokenProvider,
		mailer:        mailer,
	}
}

// AuthSession represents a successfully established session. The raw refresh
// token exists only in this value, exactly once, on its way to the client.
type AuthSession struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Account               *Account
}

// SessionMeta carries per-device metadata recorded on every session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// # Session Engine

/*
IssueSession establishes a fresh session for an already-authenticated account.

It generates a cryptographically random refresh token, persists only its
hash with a days-scale expiry, and signs a minutes-scale access token.

Returns the only copy of the raw refresh token that will ever exist.
*/
func (service *Service) IssueSession(ctx context.Context, account *Account, meta SessionMeta) (*AuthSession, error) {

	// Short-lived access token first; nothing is persisted if signing fails.
	accessToken, err := service.tokenProvider.GenerateAccessToken(account.ID, string(account.Role), AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	expiresAt := time.Now().Add(RefreshTokenTTL)
	session := &Session{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
	}

	if err := service.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	return &AuthSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
		Account:               account,
	}, nil
}

/*
Rotate implements the refresh-token rotation mechanism.

The presented token is hashed and its session revoked-and-replaced in a
single storage transaction. This atomicity is the primary defense against
refresh-token replay: a stolen-then-reused token fails on its second use
with [ErrSessionRevoked], because rotation is not idempotent.

assertedOwner is the account ID the caller claims to be (from a verified
access token); pass "" when no identity is asserted. A mismatch against the
stored owner aborts the rotation with [ErrOwnerMismatch].
*/
func (service *Service) Rotate(ctx context.Context, rawRefreshToken, assertedOwner string, meta SessionMeta) (*AuthSession, error) {
	if rawRefreshToken == "" {
		return nil, ErrInvalidToken
	}

	tokenHash := sec.HashToken(rawRefreshToken)

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_secure_token_failed: %w", err)
	}

	expiresAt := time.Now().Add(RefreshTokenTTL)
	next := &Session{
		ID:        uuid.New(),
		TokenHash: sec.HashToken(refreshToken),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		ExpiresAt: expiresAt,
	}

	// One transaction: the implementation fills next.AccountID from the old
	// row, revokes it, and inserts the successor.
	old, err := service.sessions.Rotate(ctx, tokenHash, assertedOwner, next)
	if err != nil {
		// Sentinels pass through untouched; a storage conflict (two racing
		// rotations) degrades to InvalidToken so the client re-authenticates
		// instead of retrying blindly.
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	account, err := service.accounts.FindByID(ctx, old.AccountID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if account.BanActive(time.Now()) {
		banErr := &BannedError{Reason: account.BanReason, Until: account.BannedUntil}
		return nil, banErr.Forbidden()
	}

	accessToken, err := service.tokenProvider.GenerateAccessToken(account.ID, string(account.Role), AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	return &AuthSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
		Account:               account,
	}, nil
}

/*
Logout permanently revokes the session behind a refresh token.

Missing, unknown, or already-revoked tokens are a no-op success: logout is
idempotent. A storage failure is NOT: reporting success while the session
stays live would fail open, so lookup errors other than [ErrInvalidToken]
propagate to the caller. Otherwise, one transaction revokes the session AND
inserts a matching access-token revocation entry, so access tokens minted
from the session stop working immediately rather than waiting out their
expiry.
*/
func (service *Service) Logout(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}

	session, err := service.sessions.FindByTokenHash(ctx, sec.HashToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return fmt.Errorf("auth_service_logout_lookup_failed: %w", err)
	}
	if session.RevokedAt != nil {
		return nil
	}

	revocation := newRevocation(session.AccountID, "logout")
	if err := service.sessions.RevokeWithBlacklist(ctx, session.ID, revocation); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}

/*
LogoutFromAccessTokenOnly blacklists the caller's access tokens when no
refresh token is available (e.g. the cookie is already cleared).

The token undergoes FULL signature and expiry verification before its
subject is trusted: accepting a decoded-but-unverified payload here would
let anyone blacklist an arbitrary account.
*/
func (service *Service) LogoutFromAccessTokenOnly(ctx context.Context, rawAccessToken string) error {
	claims, err := service.tokenProvider.VerifyToken(rawAccessToken)
	if err != nil {
		return ErrInvalidToken
	}

	revocation := newRevocation(claims.UserID, "logout")
	if err := service.revocations.Create(ctx, revocation); err != nil {
		return fmt.Errorf("auth_service_access_logout_failed: %w", err)
	}

	return nil
}

// newRevocation builds a blacklist entry that covers every access token the
// account could still hold: anything issued up to now, expiring at most
// AccessTokenTTL from now.
func newRevocation(accountID, reason string) *AccessTokenRevocation {
	now := time.Now()
	return &AccessTokenRevocation{
		ID:        uuid.New(),
		AccountID: accountID,
		RevokedAt: now,
		ExpiresAt: now.Add(AccessTokenTTL),
		Reason:    reason,
	}
}
