// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/sec"
)

// # Request-Time Enforcement

/*
Authorize is the per-request gate behind access-token signature checks.

A structurally valid, unexpired token is still rejected when:

  - a blacklist entry for the account covers its issue time, meaning the
    token was minted before an explicit revocation event (logout, ban,
    password change), or
  - the account currently carries an active ban.

The ban check reads live account state rather than the token's claims, so
a ban takes hold mid-session without waiting for the access token to
expire. A lapsed temporal ban simply stops matching; the flag itself is
cleared at next login, not here.
*/
func (service *Service) Authorize(ctx context.Context, claims *sec.AuthClaims) error {
	if claims.IssuedAt == nil {
		return ErrInvalidToken
	}

	now := time.Now()

	revocation, err := service.revocations.FindCovering(ctx, claims.UserID, claims.IssuedAt.Time, now)
	if err != nil {
		return fmt.Errorf("auth_service_blacklist_lookup_failed: %w", err)
	}
	if revocation != nil {
		return ErrTokenRevoked
	}

	account, err := service.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		// Account deleted after token issue. Treat like revocation.
		return ErrTokenRevoked
	}

	if account.BanActive(now) {
		banErr := &BannedError{Reason: account.BanReason, Until: account.BannedUntil}
		return banErr.Forbidden()
	}

	return nil
}

/*
Ban suspends an account, permanently (until == nil) or until a point in
time. In one transaction the ban fields are written, every active session
is revoked, and a blacklist entry is inserted covering all outstanding
access tokens. The banned user is cut off within one request, not one
token lifetime.
*/
func (service *Service) Ban(ctx context.Context, accountID string, until *time.Time, reason string) error {
	if _, err := service.accounts.FindByID(ctx, accountID); err != nil {
		return err
	}

	revocation := newRevocation(accountID, "ban")
	if err := service.accounts.Ban(ctx, accountID, until, reason, revocation); err != nil {
		return fmt.Errorf("auth_service_ban_failed: %w", err)
	}

	return nil
}

// Unban lifts a suspension ahead of its scheduled end.
func (service *Service) Unban(ctx context.Context, accountID string) error {
	if _, err := service.accounts.FindByID(ctx, accountID); err != nil {
		return err
	}
	if err := service.accounts.LiftBan(ctx, accountID); err != nil {
		return fmt.Errorf("auth_service_unban_failed: %w", err)
	}
	return nil
}
