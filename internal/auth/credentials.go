// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

// RegisterInput carries the fields of a local registration request.
// Validation of shape (email format, password length) happens at the
// transport layer; this layer enforces business rules.
type RegisterInput struct {
	Email         string
	Password      string
	DisplayName   string
	TermsAccepted bool
}

// # Registration

/*
Register creates a new local credential account.

Business rules:

  - Terms must be accepted; rejected before any other work.
  - Email uniqueness is enforced by the storage layer's unique constraint,
    never by a prior SELECT, so two racing registrations cannot both pass.
  - The collision error is deliberately generic ([ErrAccountExists]) to
    avoid confirming to a caller which addresses hold accounts.
  - A verification code is issued and mailed best-effort: a mail failure
    does not roll back the account.
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	if !input.TermsAccepted {
		return nil, ErrTermsNotAccepted
	}

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_password_hash_failed: %w", err)
	}

	account := &Account{
		ID:           uuid.New(),
		Email:        normalizeEmail(input.Email),
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         sec.RoleMember,
		Provider:     ProviderLocal,
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := service.issueAndMailCode(ctx, account); err != nil {
		slog.WarnContext(ctx, "verification code delivery failed after registration",
			"account_id", account.ID, "error", err)
	}

	return account, nil
}

// # Authentication

/*
Authenticate verifies a local email/password pair.

Lookup-miss and wrong-password both return [ErrInvalidCredentials], and on a
lookup miss a bcrypt comparison is still performed against a fixed dummy
hash so the response time does not reveal whether the address exists.

Accounts created through an external provider carry no usable password and
are rejected with [ErrExternalSignIn] before any comparison.

A temporal ban whose window has lapsed is lifted here, on the first login
after expiry. An active ban fails with ACCOUNT_BANNED carrying the reason
and expiry.
*/
func (service *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := service.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Burn the same bcrypt work as the success path.
		sec.CheckDummyPassword(password)
		return nil, ErrInvalidCredentials
	}

	if account.IsExternal() {
		return nil, ErrExternalSignIn
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if account.IsBanned {
		if account.BanLapsed(now) {
			if err := service.accounts.LiftBan(ctx, account.ID); err != nil {
				return nil, fmt.Errorf("auth_service_lift_ban_failed: %w", err)
			}
			account.IsBanned = false
			account.BannedUntil = nil
			account.BanReason = ""
		} else {
			banErr := &BannedError{Reason: account.BanReason, Until: account.BannedUntil}
			return nil, banErr.Forbidden()
		}
	}

	return account, nil
}

/*
ChangePassword swaps the password of an authenticated account.

The current password is re-verified even though the caller already holds a
valid access token: a stolen token alone must not be enough to lock the
owner out. On success, every OTHER session is revoked, so a hijacker
holding an old refresh token loses it; the caller's own refresh token
survives. The blacklist entry is account-wide, however: every outstanding
access token, the caller's included, is rejected from here on, forcing a
refresh on their next request.
*/
func (service *Service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, keepSessionID string) error {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return ErrInvalidCredentials
	}

	if account.IsExternal() {
		return ErrExternalSignIn
	}

	if !sec.CheckPasswordHash(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_password_hash_failed: %w", err)
	}

	if err := service.accounts.UpdatePassword(ctx, accountID, newHash); err != nil {
		return fmt.Errorf("auth_service_password_update_failed: %w", err)
	}

	revocation := newRevocation(accountID, "password_change")
	if err := service.sessions.RevokeAllExcept(ctx, accountID, keepSessionID, revocation); err != nil {
		return fmt.Errorf("auth_service_session_revocation_failed: %w", err)
	}

	return nil
}

// normalizeEmail lowercases and trims so lookups and the unique index agree
// on what "the same address" means.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
