// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

// # Password Reset

/*
RequestPasswordReset starts the forgot-password flow.

The response is ALWAYS success. An unknown address, an external-provider
account, or even a mail failure all return nil; anything else would turn
this endpoint into an account-existence oracle. Failures are logged
server-side only.

When the account qualifies, a single-use token with a 1-hour expiry is
issued; its hash is stored, the raw value goes out by email and is never
persisted.
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := service.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !apperr.IsNotFound(err) {
			slog.ErrorContext(ctx, "password reset lookup failed", "error", err)
		}
		return nil
	}

	// External accounts have no password to reset.
	if account.IsExternal() {
		return nil
	}

	rawToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		slog.ErrorContext(ctx, "password reset token generation failed", "error", err)
		return nil
	}

	resetToken := &PasswordResetToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: sec.HashToken(rawToken),
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}

	if err := service.resetTokens.Issue(ctx, resetToken); err != nil {
		slog.ErrorContext(ctx, "password reset token issue failed", "error", err)
		return nil
	}

	if err := service.mailer.SendPasswordReset(ctx, account.Email, rawToken, account.DisplayName); err != nil {
		slog.ErrorContext(ctx, "password reset mail failed", "account_id", account.ID, "error", err)
	}

	return nil
}

/*
CompletePasswordReset redeems a reset token and installs a new password.

The entire consequence chain runs in one storage transaction: the token is
marked consumed, the password hash replaced, every active session revoked,
and outstanding access tokens blacklisted. A reset is a recovery from
presumed compromise, so nothing issued before it survives.

An expired token fails with [ErrResetTokenExpired]; a consumed one with
[ErrResetTokenUsed], distinguishable so the user knows whether to restart
the flow or worry.
*/
func (service *Service) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrInvalidToken
	}

	newHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_password_hash_failed: %w", err)
	}

	revocation := newRevocation("", "password_reset")

	if _, err := service.resetTokens.Consume(ctx, sec.HashToken(rawToken), newHash, revocation); err != nil {
		return err
	}

	return nil
}
