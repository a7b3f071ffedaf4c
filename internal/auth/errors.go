// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
)

// # Error Taxonomy
//
// Every error below is a sentinel: callers compare with errors.Is and the
// transport layer maps them through apperr. Several are deliberately
// indistinguishable from "not found" so that neither error text nor status
// code leaks whether an email or token exists.

var (
	// ErrTermsNotAccepted rejects registration without an accepted ToS.
	ErrTermsNotAccepted = apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   FieldTermsAccepted,
		Message: "The terms of service must be accepted",
	})

	// ErrAccountExists is intentionally generic: it never confirms that the
	// email specifically is what collided.
	ErrAccountExists = apperr.Conflict("An account could not be created with the provided details")

	// ErrInvalidCredentials is returned for BOTH "no such account" and
	// "wrong password". One value, one message, same timing.
	ErrInvalidCredentials = apperr.Unauthorized("Invalid email or password")

	// ErrExternalSignIn rejects password login for OAuth-only accounts.
	ErrExternalSignIn = apperr.Unauthorized("This account uses an external sign-in method; use your original sign-in method")

	// ErrInvalidToken covers absent, malformed, or unknown tokens. Storage
	// conflicts during rotation also surface as this; the client's correct
	// response is to re-authenticate, not retry.
	ErrInvalidToken = apperr.Unauthorized("Invalid or expired token")

	// ErrSessionRevoked marks a refresh token whose session was already
	// revoked or rotated. Seeing it on a fresh token is a replay signal.
	ErrSessionRevoked = apperr.New("SESSION_REVOKED", "Session has been revoked", http.StatusUnauthorized)

	// ErrSessionExpired marks a refresh token past its natural expiry.
	ErrSessionExpired = apperr.New("SESSION_EXPIRED", "Session has expired", http.StatusUnauthorized)

	// ErrOwnerMismatch rejects rotation when the caller-asserted identity
	// disagrees with the session's stored owner.
	ErrOwnerMismatch = apperr.New("OWNER_MISMATCH", "Session does not belong to this account", http.StatusUnauthorized)

	// ErrTokenRevoked rejects an access token that passed signature/expiry
	// checks but has a covering blacklist entry.
	ErrTokenRevoked = apperr.New("TOKEN_REVOKED", "Access token has been revoked", http.StatusUnauthorized)

	// ErrMalformedCode rejects a submission that is not exactly the expected
	// number of digits. Checked before any storage access, so a malformed
	// submission never costs an attempt.
	ErrMalformedCode = apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   FieldCode,
		Message: fmt.Sprintf("Must be exactly %d digits", VerificationCodeDigits),
	})

	// ErrNoActiveCode means no live verification code exists for the account.
	ErrNoActiveCode = apperr.New("NO_ACTIVE_CODE", "No active verification code for this account", http.StatusNotFound)

	// ErrTooManyAttempts means the verification code burned through its
	// attempt budget and has been consumed.
	ErrTooManyAttempts = apperr.New("TOO_MANY_ATTEMPTS", "Too many incorrect attempts; request a new code", http.StatusTooManyRequests)

	// ErrResetTokenUsed rejects a second consumption of a reset token.
	ErrResetTokenUsed = apperr.New("TOKEN_ALREADY_USED", "This password reset token has already been used", http.StatusUnauthorized)

	// ErrResetTokenExpired rejects a reset token past its expiry.
	ErrResetTokenExpired = apperr.New("TOKEN_EXPIRED", "This password reset token has expired", http.StatusUnauthorized)

	// ErrIdentityConflict rejects OAuth sign-in when the provider-supplied
	// email already belongs to another account. Automatic linking is an
	// account-takeover vector, so it is never attempted.
	ErrIdentityConflict = apperr.Conflict("This identity cannot be linked to an existing account")

	// ErrExchangeCodeInvalid covers unknown, expired, and already-redeemed
	// exchange codes alike.
	ErrExchangeCodeInvalid = apperr.Unauthorized("Invalid or expired exchange code")
)

// BannedError reports an active account ban. It carries the human-readable
// window and reason for user display; transport code wraps it via
// [BannedError.Forbidden] and callers recover it with errors.As.
type BannedError struct {
	Reason string
	Until  *time.Time // nil = permanent
}

// Error implements the error interface.
func (e *BannedError) Error() string {
	if e.Until == nil {
		return fmt.Sprintf("Account is permanently banned: %s", e.Reason)
	}
	return fmt.Sprintf("Account is banned until %s: %s", e.Until.UTC().Format(time.RFC1123), e.Reason)
}

// Forbidden wraps the ban into a client-safe [apperr.AppError]. The original
// *BannedError stays reachable through the Cause chain.
func (e *BannedError) Forbidden() *apperr.AppError {
	return &apperr.AppError{
		Code:       "ACCOUNT_BANNED",
		Message:    e.Error(),
		HTTPStatus: http.StatusForbidden,
		Cause:      e,
	}
}

// CodeMismatchError reports an incorrect verification code along with the
// remaining attempt budget.
type CodeMismatchError struct {
	Remaining int
}

// Error implements the error interface.
func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("Incorrect verification code; %d attempts remaining", e.Remaining)
}

// Unauthorized wraps the mismatch into a client-safe [apperr.AppError].
func (e *CodeMismatchError) Unauthorized() *apperr.AppError {
	return &apperr.AppError{
		Code:       "CODE_MISMATCH",
		Message:    e.Error(),
		HTTPStatus: http.StatusUnauthorized,
		Cause:      e,
	}
}
