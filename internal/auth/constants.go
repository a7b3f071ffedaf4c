// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import "time"

// # Identity Providers

const (
	// ProviderLocal marks accounts created with an email/password pair.
	ProviderLocal = "local"
)

// # Authentication Constraints

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// We keep it short (15m) to minimize the impact of a leaked token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a session/refresh token remains valid.
	// Long-lived (30 days) to provide a good user experience.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// RefreshTokenLength is the byte length of the random secure token.
	RefreshTokenLength = 32

	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationCodeTTL is the duration an emailed verification code
	// remains valid. Codes are only 6 digits, so they must die quickly.
	VerificationCodeTTL = 10 * time.Minute

	// VerificationCodeDigits is the number of decimal digits in a code.
	VerificationCodeDigits = 6

	// VerificationMaxAttempts is how many submissions a single code survives.
	// The counter is incremented before comparison, so a crash mid-check
	// still burns the attempt.
	VerificationMaxAttempts = 5

	// ExchangeCodeTTL bounds the window between the OAuth redirect landing
	// and the client swapping the one-time code for its access token.
	ExchangeCodeTTL = 1 * time.Minute

	// ExchangeCodeLength is the byte length of the random exchange code.
	ExchangeCodeLength = 24

	// ExchangeFallbackMaxEntries caps the in-process fallback map used when
	// Redis is unreachable. Oldest entries are evicted first.
	ExchangeFallbackMaxEntries = 1024
)
