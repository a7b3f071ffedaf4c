// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"log/slog"
)

// Mailer delivers the two transactional messages the auth flows send.
// Implementations receive the raw secret exactly once and must not log it.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code, displayName string) error
	SendPasswordReset(ctx context.Context, email, token, displayName string) error
}

// LogMailer is the development stand-in for a real mail provider. It writes
// delivery records to the structured log WITHOUT the secret material, so
// local logs stay safe to share.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(ctx context.Context, email, code, displayName string) error {
	slog.InfoContext(ctx, "verification code issued",
		"email", email, "recipient", displayName, "code_digits", len(code))
	return nil
}

func (LogMailer) SendPasswordReset(ctx context.Context, email, token, displayName string) error {
	slog.InfoContext(ctx, "password reset token issued",
		"email", email, "recipient", displayName)
	return nil
}
