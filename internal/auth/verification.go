// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

// # Email Verification

/*
IssueVerificationCode creates and mails a fresh 6-digit code for the
account. Issuing a new code invalidates any previously live one in the same
transaction, so at most one code per account is ever redeemable.

Already-verified accounts are a no-op success; re-requesting a code must
not reveal verification state to someone probing addresses.
*/
func (service *Service) IssueVerificationCode(ctx context.Context, accountID string) error {
	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	if account.IsVerified {
		return nil
	}

	return service.issueAndMailCode(ctx, account)
}

func (service *Service) issueAndMailCode(ctx context.Context, account *Account) error {
	rawCode, err := sec.GenerateNumericCode(VerificationCodeDigits)
	if err != nil {
		return fmt.Errorf("auth_service_code_generation_failed: %w", err)
	}

	code := &EmailVerificationCode{
		ID:          uuid.New(),
		AccountID:   account.ID,
		CodeHash:    sec.HashToken(rawCode),
		ExpiresAt:   time.Now().Add(VerificationCodeTTL),
		MaxAttempts: VerificationMaxAttempts,
	}

	if err := service.codes.Issue(ctx, code); err != nil {
		return fmt.Errorf("auth_service_code_issue_failed: %w", err)
	}

	return service.mailer.SendVerificationCode(ctx, account.Email, rawCode, account.DisplayName)
}

/*
VerifyCode redeems a submitted code against the account's live one.

The attempt counter is incremented and COMMITTED before the comparison
runs, so a client cannot reset its budget by aborting requests mid-flight.
The order of checks:

 1. malformed submission (not exactly the expected digit count):
    [ErrMalformedCode], before any storage access and without touching
    the attempt budget
 2. no live code for the account: [ErrNoActiveCode]
 3. attempt budget exhausted (this submission included): the code is
    consumed and [ErrTooManyAttempts] returned, even if the digits were
    actually right
 4. hash mismatch: [CodeMismatchError] carrying the remaining budget
 5. match: code consumed and account flagged verified in one transaction

Verifying an already-verified account short-circuits to success.
*/
func (service *Service) VerifyCode(ctx context.Context, accountID, submittedCode string) error {
	if !codeShapeValid(submittedCode) {
		return ErrMalformedCode
	}

	account, err := service.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return nil
	}

	code, err := service.codes.FindLive(ctx, accountID, time.Now())
	if err != nil {
		return err
	}

	attempts, err := service.codes.IncrementAttempts(ctx, code.ID)
	if err != nil {
		return fmt.Errorf("auth_service_attempt_tracking_failed: %w", err)
	}

	if attempts > code.MaxAttempts {
		if err := service.codes.Consume(ctx, code.ID); err != nil {
			return fmt.Errorf("auth_service_code_burn_failed: %w", err)
		}
		return ErrTooManyAttempts
	}

	submittedHash := sec.HashToken(submittedCode)
	if subtle.ConstantTimeCompare([]byte(submittedHash), []byte(code.CodeHash)) != 1 {
		mismatch := &CodeMismatchError{Remaining: code.MaxAttempts - attempts}
		return mismatch.Unauthorized()
	}

	if err := service.codes.ConsumeAndVerify(ctx, code.ID, accountID); err != nil {
		return fmt.Errorf("auth_service_code_consume_failed: %w", err)
	}

	return nil
}

// codeShapeValid reports whether the submission is exactly
// VerificationCodeDigits ASCII digits.
func codeShapeValid(code string) bool {
	if len(code) != VerificationCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
