// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

// PostgreSQL implementations of the single-use token repositories: the
// access-token blacklist, email verification codes, and password reset
// tokens. All three store only SHA-256 digests of their secrets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// # Revocation Repository

// PostgresRevocationRepository implements the RevocationRepository interface using pgx.
type PostgresRevocationRepository struct {
	pool *pgxpool.Pool
}

// NewRevocationRepository creates a new PostgreSQL implementation of the RevocationRepository.
func NewRevocationRepository(pool *pgxpool.Pool) *PostgresRevocationRepository {
	return &PostgresRevocationRepository{pool: pool}
}

// Create inserts a standalone blacklist entry.
func (repository *PostgresRevocationRepository) Create(context context.Context, revocation *AccessTokenRevocation) error {
	const query = `
		INSERT INTO users.token_revocation (id, accountid, revokedat, expiresat, reason)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := repository.pool.Exec(context, query,
		revocation.ID,
		revocation.AccountID,
		revocation.RevokedAt,
		revocation.ExpiresAt,
		revocation.Reason,
	)
	if err != nil {
		return fmt.Errorf("postgres_revocation_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindCovering returns a live blacklist entry covering a token issued at
issuedAt, or nil when none exists.

Description: A revocation covers a token when the token was issued at or
before the revocation event and the entry itself has not expired. This is
the hot query of the enforcement path; it runs once per authenticated
request and must stay on the (accountid, revokedat) index.

Parameters:
  - context: context.Context
  - accountID: string
  - issuedAt: time.Time (iat claim of the presented access token)
  - now: time.Time

Returns:
  - *AccessTokenRevocation: The covering entry, or nil
  - error: Database errors only; "no entry" is not an error
*/
func (repository *PostgresRevocationRepository) FindCovering(context context.Context, accountID string, issuedAt, now time.Time) (*AccessTokenRevocation, error) {
	const query = `
		SELECT id, accountid, revokedat, expiresat, reason
		FROM users.token_revocation
		WHERE accountid = $1 AND revokedat >= $2 AND expiresat > $3
		ORDER BY revokedat DESC
		LIMIT 1`

	revocation := &AccessTokenRevocation{}
	err := repository.pool.QueryRow(context, query, accountID, issuedAt, now).Scan(
		&revocation.ID,
		&revocation.AccountID,
		&revocation.RevokedAt,
		&revocation.ExpiresAt,
		&revocation.Reason,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_revocation_repo_find_failed: %w", err)
	}

	return revocation, nil
}

// DeleteExpired removes entries whose covered tokens have expired anyway.
func (repository *PostgresRevocationRepository) DeleteExpired(context context.Context, now time.Time) error {
	_, err := repository.pool.Exec(context,
		`DELETE FROM users.token_revocation WHERE expiresat <= $1`, now)
	if err != nil {
		return fmt.Errorf("postgres_revocation_repo_delete_expired_failed: %w", err)
	}
	return nil
}

// # Verification Code Repository

const verificationCodeColumns = `
	id, accountid, codehash, expiresat, attempts, maxattempts, consumedat, createdat`

// PostgresVerificationCodeRepository implements the VerificationCodeRepository interface using pgx.
type PostgresVerificationCodeRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeRepository creates a new PostgreSQL implementation of the VerificationCodeRepository.
func NewVerificationCodeRepository(pool *pgxpool.Pool) *PostgresVerificationCodeRepository {
	return &PostgresVerificationCodeRepository{pool: pool}
}

/*
Issue inserts a fresh verification code after consuming any live predecessor.

Description: Both writes share one transaction, preserving the invariant that
an account never has two redeemable codes at once. The superseded code is
consumed, not deleted, so its row survives for audit until the sweeper
removes it.

Parameters:
  - context: context.Context
  - code: *EmailVerificationCode

Returns:
  - error: nil on a successfully committed sequence
*/
func (repository *PostgresVerificationCodeRepository) Issue(context context.Context, code *EmailVerificationCode) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin code issue transaction: %w", err)
	}
	defer transaction.Rollback(context)

	now := time.Now()

	_, err = transaction.Exec(context, `
		UPDATE users.verification_code
		SET consumedat = $2
		WHERE accountid = $1 AND consumedat IS NULL`,
		code.AccountID, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to supersede verification code: %w", err)
	}

	if code.CreatedAt.IsZero() {
		code.CreatedAt = now
	}

	_, err = transaction.Exec(context, `
		INSERT INTO users.verification_code (`+verificationCodeColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		code.ID,
		code.AccountID,
		code.CodeHash,
		code.ExpiresAt,
		code.Attempts,
		code.MaxAttempts,
		code.ConsumedAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert verification code: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit code issue transaction: %w", err)
	}

	return nil
}

// FindLive returns the account's unconsumed, unexpired code.
func (repository *PostgresVerificationCodeRepository) FindLive(context context.Context, accountID string, now time.Time) (*EmailVerificationCode, error) {
	const query = `
		SELECT ` + verificationCodeColumns + `
		FROM users.verification_code
		WHERE accountid = $1 AND consumedat IS NULL AND expiresat > $2`

	code := &EmailVerificationCode{}
	err := repository.pool.QueryRow(context, query, accountID, now).Scan(
		&code.ID,
		&code.AccountID,
		&code.CodeHash,
		&code.ExpiresAt,
		&code.Attempts,
		&code.MaxAttempts,
		&code.ConsumedAt,
		&code.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCode
		}
		return nil, fmt.Errorf("postgres_verification_code_repo_find_failed: %w", err)
	}

	return code, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
// This is a single committed UPDATE on purpose: the attempt must be burned
// even if the process dies before the comparison runs.
func (repository *PostgresVerificationCodeRepository) IncrementAttempts(context context.Context, codeID string) (int, error) {
	const query = `
		UPDATE users.verification_code
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`

	var attempts int
	if err := repository.pool.QueryRow(context, query, codeID).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("postgres_verification_code_repo_increment_failed: %w", err)
	}

	return attempts, nil
}

// Consume marks the code consumed without touching the account.
func (repository *PostgresVerificationCodeRepository) Consume(context context.Context, codeID string) error {
	_, err := repository.pool.Exec(context, `
		UPDATE users.verification_code SET consumedat = $2 WHERE id = $1 AND consumedat IS NULL`,
		codeID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres_verification_code_repo_consume_failed: %w", err)
	}
	return nil
}

// ConsumeAndVerify marks the code consumed and the account verified in one
// transaction.
func (repository *PostgresVerificationCodeRepository) ConsumeAndVerify(context context.Context, codeID, accountID string) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin verify transaction: %w", err)
	}
	defer transaction.Rollback(context)

	now := time.Now()

	_, err = transaction.Exec(context, `
		UPDATE users.verification_code SET consumedat = $2 WHERE id = $1 AND consumedat IS NULL`,
		codeID, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to consume verification code: %w", err)
	}

	_, err = transaction.Exec(context, `
		UPDATE users.account SET isverified = TRUE, updatedat = $2 WHERE id = $1`,
		accountID, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to mark account verified: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit verify transaction: %w", err)
	}

	return nil
}

// DeleteExpired removes codes past their expiry.
func (repository *PostgresVerificationCodeRepository) DeleteExpired(context context.Context, now time.Time) error {
	_, err := repository.pool.Exec(context,
		`DELETE FROM users.verification_code WHERE expiresat <= $1`, now)
	if err != nil {
		return fmt.Errorf("postgres_verification_code_repo_delete_expired_failed: %w", err)
	}
	return nil
}

// # Reset Token Repository

const resetTokenColumns = `
	id, accountid, tokenhash, expiresat, consumedat, createdat`

// PostgresResetTokenRepository implements the ResetTokenRepository interface using pgx.
type PostgresResetTokenRepository struct {
	pool *pgxpool.Pool
}

// NewResetTokenRepository creates a new PostgreSQL implementation of the ResetTokenRepository.
func NewResetTokenRepository(pool *pgxpool.Pool) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{pool: pool}
}

// Issue consumes any live reset token for the account and inserts the new
// one, in one transaction.
func (repository *PostgresResetTokenRepository) Issue(context context.Context, token *PasswordResetToken) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin reset issue transaction: %w", err)
	}
	defer transaction.Rollback(context)

	now := time.Now()

	_, err = transaction.Exec(context, `
		UPDATE users.reset_token
		SET consumedat = $2
		WHERE accountid = $1 AND consumedat IS NULL`,
		token.AccountID, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to supersede reset token: %w", err)
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}

	_, err = transaction.Exec(context, `
		INSERT INTO users.reset_token (`+resetTokenColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID,
		token.AccountID,
		token.TokenHash,
		token.ExpiresAt,
		token.ConsumedAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert reset token: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit reset issue transaction: %w", err)
	}

	return nil
}

/*
Consume redeems a reset token and applies its full consequence chain.

Description: Locks the token row, classifies it, then inside the SAME
transaction marks it consumed, replaces the account's password hash, revokes
every active session, and inserts the blacklist entry. A reset is a recovery
from presumed credential compromise; partial application of that chain would
leave the attacker a working session, so all five steps commit or none do.

Parameters:
  - context: context.Context
  - tokenHash: string (SHA-256 digest of the presented reset token)
  - newPasswordHash: string (bcrypt hash of the replacement password)
  - revocation: *AccessTokenRevocation (AccountID is filled from the token row)

Returns:
  - *PasswordResetToken: The consumed token
  - error: ErrInvalidToken, ErrResetTokenUsed, ErrResetTokenExpired
*/
func (repository *PostgresResetTokenRepository) Consume(context context.Context, tokenHash, newPasswordHash string, revocation *AccessTokenRevocation) (*PasswordResetToken, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin reset consume transaction: %w", err)
	}
	defer transaction.Rollback(context)

	token := &PasswordResetToken{}
	err = transaction.QueryRow(context, `
		SELECT `+resetTokenColumns+`
		FROM users.reset_token
		WHERE tokenhash = $1
		FOR UPDATE`,
		tokenHash,
	).Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("postgres_reset_token_repo_consume_lookup_failed: %w", err)
	}

	now := time.Now()
	switch {
	case token.ConsumedAt != nil:
		return nil, ErrResetTokenUsed
	case !token.ExpiresAt.After(now):
		return nil, ErrResetTokenExpired
	}

	_, err = transaction.Exec(context, `
		UPDATE users.reset_token SET consumedat = $2 WHERE id = $1`,
		token.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to consume reset token: %w", err)
	}

	_, err = transaction.Exec(context, `
		UPDATE users.account SET passwordhash = $2, updatedat = $3 WHERE id = $1`,
		token.AccountID, newPasswordHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to update password: %w", err)
	}

	_, err = transaction.Exec(context, `
		UPDATE users.session SET revokedat = $2 WHERE accountid = $1 AND revokedat IS NULL`,
		token.AccountID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to revoke sessions after reset: %w", err)
	}

	revocation.AccountID = token.AccountID
	if err := insertRevocation(context, transaction, revocation); err != nil {
		return nil, err
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit reset consume transaction: %w", err)
	}

	token.ConsumedAt = &now
	return token, nil
}

// DeleteExpired removes tokens past their expiry.
func (repository *PostgresResetTokenRepository) DeleteExpired(context context.Context, now time.Time) error {
	_, err := repository.pool.Exec(context,
		`DELETE FROM users.reset_token WHERE expiresat <= $1`, now)
	if err != nil {
		return fmt.Errorf("postgres_reset_token_repo_delete_expired_failed: %w", err)
	}
	return nil
}
