// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

// PostgreSQL implementations of the account and session repositories.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement the domain-defined interfaces (e.g., [AccountRepository]) using
// the [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
//
// # Transactions
//
// Methods whose interface contract says "one transaction" use
// pool.Begin / defer Rollback / Commit with row locks where classification
// and mutation must be inseparable (rotation, bans, reset consumption).
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/dberr"
)

// # Account Repository

const accountColumns = `
	id, email, passwordhash, displayname, role, isverified,
	isbanned, banneduntil, banreason, provider, providerid,
	createdat, updatedat`

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
Create persists a new account record into the users.account table.

Description: Relies on the table's unique indexes (email; provider+providerid)
instead of a prior SELECT, so two racing registrations cannot both succeed.

Parameters:
  - context: context.Context
  - account: *Account (Entity to persist)

Returns:
  - error: ErrAccountExists on a uniqueness collision, or connectivity errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO users.account (` + accountColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.DisplayName,
		account.Role,
		account.IsVerified,
		account.IsBanned,
		account.BannedUntil,
		account.BanReason,
		account.Provider,
		account.ProviderID,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

// FindByID retrieves an account record by its primary key.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE id = $1`

	return repository.scanOne(context, query, id)
}

// FindByEmail retrieves an account record by its unique email address.
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE email = $1`

	return repository.scanOne(context, query, email)
}

// FindByProvider retrieves an account by its external identity pair.
func (repository *PostgresAccountRepository) FindByProvider(context context.Context, provider, providerID string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM users.account
		WHERE provider = $1 AND providerid = $2`

	return repository.scanOne(context, query, provider, providerID)
}

func (repository *PostgresAccountRepository) scanOne(context context.Context, query string, args ...any) (*Account, error) {
	account := &Account{}
	err := repository.pool.QueryRow(context, query, args...).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.DisplayName,
		&account.Role,
		&account.IsVerified,
		&account.IsBanned,
		&account.BannedUntil,
		&account.BanReason,
		&account.Provider,
		&account.ProviderID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_failed: %w", err)
	}

	return account, nil
}

// UpdatePassword replaces only the account's password hash.
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, accountID, newHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}

	return nil
}

// MarkVerified flips the account's verification flag.
func (repository *PostgresAccountRepository) MarkVerified(context context.Context, accountID string) error {
	const query = `
		UPDATE users.account
		SET isverified = TRUE, updatedat = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_mark_verified_failed: %w", err)
	}

	return nil
}

// LiftBan clears the ban fields once a temporary ban has lapsed.
func (repository *PostgresAccountRepository) LiftBan(context context.Context, accountID string) error {
	const query = `
		UPDATE users.account
		SET isbanned = FALSE, banneduntil = NULL, banreason = '', updatedat = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_lift_ban_failed: %w", err)
	}

	return nil
}

/*
Ban suspends an account within a single ACID-compliant PostgreSQL transaction.

Description: Sets the ban fields, revokes every active session of the account,
and inserts the access-token blacklist entry. If any of the three writes fails,
the entire operation rolls back, so a banned account can never retain a live
session or an unblacklisted token.

Parameters:
  - context: context.Context
  - accountID: string
  - until: *time.Time (nil for a permanent ban)
  - reason: string (shown to the user on rejected requests)
  - revocation: *AccessTokenRevocation (covers all outstanding access tokens)

Returns:
  - error: nil on a successfully committed sequence
*/
func (repository *PostgresAccountRepository) Ban(context context.Context, accountID string, until *time.Time, reason string, revocation *AccessTokenRevocation) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin ban transaction: %w", err)
	}
	defer transaction.Rollback(context)

	now := time.Now()

	_, err = transaction.Exec(context, `
		UPDATE users.account
		SET isbanned = TRUE, banneduntil = $2, banreason = $3, updatedat = $4
		WHERE id = $1`,
		accountID, until, reason, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to set ban fields: %w", err)
	}

	_, err = transaction.Exec(context, `
		UPDATE users.session
		SET revokedat = $2
		WHERE accountid = $1 AND revokedat IS NULL`,
		accountID, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to revoke banned sessions: %w", err)
	}

	if err := insertRevocation(context, transaction, revocation); err != nil {
		return err
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit ban transaction: %w", err)
	}

	return nil
}

// # Session Repository

const sessionColumns = `
	id, accountid, tokenhash, useragent, ipaddress, expiresat, revokedat, createdat`

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create persists a new session row.
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (` + sessionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.AccountID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.RevokedAt,
		session.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

// FindByTokenHash returns the session matching the hash in any state.
// Revoked and expired rows are returned too; the caller classifies them.
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE tokenhash = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&session.ID,
		&session.AccountID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
Rotate atomically supersedes one session with its successor.

Description: Locks the old row with SELECT ... FOR UPDATE, classifies its
state, marks it revoked, and inserts the successor, all inside one
transaction. Two concurrent rotations of the same token serialize on the row
lock: the second transaction finds the row already revoked and fails with
[ErrSessionRevoked]. That failure mode IS the replay detection.

Parameters:
  - context: context.Context
  - tokenHash: string (SHA-256 digest of the presented refresh token)
  - expectedOwner: string (caller-asserted account ID, "" to skip the check)
  - next: *Session (successor; AccountID is filled from the old row)

Returns:
  - *Session: The superseded session
  - error: ErrInvalidToken, ErrSessionRevoked, ErrSessionExpired, ErrOwnerMismatch
*/
func (repository *PostgresSessionRepository) Rotate(context context.Context, tokenHash, expectedOwner string, next *Session) (*Session, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin rotate transaction: %w", err)
	}
	defer transaction.Rollback(context)

	old := &Session{}
	err = transaction.QueryRow(context, `
		SELECT `+sessionColumns+`
		FROM users.session
		WHERE tokenhash = $1
		FOR UPDATE`,
		tokenHash,
	).Scan(
		&old.ID,
		&old.AccountID,
		&old.TokenHash,
		&old.UserAgent,
		&old.IPAddress,
		&old.ExpiresAt,
		&old.RevokedAt,
		&old.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("postgres_session_repo_rotate_lookup_failed: %w", err)
	}

	now := time.Now()
	switch {
	case old.RevokedAt != nil:
		return nil, ErrSessionRevoked
	case old.Expired(now):
		return nil, ErrSessionExpired
	case expectedOwner != "" && old.AccountID != expectedOwner:
		return nil, ErrOwnerMismatch
	}

	_, err = transaction.Exec(context, `
		UPDATE users.session SET revokedat = $2 WHERE id = $1`,
		old.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rotate_revoke_failed: %w", err)
	}

	next.AccountID = old.AccountID
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	_, err = transaction.Exec(context, `
		INSERT INTO users.session (`+sessionColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		next.ID,
		next.AccountID,
		next.TokenHash,
		next.UserAgent,
		next.IPAddress,
		next.ExpiresAt,
		next.RevokedAt,
		next.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rotate_insert_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit rotate transaction: %w", err)
	}

	return old, nil
}

// RevokeWithBlacklist revokes one session and inserts the matching blacklist
// entry in one transaction.
func (repository *PostgresSessionRepository) RevokeWithBlacklist(context context.Context, sessionID string, revocation *AccessTokenRevocation) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin revoke transaction: %w", err)
	}
	defer transaction.Rollback(context)

	_, err = transaction.Exec(context, `
		UPDATE users.session SET revokedat = $2 WHERE id = $1 AND revokedat IS NULL`,
		sessionID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}

	if err := insertRevocation(context, transaction, revocation); err != nil {
		return err
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit revoke transaction: %w", err)
	}

	return nil
}

// RevokeAllExcept revokes every active session of the account except
// keepSessionID ("" revokes all) and inserts the blacklist entry, in one
// transaction. Used by password change and reset.
func (repository *PostgresSessionRepository) RevokeAllExcept(context context.Context, accountID, keepSessionID string, revocation *AccessTokenRevocation) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin revoke-all transaction: %w", err)
	}
	defer transaction.Rollback(context)

	_, err = transaction.Exec(context, `
		UPDATE users.session
		SET revokedat = $2
		WHERE accountid = $1 AND revokedat IS NULL AND ($3 = '' OR id <> $3)`,
		accountID, time.Now(), keepSessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	if err := insertRevocation(context, transaction, revocation); err != nil {
		return err
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres: failed to commit revoke-all transaction: %w", err)
	}

	return nil
}

// DeleteExpired physically removes sessions past their expiry.
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, now time.Time) error {
	_, err := repository.pool.Exec(context,
		`DELETE FROM users.session WHERE expiresat <= $1`, now)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_delete_expired_failed: %w", err)
	}
	return nil
}

// insertRevocation writes a blacklist entry inside an open transaction. It is
// shared by every path that must pair a session mutation with a blacklist
// insert (ban, logout, revoke-all, reset consumption).
func insertRevocation(context context.Context, transaction pgx.Tx, revocation *AccessTokenRevocation) error {
	_, err := transaction.Exec(context, `
		INSERT INTO users.token_revocation (id, accountid, revokedat, expiresat, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		revocation.ID,
		revocation.AccountID,
		revocation.RevokedAt,
		revocation.ExpiresAt,
		revocation.Reason,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert token revocation: %w", err)
	}
	return nil
}
