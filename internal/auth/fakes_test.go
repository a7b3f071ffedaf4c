// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corkboardhq/corkboard/internal/auth"
	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/golang-jwt/jwt/v5"
)

// In-memory repository fakes. They honor the same contracts as the
// PostgreSQL implementations, including the "one transaction" semantics
// (serialized under a single mutex) and the sentinel errors.

// # Account Repository Fake

type memAccounts struct {
	mu       sync.Mutex
	byID     map[string]*auth.Account
	sessions *memSessions // for Ban's cross-table transaction
}

func newMemAccounts(sessions *memSessions) *memAccounts {
	return &memAccounts{byID: map[string]*auth.Account{}, sessions: sessions}
}

func (m *memAccounts) Create(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == account.Email && account.Email != "" {
			return auth.ErrAccountExists
		}
		if account.ProviderID != "" && existing.Provider == account.Provider && existing.ProviderID == account.ProviderID {
			return auth.ErrAccountExists
		}
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	clone := *account
	m.byID[account.ID] = &clone
	return nil
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[id]; ok {
		clone := *account
		return &clone, nil
	}
	return nil, apperr.NotFound("Account")
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (m *memAccounts) FindByProvider(_ context.Context, provider, providerID string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Provider == provider && account.ProviderID == providerID {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (m *memAccounts) UpdatePassword(_ context.Context, accountID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[accountID]; ok {
		account.PasswordHash = newHash
	}
	return nil
}

func (m *memAccounts) MarkVerified(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[accountID]; ok {
		account.IsVerified = true
	}
	return nil
}

func (m *memAccounts) LiftBan(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byID[accountID]; ok {
		account.IsBanned = false
		account.BannedUntil = nil
		account.BanReason = ""
	}
	return nil
}

func (m *memAccounts) Ban(ctx context.Context, accountID string, until *time.Time, reason string, revocation *auth.AccessTokenRevocation) error {
	m.mu.Lock()
	if account, ok := m.byID[accountID]; ok {
		account.IsBanned = true
		account.BannedUntil = until
		account.BanReason = reason
	}
	m.mu.Unlock()

	if err := m.sessions.RevokeAllExcept(ctx, accountID, "", revocation); err != nil {
		return err
	}
	return nil
}

// # Session Repository Fake

type memSessions struct {
	mu          sync.Mutex
	byHash      map[string]*auth.Session
	revocations *memRevocations
	findErr     error // when set, FindByTokenHash fails with this
}

func newMemSessions(revocations *memRevocations) *memSessions {
	return &memSessions{byHash: map[string]*auth.Session{}, revocations: revocations}
}

func (m *memSessions) Create(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	clone := *session
	m.byHash[session.TokenHash] = &clone
	return nil
}

func (m *memSessions) FindByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if session, ok := m.byHash[tokenHash]; ok {
		clone := *session
		return &clone, nil
	}
	return nil, auth.ErrInvalidToken
}

func (m *memSessions) Rotate(_ context.Context, tokenHash, expectedOwner string, next *auth.Session) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byHash[tokenHash]
	if !ok {
		return nil, auth.ErrInvalidToken
	}

	now := time.Now()
	switch {
	case old.RevokedAt != nil:
		return nil, auth.ErrSessionRevoked
	case old.Expired(now):
		return nil, auth.ErrSessionExpired
	case expectedOwner != "" && old.AccountID != expectedOwner:
		return nil, auth.ErrOwnerMismatch
	}

	old.RevokedAt = &now
	next.AccountID = old.AccountID
	next.CreatedAt = now
	clone := *next
	m.byHash[next.TokenHash] = &clone

	oldClone := *old
	return &oldClone, nil
}

func (m *memSessions) RevokeWithBlacklist(ctx context.Context, sessionID string, revocation *auth.AccessTokenRevocation) error {
	m.mu.Lock()
	now := time.Now()
	for _, session := range m.byHash {
		if session.ID == sessionID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	m.mu.Unlock()
	return m.revocations.Create(ctx, revocation)
}

func (m *memSessions) RevokeAllExcept(ctx context.Context, accountID, keepSessionID string, revocation *auth.AccessTokenRevocation) error {
	m.mu.Lock()
	now := time.Now()
	for _, session := range m.byHash {
		if session.AccountID == accountID && session.ID != keepSessionID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	m.mu.Unlock()
	return m.revocations.Create(ctx, revocation)
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.byHash {
		if !session.ExpiresAt.After(now) {
			delete(m.byHash, hash)
		}
	}
	return nil
}

func (m *memSessions) activeCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, session := range m.byHash {
		if session.AccountID == accountID && session.Active(time.Now()) {
			count++
		}
	}
	return count
}

// # Revocation Repository Fake

type memRevocations struct {
	mu      sync.Mutex
	entries []*auth.AccessTokenRevocation
}

func newMemRevocations() *memRevocations {
	return &memRevocations{}
}

func (m *memRevocations) Create(_ context.Context, revocation *auth.AccessTokenRevocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *revocation
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memRevocations) FindCovering(_ context.Context, accountID string, issuedAt, now time.Time) (*auth.AccessTokenRevocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.AccountID == accountID && entry.Covers(issuedAt, now) {
			clone := *entry
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memRevocations) DeleteExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, entry := range m.entries {
		if entry.ExpiresAt.After(now) {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	return nil
}

// # Verification Code Repository Fake

type memCodes struct {
	mu       sync.Mutex
	byID     map[string]*auth.EmailVerificationCode
	accounts *memAccounts
}

func newMemCodes(accounts *memAccounts) *memCodes {
	return &memCodes{byID: map[string]*auth.EmailVerificationCode{}, accounts: accounts}
}

func (m *memCodes) Issue(_ context.Context, code *auth.EmailVerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, existing := range m.byID {
		if existing.AccountID == code.AccountID && existing.ConsumedAt == nil {
			consumed := now
			existing.ConsumedAt = &consumed
		}
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = now
	}
	clone := *code
	m.byID[code.ID] = &clone
	return nil
}

func (m *memCodes) FindLive(_ context.Context, accountID string, now time.Time) (*auth.EmailVerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range m.byID {
		if code.AccountID == accountID && code.Live(now) {
			clone := *code
			return &clone, nil
		}
	}
	return nil, auth.ErrNoActiveCode
}

func (m *memCodes) IncrementAttempts(_ context.Context, codeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byID[codeID]
	if !ok {
		return 0, apperr.NotFound("Verification code")
	}
	code.Attempts++
	return code.Attempts, nil
}

func (m *memCodes) Consume(_ context.Context, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code, ok := m.byID[codeID]; ok && code.ConsumedAt == nil {
		now := time.Now()
		code.ConsumedAt = &now
	}
	return nil
}

func (m *memCodes) ConsumeAndVerify(ctx context.Context, codeID, accountID string) error {
	if err := m.Consume(ctx, codeID); err != nil {
		return err
	}
	return m.accounts.MarkVerified(ctx, accountID)
}

func (m *memCodes) DeleteExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, code := range m.byID {
		if !code.ExpiresAt.After(now) {
			delete(m.byID, id)
		}
	}
	return nil
}

// # Reset Token Repository Fake

type memResetTokens struct {
	mu       sync.Mutex
	byHash   map[string]*auth.PasswordResetToken
	accounts *memAccounts
	sessions *memSessions
}

func newMemResetTokens(accounts *memAccounts, sessions *memSessions) *memResetTokens {
	return &memResetTokens{byHash: map[string]*auth.PasswordResetToken{}, accounts: accounts, sessions: sessions}
}

func (m *memResetTokens) Issue(_ context.Context, token *auth.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, existing := range m.byHash {
		if existing.AccountID == token.AccountID && existing.ConsumedAt == nil {
			consumed := now
			existing.ConsumedAt = &consumed
		}
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	clone := *token
	m.byHash[token.TokenHash] = &clone
	return nil
}

func (m *memResetTokens) Consume(ctx context.Context, tokenHash, newPasswordHash string, revocation *auth.AccessTokenRevocation) (*auth.PasswordResetToken, error) {
	m.mu.Lock()
	token, ok := m.byHash[tokenHash]
	if !ok {
		m.mu.Unlock()
		return nil, auth.ErrInvalidToken
	}

	now := time.Now()
	switch {
	case token.ConsumedAt != nil:
		m.mu.Unlock()
		return nil, auth.ErrResetTokenUsed
	case !token.ExpiresAt.After(now):
		m.mu.Unlock()
		return nil, auth.ErrResetTokenExpired
	}

	token.ConsumedAt = &now
	clone := *token
	m.mu.Unlock()

	if err := m.accounts.UpdatePassword(ctx, token.AccountID, newPasswordHash); err != nil {
		return nil, err
	}
	revocation.AccountID = token.AccountID
	if err := m.sessions.RevokeAllExcept(ctx, token.AccountID, "", revocation); err != nil {
		return nil, err
	}
	return &clone, nil
}

func (m *memResetTokens) DeleteExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, token := range m.byHash {
		if !token.ExpiresAt.After(now) {
			delete(m.byHash, hash)
		}
	}
	return nil
}

// # Token Provider Fake

// fakeTokenProvider issues opaque tokens and resolves them from a map,
// mimicking real JWT behavior (stable subject, recorded iat) without keys.
type fakeTokenProvider struct {
	mu     sync.Mutex
	serial int
	issued map[string]*sec.AuthClaims
}

func newFakeTokenProvider() *fakeTokenProvider {
	return &fakeTokenProvider{issued: map[string]*sec.AuthClaims{}}
}

func (f *fakeTokenProvider) GenerateAccessToken(accountID, role string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serial++
	token := fmt.Sprintf("token-%d", f.serial)
	now := time.Now()
	f.issued[token] = &sec.AuthClaims{
		UserID: accountID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return token, nil
}

func (f *fakeTokenProvider) VerifyToken(tokenString string) (*sec.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.issued[tokenString]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return claims, nil
}

// # Mailer Fake

type recordingMailer struct {
	mu         sync.Mutex
	codes      map[string]string // email -> last raw code
	resetLinks map[string]string // email -> last raw token
	failNext   bool
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: map[string]string{}, resetLinks: map[string]string{}}
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, email, code, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("smtp unavailable")
	}
	m.codes[email] = code
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, token, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("smtp unavailable")
	}
	m.resetLinks[email] = token
	return nil
}

func (m *recordingMailer) lastCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func (m *recordingMailer) lastResetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLinks[email]
}

// # Test Harness

type serviceFixture struct {
	service     *auth.Service
	accounts    *memAccounts
	sessions    *memSessions
	revocations *memRevocations
	codes       *memCodes
	resetTokens *memResetTokens
	exchange    *auth.RedisExchangeCodeStore
	tokens      *fakeTokenProvider
	mailer      *recordingMailer
}

func newServiceFixture() *serviceFixture {
	revocations := newMemRevocations()
	sessions := newMemSessions(revocations)
	accounts := newMemAccounts(sessions)
	codes := newMemCodes(accounts)
	resetTokens := newMemResetTokens(accounts, sessions)
	exchange := auth.NewExchangeCodeStore(nil) // in-process fallback
	tokens := newFakeTokenProvider()
	mailer := newRecordingMailer()

	service := auth.NewService(accounts, sessions, revocations, codes, resetTokens, exchange, tokens, mailer)

	return &serviceFixture{
		service:     service,
		accounts:    accounts,
		sessions:    sessions,
		revocations: revocations,
		codes:       codes,
		resetTokens: resetTokens,
		exchange:    exchange,
		tokens:      tokens,
		mailer:      mailer,
	}
}

func (f *serviceFixture) register(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, email, password string) *auth.Account {
	t.Helper()
	account, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email:         email,
		Password:      password,
		DisplayName:   "Test User",
		TermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return account
}
