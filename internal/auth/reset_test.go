// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corkboardhq/corkboard/internal/auth"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
)

func TestPasswordReset_RoundTrip(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	fixture.register(t, "reset@corkboard.app", "hunter2hunter2")

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "reset@corkboard.app"))
	rawToken := fixture.mailer.lastResetToken("reset@corkboard.app")
	require.NotEmpty(t, rawToken)

	require.NoError(t, fixture.service.CompletePasswordReset(ctx, rawToken, "brandnewpass1"))

	_, err := fixture.service.Authenticate(ctx, "reset@corkboard.app", "brandnewpass1")
	assert.NoError(t, err)
	_, err = fixture.service.Authenticate(ctx, "reset@corkboard.app", "hunter2hunter2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRequestPasswordReset_UnknownEmailLooksIdentical(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	fixture.register(t, "known@corkboard.app", "hunter2hunter2")

	// Both calls succeed; only the mailer knows the difference.
	assert.NoError(t, fixture.service.RequestPasswordReset(ctx, "known@corkboard.app"))
	assert.NoError(t, fixture.service.RequestPasswordReset(ctx, "unknown@corkboard.app"))

	assert.NotEmpty(t, fixture.mailer.lastResetToken("known@corkboard.app"))
	assert.Empty(t, fixture.mailer.lastResetToken("unknown@corkboard.app"))
}

func TestRequestPasswordReset_SkipsExternalAccounts(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()

	_, err := fixture.service.FindOrCreate(ctx, auth.ExternalIdentity{
		Provider: "google", ProviderID: "g-1", Email: "external@corkboard.app",
	})
	require.NoError(t, err)

	assert.NoError(t, fixture.service.RequestPasswordReset(ctx, "external@corkboard.app"))
	assert.Empty(t, fixture.mailer.lastResetToken("external@corkboard.app"))
}

func TestCompletePasswordReset_TokenIsSingleUse(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	fixture.register(t, "single@corkboard.app", "hunter2hunter2")

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "single@corkboard.app"))
	rawToken := fixture.mailer.lastResetToken("single@corkboard.app")

	require.NoError(t, fixture.service.CompletePasswordReset(ctx, rawToken, "firstnewpass1"))

	err := fixture.service.CompletePasswordReset(ctx, rawToken, "secondnewpass1")
	require.ErrorIs(t, err, auth.ErrResetTokenUsed)

	// The failed second attempt must not have changed anything.
	_, err = fixture.service.Authenticate(ctx, "single@corkboard.app", "firstnewpass1")
	assert.NoError(t, err)
}

func TestCompletePasswordReset_ExpiredToken(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	account := fixture.register(t, "expired@corkboard.app", "hunter2hunter2")

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "expired@corkboard.app"))
	rawToken := fixture.mailer.lastResetToken("expired@corkboard.app")

	// Age the stored token past its window.
	fixture.resetTokens.mu.Lock()
	stored := fixture.resetTokens.byHash[sec.HashToken(rawToken)]
	require.Equal(t, account.ID, stored.AccountID)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	fixture.resetTokens.mu.Unlock()

	err := fixture.service.CompletePasswordReset(ctx, rawToken, "newpassword12")
	require.ErrorIs(t, err, auth.ErrResetTokenExpired)
}

func TestCompletePasswordReset_UnknownToken(t *testing.T) {
	fixture := newServiceFixture()

	err := fixture.service.CompletePasswordReset(context.Background(), "not-a-token", "newpassword12")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	err = fixture.service.CompletePasswordReset(context.Background(), "", "newpassword12")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestCompletePasswordReset_RevokesAllSessions(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	account := fixture.register(t, "revoke@corkboard.app", "hunter2hunter2")

	session, err := fixture.service.IssueSession(ctx, account, auth.SessionMeta{})
	require.NoError(t, err)
	_, err = fixture.service.IssueSession(ctx, account, auth.SessionMeta{})
	require.NoError(t, err)
	require.Equal(t, 2, fixture.sessions.activeCount(account.ID))

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "revoke@corkboard.app"))
	rawToken := fixture.mailer.lastResetToken("revoke@corkboard.app")
	require.NoError(t, fixture.service.CompletePasswordReset(ctx, rawToken, "recoveredpass1"))

	// Every session is gone and outstanding access tokens are blacklisted.
	assert.Equal(t, 0, fixture.sessions.activeCount(account.ID))

	claims, err := fixture.tokens.VerifyToken(session.AccessToken)
	require.NoError(t, err)
	err = fixture.service.Authorize(ctx, claims)
	require.ErrorIs(t, err, auth.ErrTokenRevoked)

	_, err = fixture.service.Rotate(ctx, session.RefreshToken, "", auth.SessionMeta{})
	require.ErrorIs(t, err, auth.ErrSessionRevoked)
}

func TestRequestPasswordReset_NewTokenSupersedesOld(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	fixture.register(t, "super@corkboard.app", "hunter2hunter2")

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "super@corkboard.app"))
	firstToken := fixture.mailer.lastResetToken("super@corkboard.app")

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "super@corkboard.app"))
	secondToken := fixture.mailer.lastResetToken("super@corkboard.app")
	require.NotEqual(t, firstToken, secondToken)

	err := fixture.service.CompletePasswordReset(ctx, firstToken, "newpassword12")
	require.ErrorIs(t, err, auth.ErrResetTokenUsed)

	assert.NoError(t, fixture.service.CompletePasswordReset(ctx, secondToken, "newpassword12"))
}
