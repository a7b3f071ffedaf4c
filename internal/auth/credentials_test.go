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
	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
)

func TestRegister_RequiresTermsAcceptance(t *testing.T) {
	fixture := newServiceFixture()

	_, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:         "new@corkboard.app",
		Password:      "hunter2hunter2",
		DisplayName:   "New User",
		TermsAccepted: false,
	})

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)
}

func TestRegister_DuplicateEmailIsGenericConflict(t *testing.T) {
	fixture := newServiceFixture()
	fixture.register(t, "dup@corkboard.app", "hunter2hunter2")

	_, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:         "dup@corkboard.app",
		Password:      "differentpassword",
		DisplayName:   "Other User",
		TermsAccepted: true,
	})

	require.ErrorIs(t, err, auth.ErrAccountExists)

	// The message must not confirm which field collided.
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.NotContains(t, ae.Message, "email")
}

func TestRegister_NeverStoresPlaintextAndMailsCode(t *testing.T) {
	fixture := newServiceFixture()
	account := fixture.register(t, "alice@corkboard.app", "hunter2hunter2")

	stored, err := fixture.accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2hunter2", stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, "hunter2")
	assert.Equal(t, sec.RoleMember, stored.Role)
	assert.False(t, stored.IsVerified)

	// A verification code went out on registration.
	assert.Len(t, fixture.mailer.lastCode("alice@corkboard.app"), auth.VerificationCodeDigits)
}

func TestRegister_SurvivesMailFailure(t *testing.T) {
	fixture := newServiceFixture()
	fixture.mailer.failNext = true

	account, err := fixture.service.Register(context.Background(), auth.RegisterInput{
		Email:         "bob@corkboard.app",
		Password:      "hunter2hunter2",
		DisplayName:   "Bob",
		TermsAccepted: true,
	})

	require.NoError(t, err)
	_, err = fixture.accounts.FindByID(context.Background(), account.ID)
	assert.NoError(t, err)
}

func TestAuthenticate_Success(t *testing.T) {
	fixture := newServiceFixture()
	registered := fixture.register(t, "carol@corkboard.app", "hunter2hunter2")

	account, err := fixture.service.Authenticate(context.Background(), "carol@corkboard.app", "hunter2hunter2")

	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
}

func TestAuthenticate_SameErrorForMissAndWrongPassword(t *testing.T) {
	fixture := newServiceFixture()
	fixture.register(t, "dave@corkboard.app", "hunter2hunter2")

	_, missErr := fixture.service.Authenticate(context.Background(), "nobody@corkboard.app", "whatever12345")
	_, wrongErr := fixture.service.Authenticate(context.Background(), "dave@corkboard.app", "wrongpassword")

	require.ErrorIs(t, missErr, auth.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, auth.ErrInvalidCredentials)
	assert.Equal(t, missErr.Error(), wrongErr.Error())
}

func TestAuthenticate_EmailIsCaseInsensitive(t *testing.T) {
	fixture := newServiceFixture()
	fixture.register(t, "erin@corkboard.app", "hunter2hunter2")

	_, err := fixture.service.Authenticate(context.Background(), "  ERIN@Corkboard.App ", "hunter2hunter2")
	assert.NoError(t, err)
}

func TestAuthenticate_RejectsExternalAccounts(t *testing.T) {
	fixture := newServiceFixture()

	_, err := fixture.service.FindOrCreate(context.Background(), auth.ExternalIdentity{
		Provider:    "github",
		ProviderID:  "gh-42",
		Email:       "oauth@corkboard.app",
		DisplayName: "OAuth User",
	})
	require.NoError(t, err)

	_, err = fixture.service.Authenticate(context.Background(), "oauth@corkboard.app", "anypassword123")
	require.ErrorIs(t, err, auth.ErrExternalSignIn)
}

func TestAuthenticate_ActiveBanCarriesReasonAndExpiry(t *testing.T) {
	fixture := newServiceFixture()
	account := fixture.register(t, "frank@corkboard.app", "hunter2hunter2")

	until := time.Now().Add(48 * time.Hour)
	require.NoError(t, fixture.service.Ban(context.Background(), account.ID, &until, "spam"))

	_, err := fixture.service.Authenticate(context.Background(), "frank@corkboard.app", "hunter2hunter2")
	require.Error(t, err)

	var banned *auth.BannedError
	require.ErrorAs(t, err, &banned)
	assert.Equal(t, "spam", banned.Reason)
	require.NotNil(t, banned.Until)
	assert.WithinDuration(t, until, *banned.Until, time.Second)
}

func TestAuthenticate_LapsedBanIsLiftedOnLogin(t *testing.T) {
	fixture := newServiceFixture()
	account := fixture.register(t, "grace@corkboard.app", "hunter2hunter2")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, fixture.service.Ban(context.Background(), account.ID, &past, "cooldown"))

	loggedIn, err := fixture.service.Authenticate(context.Background(), "grace@corkboard.app", "hunter2hunter2")
	require.NoError(t, err)
	assert.False(t, loggedIn.IsBanned)

	// The lift is persisted, not just reflected in the returned value.
	stored, err := fixture.accounts.FindByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsBanned)
	assert.Nil(t, stored.BannedUntil)
}

func TestAuthenticate_PermanentBanNeverLapses(t *testing.T) {
	fixture := newServiceFixture()
	account := fixture.register(t, "henry@corkboard.app", "hunter2hunter2")

	require.NoError(t, fixture.service.Ban(context.Background(), account.ID, nil, "tos violation"))

	_, err := fixture.service.Authenticate(context.Background(), "henry@corkboard.app", "hunter2hunter2")
	require.Error(t, err)

	var banned *auth.BannedError
	require.ErrorAs(t, err, &banned)
	assert.Nil(t, banned.Until)
}

func TestChangePassword_RevokesOtherSessionsOnly(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	account := fixture.register(t, "iris@corkboard.app", "hunter2hunter2")

	current, err := fixture.service.IssueSession(ctx, account, auth.SessionMeta{UserAgent: "laptop"})
	require.NoError(t, err)
	_, err = fixture.service.IssueSession(ctx, account, auth.SessionMeta{UserAgent: "phone"})
	require.NoError(t, err)
	require.Equal(t, 2, fixture.sessions.activeCount(account.ID))

	currentSession, err := fixture.sessions.FindByTokenHash(ctx, sec.HashToken(current.RefreshToken))
	require.NoError(t, err)

	err = fixture.service.ChangePassword(ctx, account.ID, "hunter2hunter2", "newpassword123", currentSession.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, fixture.sessions.activeCount(account.ID))

	// New password works, old one does not.
	_, err = fixture.service.Authenticate(ctx, "iris@corkboard.app", "newpassword123")
	assert.NoError(t, err)
	_, err = fixture.service.Authenticate(ctx, "iris@corkboard.app", "hunter2hunter2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestChangePassword_RejectsWrongCurrentPassword(t *testing.T) {
	fixture := newServiceFixture()
	account := fixture.register(t, "judy@corkboard.app", "hunter2hunter2")

	err := fixture.service.ChangePassword(context.Background(), account.ID, "wrongcurrent", "newpassword123", "")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
