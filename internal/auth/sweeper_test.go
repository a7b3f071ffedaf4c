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
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

func TestSweeper_RemovesExpiredRowsAcrossAllTables(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	account := fixture.register(t, "sweep@corkboard.app", "hunter2hunter2")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, fixture.sessions.Create(ctx, &auth.Session{
		ID: uuid.New(), AccountID: account.ID, TokenHash: "stale-hash", ExpiresAt: past,
	}))
	require.NoError(t, fixture.sessions.Create(ctx, &auth.Session{
		ID: uuid.New(), AccountID: account.ID, TokenHash: "fresh-hash", ExpiresAt: future,
	}))
	require.NoError(t, fixture.revocations.Create(ctx, &auth.AccessTokenRevocation{
		ID: uuid.New(), AccountID: account.ID, RevokedAt: past, ExpiresAt: past,
	}))
	require.NoError(t, fixture.resetTokens.Issue(ctx, &auth.PasswordResetToken{
		ID: uuid.New(), AccountID: account.ID, TokenHash: "stale-reset", ExpiresAt: past,
	}))

	sweeper := auth.NewSweeper(fixture.sessions, fixture.revocations, fixture.codes, fixture.resetTokens, 50*time.Millisecond)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// The first sweep runs immediately on Start.
	assert.Eventually(t, func() bool {
		_, staleErr := fixture.sessions.FindByTokenHash(ctx, "stale-hash")
		_, freshErr := fixture.sessions.FindByTokenHash(ctx, "fresh-hash")
		return staleErr != nil && freshErr == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeper_StopJoinsTheLoop(t *testing.T) {
	fixture := newServiceFixture()

	sweeper := auth.NewSweeper(fixture.sessions, fixture.revocations, fixture.codes, fixture.resetTokens, 10*time.Millisecond)
	sweeper.Start(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop in time")
	}

	// Stopping an already-stopped or never-started sweeper is safe.
	sweeper.Stop()
	(&auth.Sweeper{}).Stop()
}

func TestSweeper_ExpiredSessionCannotRotateBeforeSweep(t *testing.T) {
	fixture := newServiceFixture()
	ctx := context.Background()
	account := fixture.register(t, "lazy@corkboard.app", "hunter2hunter2")

	// Expiry is enforced at read time; the sweeper is hygiene, not policy.
	session := &auth.Session{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: "expired-but-unswept",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, fixture.sessions.Create(ctx, session))

	_, err := fixture.sessions.Rotate(ctx, "expired-but-unswept", "", &auth.Session{
		ID: uuid.New(), TokenHash: "next-hash", ExpiresAt: time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, auth.ErrSessionExpired)
}
