// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes rows whose expiry has passed: sessions,
// blacklist entries, verification codes, and reset tokens. Expiry is
// enforced at read time everywhere, so the sweeper is purely hygiene;
// skipping a cycle is harmless.
type Sweeper struct {
	sessions    SessionRepository
	revocations RevocationRepository
	codes       VerificationCodeRepository
	resetTokens ResetTokenRepository
	interval    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a sweeper; call Start to begin sweeping.
func NewSweeper(
	sessions SessionRepository,
	revocations RevocationRepository,
	codes VerificationCodeRepository,
	resetTokens ResetTokenRepository,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		sessions:    sessions,
		revocations: revocations,
		codes:       codes,
		resetTokens: resetTokens,
		interval:    interval,
	}
}

// Start launches the background loop. An immediate sweep runs first so a
// restarted instance does not wait a full interval to clear backlog.
func (sweeper *Sweeper) Start(ctx context.Context) {
	ctx, sweeper.cancel = context.WithCancel(ctx)
	sweeper.done = make(chan struct{})

	go func() {
		defer close(sweeper.done)

		sweeper.sweep(ctx)

		ticker := time.NewTicker(sweeper.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweeper.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (sweeper *Sweeper) Stop() {
	if sweeper.cancel == nil {
		return
	}
	sweeper.cancel()
	<-sweeper.done
}

// sweep runs all four deletions. Each failure is logged and the rest still
// run; one unhealthy table must not stop hygiene on the others.
func (sweeper *Sweeper) sweep(ctx context.Context) {
	now := time.Now()

	targets := []struct {
		name string
		run  func(context.Context, time.Time) error
	}{
		{"sessions", sweeper.sessions.DeleteExpired},
		{"token_revocations", sweeper.revocations.DeleteExpired},
		{"verification_codes", sweeper.codes.DeleteExpired},
		{"reset_tokens", sweeper.resetTokens.DeleteExpired},
	}

	for _, target := range targets {
		if err := target.run(ctx, now); err != nil {
			slog.ErrorContext(ctx, "expired row sweep failed", "target", target.name, "error", err)
		}
	}
}
