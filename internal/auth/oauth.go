// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/pkg/uuid"
)

// ExternalIdentity is the profile handed back by an OAuth provider after
// the provider's own handshake has succeeded. The pair (Provider,
// ProviderID) is the stable key; email and name are display material.
type ExternalIdentity struct {
	Provider    string
	ProviderID  string
	Email       string
	DisplayName string
}

// # External Identity Linking

/*
FindOrCreate resolves an external identity to a local account.

Resolution order:

 1. An account already linked to (provider, providerID) wins outright.
 2. Otherwise the identity's email is looked up. A hit belonging to a
    DIFFERENT provider (local password included) is a conflict: silently
    attaching an external login to an existing credential account would
    let whoever controls the external identity hijack it. The caller gets
    [ErrIdentityConflict] and the user links accounts explicitly or not
    at all.
 3. No match anywhere creates a fresh account. Provider-asserted emails
    are taken as verified; there is no password to set.
*/
func (service *Service) FindOrCreate(ctx context.Context, identity ExternalIdentity) (*Account, error) {
	account, err := service.accounts.FindByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		return account, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("auth_service_provider_lookup_failed: %w", err)
	}

	email := normalizeEmail(identity.Email)
	if email != "" {
		if existing, err := service.accounts.FindByEmail(ctx, email); err == nil {
			if existing.Provider != identity.Provider || existing.ProviderID != identity.ProviderID {
				return nil, ErrIdentityConflict
			}
			return existing, nil
		} else if !apperr.IsNotFound(err) {
			return nil, fmt.Errorf("auth_service_email_lookup_failed: %w", err)
		}
	}

	account = &Account{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: identity.DisplayName,
		Role:        sec.RoleMember,
		IsVerified:  true,
		Provider:    identity.Provider,
		ProviderID:  identity.ProviderID,
	}

	if err := service.accounts.Create(ctx, account); err != nil {
		// A racing FindOrCreate for the same identity may have inserted
		// first; the unique index turns that into ErrAccountExists, and the
		// winner's row is now authoritative.
		if errors.Is(err, ErrAccountExists) {
			return service.accounts.FindByProvider(ctx, identity.Provider, identity.ProviderID)
		}
		return nil, err
	}

	return account, nil
}

/*
IssueExchangeCode parks an access token behind an opaque one-time code so
the OAuth redirect can carry the code instead of the token. URLs end up in
browser history, proxy logs, and Referer headers; a code that dies on
first use or after one minute is a much smaller thing to leak.
*/
func (service *Service) IssueExchangeCode(ctx context.Context, accessToken string) (string, error) {
	code, err := sec.GenerateSecureToken(ExchangeCodeLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_exchange_code_failed: %w", err)
	}

	if err := service.exchangeCodes.Put(ctx, code, accessToken, ExchangeCodeTTL); err != nil {
		return "", fmt.Errorf("auth_service_exchange_store_failed: %w", err)
	}

	return code, nil
}

// RedeemExchangeCode swaps a one-time code for the access token it hides.
// Unknown, expired, and already-redeemed codes are indistinguishable to
// the caller.
func (service *Service) RedeemExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrExchangeCodeInvalid
	}
	return service.exchangeCodes.Redeem(ctx, code)
}
