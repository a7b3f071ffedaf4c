// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corkboardhq/corkboard/internal/platform/constants"
)

// RedisExchangeCodeStore implements ExchangeCodeStore using Redis.
//
// Redis GETDEL gives atomic one-time redemption across all API replicas.
// When constructed without a client (tests, single-node development runs) it
// degrades to a bounded in-process map with the same redeem-once semantics,
// valid only because a single process then serves all redemptions.
type RedisExchangeCodeStore struct {
	client *redis.Client

	mu       sync.Mutex
	fallback map[string]fallbackEntry
	order    []string // insertion order, oldest first
}

type fallbackEntry struct {
	accessToken string
	expiresAt   time.Time
}

// NewExchangeCodeStore creates a Redis-backed ExchangeCodeStore. A nil
// client selects the in-process fallback.
func NewExchangeCodeStore(client *redis.Client) *RedisExchangeCodeStore {
	return &RedisExchangeCodeStore{
		client:   client,
		fallback: make(map[string]fallbackEntry),
	}
}

/*
Put stores an exchange code mapped to its access token with a TTL.

Parameters:
  - context: context.Context
  - code: string (opaque one-time code)
  - accessToken: string (the signed JWT being parked)
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (store *RedisExchangeCodeStore) Put(context context.Context, code string, accessToken string, ttl time.Duration) error {
	if store.client == nil {
		store.putFallback(code, accessToken, ttl)
		return nil
	}

	key := constants.RedisPrefixExchangeCode + code

	if err := store.client.Set(context, key, accessToken, ttl).Err(); err != nil {
		return fmt.Errorf("redis_exchange_code_put_failed: %w", err)
	}

	return nil
}

/*
Redeem atomically retrieves and deletes the access token behind a code.

Description: Uses GETDEL so two racing redemptions of the same code cannot
both succeed. Absent, expired, and already-redeemed codes are all reported
as ErrExchangeCodeInvalid.

Parameters:
  - context: context.Context
  - code: string

Returns:
  - string: The parked access token
  - error: ErrExchangeCodeInvalid or connectivity errors
*/
func (store *RedisExchangeCodeStore) Redeem(context context.Context, code string) (string, error) {
	if store.client == nil {
		return store.redeemFallback(code)
	}

	key := constants.RedisPrefixExchangeCode + code

	accessToken, err := store.client.GetDel(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrExchangeCodeInvalid
		}
		return "", fmt.Errorf("redis_exchange_code_redeem_failed: %w", err)
	}

	return accessToken, nil
}

// putFallback inserts into the bounded in-process map, evicting the oldest
// entry past ExchangeFallbackMaxEntries.
func (store *RedisExchangeCodeStore) putFallback(code, accessToken string, ttl time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for len(store.order) >= ExchangeFallbackMaxEntries {
		oldest := store.order[0]
		store.order = store.order[1:]
		delete(store.fallback, oldest)
	}

	store.fallback[code] = fallbackEntry{
		accessToken: accessToken,
		expiresAt:   time.Now().Add(ttl),
	}
	store.order = append(store.order, code)
}

func (store *RedisExchangeCodeStore) redeemFallback(code string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.fallback[code]
	if ok {
		// Drop the order entry too, or eviction would later count this slot
		// against the capacity and push out a live code.
		delete(store.fallback, code)
		store.dropFromOrder(code)
	}

	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrExchangeCodeInvalid
	}

	return entry.accessToken, nil
}

// dropFromOrder removes a redeemed code's key from the FIFO eviction queue.
// Must be called with store.mu held.
func (store *RedisExchangeCodeStore) dropFromOrder(code string) {
	for i, key := range store.order {
		if key == code {
			store.order = append(store.order[:i], store.order[i+1:]...)
			return
		}
	}
}
