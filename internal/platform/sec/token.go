// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// # Opaque Secrets

// GenerateSecureToken returns a URL-safe random token of byteLength random
// bytes, sourced from crypto/rand. Used for refresh tokens, reset tokens,
// and OAuth exchange codes.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateNumericCode returns a uniformly random code of exactly `digits`
// decimal digits, zero-padded. It intentionally uses crypto/rand rather than
// math/rand: verification codes are credentials.
func GenerateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	value, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, value), nil
}

// # Token Hashing

// HashToken returns the hex-encoded SHA-256 digest of a raw token.
//
// Raw refresh tokens, reset tokens, and verification codes are never
// persisted; only this digest touches storage. SHA-256 (not bcrypt) is fine
// here because the inputs are high-entropy random values, not passwords;
// online guessing is bounded by expiry and attempt counters.
func HashToken(rawToken string) string {
	digest := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(digest[:])
}
