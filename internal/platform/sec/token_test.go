// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corkboardhq/corkboard/internal/platform/sec"
)

func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// 32 bytes in unpadded base64url is 43 characters.
	assert.Len(t, first, 43)
	assert.NotContains(t, first, "+")
	assert.NotContains(t, first, "/")
	assert.NotContains(t, first, "=")
}

func TestGenerateNumericCode(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 50; i++ {
		code, err := sec.GenerateNumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in code %q", code)
		}
		seen[code] = true
	}

	// 50 draws from a million values collide with negligible probability.
	assert.Greater(t, len(seen), 45)
}

func TestHashToken(t *testing.T) {
	digest := sec.HashToken("some-refresh-token")

	assert.Len(t, digest, 64) // sha256 hex
	assert.NotEqual(t, "some-refresh-token", digest)
	assert.Equal(t, digest, sec.HashToken("some-refresh-token"))
	assert.NotEqual(t, digest, sec.HashToken("some-refresh-tokeN"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, sec.CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, sec.CheckPasswordHash("wrong password", hash))
	assert.NotContains(t, hash, "correct horse")
}

func TestCheckDummyPassword_AlwaysFalse(t *testing.T) {
	assert.False(t, sec.CheckDummyPassword("anything"))
	assert.False(t, sec.CheckDummyPassword(""))
}
