// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for account passwords.
//
// # Why not bcrypt.DefaultCost?
//
// Cost 12 lands around 100-250ms per hash on current server hardware, which
// is the budget we want an online guessing attacker to pay per attempt.
const PasswordCost = 12

// dummyHash is a valid bcrypt hash of a random throwaway value. It lets
// authentication perform a hash comparison even when no account exists,
// keeping response timing uniform across "no such account" and "wrong
// password".
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// CheckDummyPassword burns the same bcrypt work as a real comparison and
// always reports false. Callers invoke it on the account-not-found path so
// lookup misses cost the same as a failed comparison.
func CheckDummyPassword(plainTextPassword string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plainTextPassword))
	return false
}
