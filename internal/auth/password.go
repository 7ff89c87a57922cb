// Package auth provides password hashing, JWT issuance and the authentication
// middleware.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for account passwords and stored
// refresh-token hashes. bcrypt salts every call itself, so two identical
// inputs never produce the same hash.
const defaultCost = 10

// maxBcryptLen is the bcrypt input limit. Anything longer (refresh-token JWTs
// in particular) is pre-digested with SHA-256 rather than letting bcrypt
// truncate it silently. Account passwords never hit this path; validation
// caps them at 72 bytes.
const maxBcryptLen = 72

// PasswordService hashes and verifies secrets with bcrypt. It protects both
// account passwords and refresh-token values at rest; a stored refresh token
// is just another secret that must be compared, not looked up by value.
//
// The cost is injectable so tests can run at bcrypt.MinCost instead of paying
// ~100ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom bcrypt
// cost. Intended for tests; do not lower the cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext with bcrypt. The output embeds the salt and
// cost, so it can be stored as a single column and verified with Compare.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(normalize(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether plaintext matches the stored bcrypt hash.
//
// A mismatch returns (false, nil); the error is reserved for malformed hashes
// and other operational failures. bcrypt compares in constant time, so the
// result does not leak how close the guess was.
func (p *PasswordService) Compare(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), normalize(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("auth: comparing hash: %w", err)
	}
	return true, nil
}

// normalize returns the bcrypt input for a secret: the secret itself when it
// fits, or its base64-encoded SHA-256 digest when it is over the 72-byte
// limit. Applied identically on hash and compare.
func normalize(plaintext string) []byte {
	if len(plaintext) <= maxBcryptLen {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
