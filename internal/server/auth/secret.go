package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// secretBytes is the entropy of a refresh-token secret (256 bits).
const secretBytes = 32

// GenerateSecret returns a fresh URL-safe refresh-token secret.
func (c *Codec) GenerateSecret() (string, error) {
	return common.MakeRandURLString(secretBytes)
}

// Digest returns the hex SHA-256 of secret. It is deterministic and only
// suitable for indexed lookup, never as proof of possession on its own.
func (c *Codec) Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Hash returns a salted bcrypt hash of secret.
func (c *Codec) Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), c.hashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether secret matches hash. Malformed hashes do not match.
func (c *Codec) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
