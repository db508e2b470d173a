// Package cryptox implements password hashing with argon2id and the
// advisory password-strength checks shown to users at signup and reset.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16

	// RecommendedPasswordLength is the length below which a recommendation is emitted.
	RecommendedPasswordLength = 12
)

// ErrMalformedHash is returned when a stored hash is not a PHC argon2id string.
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword derives an argon2id hash with a fresh random salt and returns
// it encoded as "$argon2id$v=19$m=...,t=...,p=...$salt$hash".
func HashPassword(password string) (string, error) {
	salt := common.GenerateRandByteArray(saltLen)
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks password against an encoded argon2id hash using the
// parameters recorded in the hash itself.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// PasswordRecommendations lists the complexity rules password misses.
// The rules are advisory; an empty slice means the password passes all of them.
func PasswordRecommendations(password string) []string {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	out := []string{}
	if len(password) < RecommendedPasswordLength {
		out = append(out, fmt.Sprintf("must be at least %d characters", RecommendedPasswordLength))
	}
	if !upper {
		out = append(out, "must include an uppercase letter")
	}
	if !lower {
		out = append(out, "must include a lowercase letter")
	}
	if !digit {
		out = append(out, "must include a digit")
	}
	if !symbol {
		out = append(out, "must include a symbol")
	}
	return out
}
