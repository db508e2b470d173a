package models

import "time"

// RefreshToken is a persisted refresh token record. The plaintext secret is
// never stored: TokenDigest serves indexed lookup, TokenHash proves possession.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenDigest string
	TokenHash   string
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// IsActive reports whether the record can still be used at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
