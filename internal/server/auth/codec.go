// Package auth implements the token codec: opaque refresh-token secrets with
// their lookup digests and slow verification hashes, and the short-lived HS256
// access tokens derived from them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/server/config"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches the bcrypt cost used for stored refresh-token hashes.
const DefaultHashCost = 10

// ErrWeakSecretKey is returned when the signing key is shorter than allowed.
var ErrWeakSecretKey = errors.New("signing key too short")

// Codec produces and verifies refresh-token secrets and access tokens.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	secretKey []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	hashCost  int
	now       func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(c *Codec) { c.hashCost = cost }
}

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec. The key is copied so later changes to the caller's
// slice cannot affect signing.
func NewCodec(secretKey []byte, issuer, audience string, accessTTL time.Duration, opts ...Option) (*Codec, error) {
	if len(secretKey) < config.MinSecretKeyLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecretKey, config.MinSecretKeyLength)
	}
	c := &Codec{
		secretKey: append([]byte(nil), secretKey...),
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		hashCost:  DefaultHashCost,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.hashCost < bcrypt.MinCost || c.hashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", c.hashCost)
	}
	return c, nil
}

// NewCodecFromConfig builds a Codec from server configuration.
func NewCodecFromConfig(cfg *config.Config, opts ...Option) (*Codec, error) {
	return NewCodec([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience, cfg.AccessTokenValidityDuration, opts...)
}

// AccessTokenTTL returns the lifetime of minted access tokens.
func (c *Codec) AccessTokenTTL() time.Duration {
	return c.accessTTL
}
