package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims: registered claims plus the email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Principal is the identity carried by a verified credential.
type Principal struct {
	ID    string
	Email string
}

// SignAccessToken mints an HS256 access token for the owner.
func (c *Codec) SignAccessToken(ownerID, email string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Email: email,
	})

	tokenString, err := token.SignedString(c.secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ParseAccessToken validates signature, algorithm, issuer, audience and expiry.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// yields an error wrapping common.ErrInvalidToken.
func (c *Codec) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// VerifyCredential resolves a bearer access token into a Principal.
func (c *Codec) VerifyCredential(_ context.Context, credential string) (*Principal, error) {
	claims, err := c.ParseAccessToken(credential)
	if err != nil {
		return nil, err
	}
	return &Principal{ID: claims.Subject, Email: claims.Email}, nil
}
