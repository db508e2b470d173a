// Package common defines sentinel errors and small helpers shared by every
// layer of the service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. The HTTP boundary maps them to status codes.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Access token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidRefreshToken covers unknown, expired, revoked and replayed refresh
	// tokens alike so that callers cannot tell which tokens ever existed.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidResetToken is returned for unknown, used or expired password reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
