package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/auth"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

// CredentialVerifier turns a bearer credential into a principal. Exactly one
// implementation is configured per deployment.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, credential string) (*auth.Principal, error)
}

// ProfileRepository is what the authenticator needs from profile storage.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Upsert(ctx context.Context, id, name string) (*models.Profile, error)
}

// AuthSession is the per-request authentication result. It is built once and
// must not be modified afterwards.
type AuthSession struct {
	Principal  auth.Principal
	Profile    *models.Profile
	Credential string
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *AuthSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*AuthSession, bool) {
	s, ok := ctx.Value(sessionKey{}).(*AuthSession)
	return s, ok && s != nil
}

// Authenticator resolves a bearer token into an AuthSession and decides
// admin access from the profile role or the configured admin emails.
type Authenticator struct {
	verifier    CredentialVerifier
	profiles    ProfileRepository
	adminRole   string
	adminEmails map[string]struct{}
	logger      logging.Logger
}

// NewAuthenticator builds an Authenticator. adminEmails is matched
// case-insensitively; an empty list means only the role grants admin access.
func NewAuthenticator(verifier CredentialVerifier, profiles ProfileRepository, adminRole string, adminEmails []string, logger logging.Logger) *Authenticator {
	emails := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails[e] = struct{}{}
		}
	}
	return &Authenticator{
		verifier:    verifier,
		profiles:    profiles,
		adminRole:   adminRole,
		adminEmails: emails,
		logger:      logger,
	}
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate verifies the bearer credential in header and resolves the
// caller's profile, provisioning a default one if none exists yet.
// Credential problems yield common.ErrorUnauthorized; storage problems are
// returned wrapped.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*AuthSession, error) {
	credential, ok := BearerToken(header)
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	principal, err := a.verifier.VerifyCredential(ctx, credential)
	if err != nil {
		a.logger.Debug(ctx, "credential rejected", "error", err)
		return nil, common.ErrorUnauthorized
	}

	profile, err := a.profiles.GetByID(ctx, principal.ID)
	if errors.Is(err, common.ErrorNotFound) {
		profile, err = a.profiles.Upsert(ctx, principal.ID, models.DefaultProfileName)
		if err == nil {
			a.logger.Info(ctx, "profile provisioned", "user_id", principal.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	return &AuthSession{
		Principal:  *principal,
		Profile:    profile,
		Credential: credential,
	}, nil
}

// AuthenticateAdmin is Authenticate followed by an admin check that yields
// common.ErrorForbidden for non-admins.
func (a *Authenticator) AuthenticateAdmin(ctx context.Context, header string) (*AuthSession, error) {
	session, err := a.Authenticate(ctx, header)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin(session) {
		return nil, common.ErrorForbidden
	}
	return session, nil
}

// IsAdmin reports whether the session holds the admin role or its email is
// on the allowlist.
func (a *Authenticator) IsAdmin(s *AuthSession) bool {
	if s.Profile != nil && s.Profile.Role == a.adminRole {
		return true
	}
	if len(a.adminEmails) == 0 || s.Principal.Email == "" {
		return false
	}
	_, ok := a.adminEmails[strings.ToLower(s.Principal.Email)]
	return ok
}
