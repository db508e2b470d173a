package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/cryptox"
	"github.com/dmitrijs2005/buddyauth/internal/dbx"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/mail"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/repomanager"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by signup, login and refresh.
type AuthResult struct {
	TokenPair
	User                    *models.User    `json:"-"`
	Profile                 *models.Profile `json:"profile"`
	PasswordRecommendations []string        `json:"passwordRecommendations,omitempty"`
}

// AccessTokenSigner mints access tokens.
type AccessTokenSigner interface {
	SignAccessToken(ownerID, email string) (string, error)
}

// RefreshTokenManager is the lifecycle API consumed by account flows.
type RefreshTokenManager interface {
	Issue(ctx context.Context, owner string) (string, error)
	Rotate(ctx context.Context, secret, owner string) (*Rotation, error)
	RevokeOne(ctx context.Context, secret string) (bool, error)
	RevokeAll(ctx context.Context, owner string) error
}

// ResetTokenCodec produces password reset tokens and their lookup digests.
type ResetTokenCodec interface {
	GenerateSecret() (string, error)
	Digest(secret string) string
}

// UserServiceConfig carries the settings UserService needs.
// A nil BreachChecker disables the breached-password advisory.
type UserServiceConfig struct {
	PasswordResetValidity time.Duration
	PublicBaseURL         string
	BreachChecker         cryptox.BreachChecker
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      RefreshTokenManager
	signer      AccessTokenSigner
	resetCodec  ResetTokenCodec
	mailer      mail.Mailer
	logger      logging.Logger
	cfg         UserServiceConfig
	now         func() time.Time

	hashPassword   func(string) (string, error)
	verifyPassword func(password, encoded string) (bool, error)

	dummyOnce sync.Once
	dummy     string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens RefreshTokenManager, signer AccessTokenSigner,
	resetCodec ResetTokenCodec, mailer mail.Mailer, logger logging.Logger, cfg UserServiceConfig) *UserService {
	return &UserService{
		db:             db,
		repomanager:    m,
		tokens:         tokens,
		signer:         signer,
		resetCodec:     resetCodec,
		mailer:         mailer,
		logger:         logger,
		cfg:            cfg,
		now:            time.Now,
		hashPassword:   cryptox.HashPassword,
		verifyPassword: cryptox.VerifyPassword,
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dummyHash is verified against when the email is unknown so that Login
// costs the same whether or not the account exists.
func (s *UserService) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hashPassword(string(common.GenerateRandByteArray(16)))
		if err == nil {
			s.dummy = h
		}
	})
	return s.dummy
}

// passwordRecommendations adds the breached-password advisory to the local
// checks. Lookup failures only cost the advisory.
func (s *UserService) passwordRecommendations(ctx context.Context, password string) []string {
	recs := cryptox.PasswordRecommendations(password)
	if s.cfg.BreachChecker == nil {
		return recs
	}
	breached, err := s.cfg.BreachChecker.Breached(ctx, password)
	if err != nil {
		s.logger.Debug(ctx, "breached password lookup failed", "error", err)
		return recs
	}
	if breached {
		recs = append(recs, cryptox.BreachedPasswordRecommendation)
	}
	return recs
}

func (s *UserService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := s.signer.SignAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Signup creates the account and its profile in one transaction and signs
// the user in. A taken email yields common.ErrorAlreadyExists.
func (s *UserService) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: NormalizeEmail(email), PasswordHash: hash}
	var profile *models.Profile

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created

		profile, err = s.repomanager.Profiles(tx).Upsert(ctx, user.ID, name)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user signed up", "user_id", user.ID)

	if err := s.mailer.SendWelcome(ctx, user.Email, name); err != nil {
		s.logger.Warn(ctx, "welcome email not sent", "user_id", user.ID, "error", err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		TokenPair:               *pair,
		User:                    user,
		Profile:                 profile,
		PasswordRecommendations: s.passwordRecommendations(ctx, password),
	}, nil
}

// Login checks the password and signs the user in. Unknown emails and wrong
// passwords both yield common.ErrorUnauthorized; banned users get
// common.ErrorForbidden.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.verifyPassword(password, s.dummyHash())
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.verifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	profile, err := s.ensureProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if profile.Banned {
		return nil, common.ErrorForbidden
	}

	if err := s.repomanager.Users(s.db).TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn(ctx, "last login not recorded", "user_id", user.ID, "error", err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{TokenPair: *pair, User: user, Profile: profile}, nil
}

func (s *UserService) ensureProfile(ctx context.Context, userID string) (*models.Profile, error) {
	repo := s.repomanager.Profiles(s.db)
	profile, err := repo.GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		profile, err = repo.Upsert(ctx, userID, models.DefaultProfileName)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	return profile, nil
}

// Refresh rotates the refresh token and mints a new access token. Every
// kind of bad token yields common.ErrInvalidRefreshToken. When the owner has
// been banned all of their tokens are revoked and common.ErrorForbidden is
// returned.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	rot, err := s.tokens.Rotate(ctx, refreshToken, "")
	if err != nil {
		return nil, err
	}
	userID := rot.Previous.UserID

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	profile, err := s.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Banned {
		if err := s.tokens.RevokeAll(ctx, userID); err != nil {
			return nil, err
		}
		return nil, common.ErrorForbidden
	}

	accessToken, err := s.signer.SignAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AuthResult{
		TokenPair: TokenPair{AccessToken: accessToken, RefreshToken: rot.Secret},
		User:      user,
		Profile:   profile,
	}, nil
}

// Logout revokes a single refresh token. Unknown tokens are not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	found, err := s.tokens.RevokeOne(ctx, refreshToken)
	if err != nil {
		return err
	}
	s.logger.Debug(ctx, "logout", "found", found)
	return nil
}

// LogoutAll revokes every refresh token of userID.
func (s *UserService) LogoutAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAll(ctx, userID)
}

// ForgotPassword stores a reset token for the account and mails a link.
// Unknown addresses are silently ignored so callers cannot test for
// accounts.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := s.resetCodec.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	_, err = s.repomanager.PasswordResets(s.db).Create(ctx, &models.PasswordReset{
		UserID:      user.ID,
		TokenDigest: s.resetCodec.Digest(token),
		ExpiresAt:   s.now().Add(s.cfg.PasswordResetValidity),
	})
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, mail.ResetLink(s.cfg.PublicBaseURL, token)); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every session of the account. It returns advisory password
// recommendations.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) ([]string, error) {
	if token == "" {
		return nil, common.ErrInvalidResetToken
	}
	now := s.now()

	reset, err := s.repomanager.PasswordResets(s.db).FindByDigest(ctx, s.resetCodec.Digest(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	if reset.UsedAt != nil || !reset.ExpiresAt.After(now) {
		return nil, common.ErrInvalidResetToken
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		used, err := s.repomanager.PasswordResets(tx).MarkUsed(ctx, reset.ID, now)
		if err != nil {
			return err
		}
		if !used {
			return common.ErrInvalidResetToken
		}
		return s.repomanager.Users(tx).UpdatePassword(ctx, reset.UserID, hash)
	})
	if errors.Is(err, common.ErrInvalidResetToken) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	if err := s.tokens.RevokeAll(ctx, reset.UserID); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "password reset", "user_id", reset.UserID)

	return s.passwordRecommendations(ctx, password), nil
}

// ProvisionAdmin gives the account for email the admin role, creating it
// with password first when it does not exist. An existing account keeps its
// password. created reports whether a new account was made.
func (s *UserService) ProvisionAdmin(ctx context.Context, email, password, name, role string) (created bool, err error) {
	email = NormalizeEmail(email)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			if password == "" {
				return fmt.Errorf("%w: password required for a new account", common.ErrorValidation)
			}
			hash, err := s.hashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user, err = s.repomanager.Users(tx).Create(ctx, &models.User{Email: email, PasswordHash: hash})
			if err != nil {
				return err
			}
			if _, err := s.repomanager.Profiles(tx).Upsert(ctx, user.ID, name); err != nil {
				return err
			}
			created = true
		} else if err != nil {
			return err
		} else if _, err := s.repomanager.Profiles(tx).GetByID(ctx, user.ID); errors.Is(err, common.ErrorNotFound) {
			if _, err := s.repomanager.Profiles(tx).Upsert(ctx, user.ID, name); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		_, err = s.repomanager.Profiles(tx).UpdateRole(ctx, user.ID, role)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("provision admin: %w", err)
	}

	s.logger.Info(ctx, "admin provisioned", "email", email, "created", created)
	return created, nil
}
