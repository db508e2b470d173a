package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

// SecretCodec is the part of the token codec the lifecycle manager uses.
type SecretCodec interface {
	GenerateSecret() (string, error)
	Digest(secret string) string
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// Rotation is the result of a successful Rotate.
type Rotation struct {
	// Secret is the successor secret handed to the client.
	Secret string
	// Previous is the now revoked record that was presented.
	Previous *models.RefreshToken
}

// RefreshTokenService owns the refresh-token lifecycle: issuing with a
// per-owner cap, single-use rotation and revocation.
type RefreshTokenService struct {
	store     refreshtokens.Store
	codec     SecretCodec
	ttl       time.Duration
	maxActive int
	logger    logging.Logger
	now       func() time.Time
	newID     func() (string, error)
}

// RefreshTokenOption customises a RefreshTokenService.
type RefreshTokenOption func(*RefreshTokenService)

// WithRefreshClock overrides the service time source.
func WithRefreshClock(now func() time.Time) RefreshTokenOption {
	return func(s *RefreshTokenService) { s.now = now }
}

// NewRefreshTokenService wires the lifecycle manager. maxActive below 1 is
// treated as 1.
func NewRefreshTokenService(store refreshtokens.Store, codec SecretCodec, ttl time.Duration, maxActive int, logger logging.Logger, opts ...RefreshTokenOption) *RefreshTokenService {
	if maxActive < 1 {
		maxActive = 1
	}
	s := &RefreshTokenService{
		store:     store,
		codec:     codec,
		ttl:       ttl,
		maxActive: maxActive,
		logger:    logger,
		now:       time.Now,
		newID:     newRecordID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// newRecordID returns a time-ordered UUID so that records created within the
// same clock tick still sort in creation order.
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *RefreshTokenService) newRecord(owner string, now time.Time) (*models.RefreshToken, string, error) {
	secret, err := s.codec.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	hash, err := s.codec.Hash(secret)
	if err != nil {
		return nil, "", fmt.Errorf("hash secret: %w", err)
	}
	id, err := s.newID()
	if err != nil {
		return nil, "", fmt.Errorf("generate id: %w", err)
	}
	return &models.RefreshToken{
		ID:          id,
		UserID:      owner,
		TokenDigest: s.codec.Digest(secret),
		TokenHash:   hash,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}, secret, nil
}

// Issue creates a new refresh token for owner and returns its secret. When
// the owner already holds the maximum number of active tokens, the oldest
// ones are revoked in the same transaction as the insert.
func (s *RefreshTokenService) Issue(ctx context.Context, owner string) (string, error) {
	now := s.now()

	rec, secret, err := s.newRecord(owner, now)
	if err != nil {
		return "", err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo refreshtokens.Repository) error {
		if err := repo.LockOwner(ctx, owner); err != nil {
			return err
		}
		if err := s.evict(ctx, repo, owner, now); err != nil {
			return err
		}
		return repo.Insert(ctx, rec)
	})
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}

	return secret, nil
}

// evict revokes oldest active records until there is room for one more.
func (s *RefreshTokenService) evict(ctx context.Context, repo refreshtokens.Repository, owner string, now time.Time) error {
	for {
		n, err := repo.CountActive(ctx, owner, now)
		if err != nil {
			return err
		}
		if n < s.maxActive {
			return nil
		}

		oldest, err := repo.FindOldestActive(ctx, owner, now)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := repo.MarkRevoked(ctx, oldest.ID, now); err != nil {
			return err
		}
		s.logger.Debug(ctx, "refresh token evicted", "user_id", owner, "token_id", oldest.ID)
	}
}

// Rotate exchanges a valid secret for a new one. The presented record is
// revoked and its successor inserted atomically. When owner is not empty the
// record must belong to it. Unknown, expired, revoked, mismatching or already
// rotated secrets all yield common.ErrInvalidRefreshToken.
func (s *RefreshTokenService) Rotate(ctx context.Context, secret, owner string) (*Rotation, error) {
	if secret == "" {
		return nil, common.ErrInvalidRefreshToken
	}
	now := s.now()

	current, err := s.store.FindByDigest(ctx, s.codec.Digest(secret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if !current.IsActive(now) || (owner != "" && current.UserID != owner) {
		return nil, common.ErrInvalidRefreshToken
	}
	if !s.codec.Verify(secret, current.TokenHash) {
		return nil, common.ErrInvalidRefreshToken
	}

	next, nextSecret, err := s.newRecord(current.UserID, now)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo refreshtokens.Repository) error {
		revoked, err := repo.MarkRevoked(ctx, current.ID, now)
		if err != nil {
			return err
		}
		if !revoked {
			// a concurrent rotation got there first
			return common.ErrInvalidRefreshToken
		}
		return repo.Insert(ctx, next)
	})
	if errors.Is(err, common.ErrInvalidRefreshToken) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	current.Revoked = true
	current.LastUsedAt = &now
	return &Rotation{Secret: nextSecret, Previous: current}, nil
}

// RevokeOne revokes the record matching secret and reports whether one was
// found. The hash is not checked: revoking on a digest match is harmless.
func (s *RefreshTokenService) RevokeOne(ctx context.Context, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}

	rec, err := s.store.FindByDigest(ctx, s.codec.Digest(secret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find refresh token: %w", err)
	}

	if _, err := s.store.MarkRevoked(ctx, rec.ID, s.now()); err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return true, nil
}

// RevokeAll revokes every active token of owner. Calling it again is a no-op.
func (s *RefreshTokenService) RevokeAll(ctx context.Context, owner string) error {
	n, err := s.store.RevokeAllForOwner(ctx, owner, s.now())
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.logger.Debug(ctx, "refresh tokens revoked", "user_id", owner, "count", n)
	return nil
}

// CountActive returns the number of active tokens held by owner.
func (s *RefreshTokenService) CountActive(ctx context.Context, owner string) (int, error) {
	n, err := s.store.CountActive(ctx, owner, s.now())
	if err != nil {
		return 0, fmt.Errorf("count refresh tokens: %w", err)
	}
	return n, nil
}

// PurgeStale deletes expired records and revoked records not used within
// retention. It returns the number of deleted records.
func (s *RefreshTokenService) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	now := s.now()
	n, err := s.store.DeleteStale(ctx, now, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return n, nil
}
