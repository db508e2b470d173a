package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/repomanager"
)

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager) *ProfileService {
	return &ProfileService{db: db, repomanager: m}
}

// Update applies a partial update to the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error) {
	if upd.Name == nil && upd.AvatarURL == nil {
		return s.repomanager.Profiles(s.db).GetByID(ctx, userID)
	}
	p, err := s.repomanager.Profiles(s.db).Update(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// List returns every profile, newest first.
func (s *ProfileService) List(ctx context.Context) ([]*models.Profile, error) {
	ps, err := s.repomanager.Profiles(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return ps, nil
}

// UpdateRole sets the role of profile id.
func (s *ProfileService) UpdateRole(ctx context.Context, id, role string) (*models.Profile, error) {
	p, err := s.repomanager.Profiles(s.db).UpdateRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return p, nil
}
