package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileSvc(t *testing.T, ps ...*models.Profile) *ProfileService {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mgr := newFakeRepoMgr()
	mgr.profiles = newFakeProfiles(ps...)
	return NewProfileService(db, mgr)
}

func TestProfileService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newProfileSvc(t, &models.Profile{ID: "u1", Name: "Ann", Role: "user"})

	name := "Annie"
	p, err := svc.Update(ctx, "u1", models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Annie", p.Name)

	// empty update returns the current profile
	p, err = svc.Update(ctx, "u1", models.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Annie", p.Name)

	_, err = svc.Update(ctx, "ghost", models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProfileService_ListAndRole(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := newProfileSvc(t,
		&models.Profile{ID: "old", Name: "Old", Role: "user", CreatedAt: now.Add(-time.Hour)},
		&models.Profile{ID: "new", Name: "New", Role: "user", CreatedAt: now},
	)

	ps, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "new", ps[0].ID)

	p, err := svc.UpdateRole(ctx, "old", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Role)

	_, err = svc.UpdateRole(ctx, "ghost", "admin")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
