package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/dbx"
	"github.com/dmitrijs2005/buddyauth/internal/server/auth"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buddyauth/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

// fakeClock advances by one millisecond on every reading so that records
// created one after another never share a timestamp.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCodec(t *testing.T, clock *fakeClock) *auth.Codec {
	t.Helper()
	opts := []auth.Option{auth.WithHashCost(bcrypt.MinCost)}
	if clock != nil {
		opts = append(opts, auth.WithClock(clock.Now))
	}
	c, err := auth.NewCodec(testSigningKey, "buddy-auth", "buddy-users", 15*time.Minute, opts...)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return c
}

// --- fake repositories ---

type fakeProfiles struct {
	mu        sync.Mutex
	byID      map[string]*models.Profile
	getErr    error
	upsertErr error
	upserts   []string
}

func newFakeProfiles(ps ...*models.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[string]*models.Profile{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, id, name string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, id)
	now := time.Now()
	p, ok := f.byID[id]
	if !ok {
		p = &models.Profile{ID: id, Role: models.DefaultRole, CreatedAt: now}
		f.byID[id] = p
	}
	p.Name = name
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Update(_ context.Context, id string, upd models.ProfileUpdate) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.AvatarURL != nil {
		v := *upd.AvatarURL
		p.AvatarURL = &v
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpdateRole(_ context.Context, id, role string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Role = role
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) List(context.Context) ([]*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Profile{}
	for _, p := range f.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeProfiles) setBanned(id string, banned bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Banned = banned
}

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	seq     int
	getErr  error
	touched map[string]time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}, touched: map[string]time.Time{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.seq++
	u.ID = fmt.Sprintf("user-%d", f.seq)
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

type fakeResets struct {
	mu   sync.Mutex
	byID map[string]*models.PasswordReset
	seq  int
}

func newFakeResets() *fakeResets {
	return &fakeResets{byID: map[string]*models.PasswordReset{}}
}

func (f *fakeResets) Create(_ context.Context, r *models.PasswordReset) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = fmt.Sprintf("reset-%d", f.seq)
	r.CreatedAt = time.Now()
	cp := *r
	f.byID[r.ID] = &cp
	return r, nil
}

func (f *fakeResets) FindByDigest(_ context.Context, digest string) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.TokenDigest == digest {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResets) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.UsedAt != nil {
		return false, nil
	}
	r.UsedAt = &at
	return true, nil
}

func (f *fakeResets) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeRepoMgr hands out the same fakes regardless of the DBTX it is given.
type fakeRepoMgr struct {
	users    *fakeUsers
	profiles *fakeProfiles
	resets   *fakeResets
	tokens   refreshtokens.Store
}

func newFakeRepoMgr() *fakeRepoMgr {
	return &fakeRepoMgr{
		users:    newFakeUsers(),
		profiles: newFakeProfiles(),
		resets:   newFakeResets(),
		tokens:   refreshtokens.NewMemoryStore(),
	}
}

func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoMgr) Users(dbx.DBTX) users.Repository                   { return m.users }
func (m *fakeRepoMgr) Profiles(dbx.DBTX) profiles.Repository             { return m.profiles }
func (m *fakeRepoMgr) PasswordResets(dbx.DBTX) passwordresets.Repository { return m.resets }
func (m *fakeRepoMgr) RefreshTokens(*sql.DB) refreshtokens.Store         { return m.tokens }

type sentMail struct {
	to, link string
}

type captureMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	err        error
	welcomed   []string
	welcomeErr error
}

func (m *captureMailer) SendWelcome(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.welcomed = append(m.welcomed, to)
	return nil
}

type fakeBreachChecker struct {
	breached bool
	err      error
	checked  []string
}

func (f *fakeBreachChecker) Breached(_ context.Context, password string) (bool, error) {
	f.checked = append(f.checked, password)
	return f.breached, f.err
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, link: link})
	return nil
}
