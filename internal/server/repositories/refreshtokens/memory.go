package refreshtokens

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	"github.com/dmitrijs2005/buddyauth/internal/server/models"
)

// MemoryStore keeps records in process memory. Transactions are serialised by
// a single mutex and work on a private copy that replaces the committed state
// only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type memState struct {
	records map[string]models.RefreshToken
	digests map[string]string
}

func newMemState() *memState {
	return &memState{
		records: make(map[string]models.RefreshToken),
		digests: make(map[string]string),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		records: make(map[string]models.RefreshToken, len(s.records)),
		digests: make(map[string]string, len(s.digests)),
	}
	for k, v := range s.records {
		c.records[k] = copyToken(v)
	}
	for k, v := range s.digests {
		c.digests[k] = v
	}
	return c
}

func copyToken(t models.RefreshToken) models.RefreshToken {
	if t.LastUsedAt != nil {
		at := *t.LastUsedAt
		t.LastUsedAt = &at
	}
	return t
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &memRepo{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Snapshot returns copies of all records ordered by (created_at, id).
func (s *MemoryStore) Snapshot() []models.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RefreshToken, 0, len(s.state.records))
	for _, t := range s.state.records {
		out = append(out, copyToken(t))
	}
	sortTokens(out)
	return out
}

func (s *MemoryStore) CountActive(ctx context.Context, userID string, now time.Time) (n int, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		n, err = r.CountActive(ctx, userID, now)
		return err
	})
	return n, err
}

func (s *MemoryStore) FindOldestActive(ctx context.Context, userID string, now time.Time) (t *models.RefreshToken, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		t, err = r.FindOldestActive(ctx, userID, now)
		return err
	})
	return t, err
}

func (s *MemoryStore) FindByDigest(ctx context.Context, digest string) (t *models.RefreshToken, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		t, err = r.FindByDigest(ctx, digest)
		return err
	})
	return t, err
}

func (s *MemoryStore) Insert(ctx context.Context, token *models.RefreshToken) error {
	return s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		return r.Insert(ctx, token)
	})
}

func (s *MemoryStore) MarkRevoked(ctx context.Context, id string, at time.Time) (ok bool, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		ok, err = r.MarkRevoked(ctx, id, at)
		return err
	})
	return ok, err
}

func (s *MemoryStore) RevokeAllForOwner(ctx context.Context, userID string, at time.Time) (n int64, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		n, err = r.RevokeAllForOwner(ctx, userID, at)
		return err
	})
	return n, err
}

func (s *MemoryStore) LockOwner(context.Context, string) error {
	return nil
}

func (s *MemoryStore) DeleteStale(ctx context.Context, now, revokedBefore time.Time) (n int64, err error) {
	err = s.WithinTx(ctx, func(ctx context.Context, r Repository) error {
		n, err = r.DeleteStale(ctx, now, revokedBefore)
		return err
	})
	return n, err
}

// memRepo operates on one memState without locking; MemoryStore holds the
// lock for as long as a memRepo is in use.
type memRepo struct {
	st *memState
}

func (r *memRepo) active(userID string, now time.Time) []models.RefreshToken {
	var out []models.RefreshToken
	for _, t := range r.st.records {
		if t.UserID == userID && t.IsActive(now) {
			out = append(out, t)
		}
	}
	return out
}

func (r *memRepo) CountActive(_ context.Context, userID string, now time.Time) (int, error) {
	return len(r.active(userID, now)), nil
}

func (r *memRepo) FindOldestActive(_ context.Context, userID string, now time.Time) (*models.RefreshToken, error) {
	active := r.active(userID, now)
	if len(active) == 0 {
		return nil, common.ErrorNotFound
	}
	sortTokens(active)
	t := copyToken(active[0])
	return &t, nil
}

func (r *memRepo) FindByDigest(_ context.Context, digest string) (*models.RefreshToken, error) {
	id, ok := r.st.digests[digest]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := copyToken(r.st.records[id])
	return &t, nil
}

func (r *memRepo) Insert(_ context.Context, token *models.RefreshToken) error {
	if _, ok := r.st.digests[token.TokenDigest]; ok {
		return common.ErrorAlreadyExists
	}
	if _, ok := r.st.records[token.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.st.records[token.ID] = copyToken(*token)
	r.st.digests[token.TokenDigest] = token.ID
	return nil
}

func (r *memRepo) MarkRevoked(_ context.Context, id string, at time.Time) (bool, error) {
	t, ok := r.st.records[id]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.LastUsedAt = &at
	r.st.records[id] = t
	return true, nil
}

func (r *memRepo) RevokeAllForOwner(_ context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	for id, t := range r.st.records {
		if t.UserID != userID || t.Revoked {
			continue
		}
		usedAt := at
		t.Revoked = true
		t.LastUsedAt = &usedAt
		r.st.records[id] = t
		n++
	}
	return n, nil
}

func (r *memRepo) LockOwner(context.Context, string) error {
	return nil
}

func (r *memRepo) DeleteStale(_ context.Context, now, revokedBefore time.Time) (int64, error) {
	var n int64
	for id, t := range r.st.records {
		stale := t.ExpiresAt.Before(now) ||
			(t.Revoked && t.LastUsedAt != nil && t.LastUsedAt.Before(revokedBefore))
		if !stale {
			continue
		}
		delete(r.st.records, id)
		delete(r.st.digests, t.TokenDigest)
		n++
	}
	return n, nil
}

func sortTokens(ts []models.RefreshToken) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}
