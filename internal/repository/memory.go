package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

// MemoryStore is an in-memory implementation of every store
// interface in this package. It backs the unit tests and lets the
// server run without MySQL in development. All methods are safe for
// concurrent use; a single mutex guards the maps, which also gives
// Rotate its one-winner guarantee.
type MemoryStore struct {
	mu        sync.Mutex
	seq       uint64
	users     map[string]*model.User // keyed by normalized email
	usersByID map[uint64]*model.User
	refresh   map[string]*model.RefreshToken      // keyed by token hash
	verif     map[string]*model.VerificationToken // keyed by token hash
	attempts  []*model.LoginAttempt
	resources map[string]map[uint64]*Resource

	// Now is the clock; tests override it to move time.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seq:       0,
		users:     map[string]*model.User{},
		usersByID: map[uint64]*model.User{},
		refresh:   map[string]*model.RefreshToken{},
		verif:     map[string]*model.VerificationToken{},
		resources: map[string]map[uint64]*Resource{},
		Now:       time.Now,
	}
}

func (m *MemoryStore) nextID() uint64 {
	m.seq++
	return m.seq
}

// ----- UserStore -----

func (m *MemoryStore) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := m.users[email]; ok {
		return ErrEmailExists
	}
	now := m.Now()
	u.ID = m.nextID()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[email] = &cp
	m.usersByID[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = m.Now()
	return nil
}

func (m *MemoryStore) MarkEmailVerified(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[id]
	if !ok {
		return ErrNotFound
	}
	if u.EmailVerifiedAt == nil {
		now := m.Now()
		u.EmailVerifiedAt = &now
		u.UpdatedAt = now
	}
	return nil
}

// SetStatus flips an account's status. Only the in-memory store needs
// this; moderation flows against MySQL run their own UPDATE.
func (m *MemoryStore) SetStatus(id uint64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = m.Now()
	return nil
}

// ----- RefreshTokenStore -----

func (m *MemoryStore) Store(_ context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID()
	t.CreatedAt = m.Now()
	cp := *t
	m.refresh[t.TokenHash] = &cp
	return nil
}

func (m *MemoryStore) GetByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) Rotate(_ context.Context, oldHash string, replacement *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[oldHash]
	if !ok || t.UsedAt != nil || t.RevokedAt != nil {
		return ErrAlreadyUsed
	}
	now := m.Now()
	t.UsedAt = &now
	replacement.ID = m.nextID()
	replacement.CreatedAt = now
	cp := *replacement
	m.refresh[replacement.TokenHash] = &cp
	return nil
}

func (m *MemoryStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	for _, t := range m.refresh {
		if t.UserID == userID && t.UsedAt == nil && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// ----- VerificationTokenStore -----

func (m *MemoryStore) CreateInvalidatingPrior(_ context.Context, t *model.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	for _, prev := range m.verif {
		if prev.UserID == t.UserID && prev.Type == t.Type && prev.UsedAt == nil {
			used := now
			prev.UsedAt = &used
		}
	}
	t.ID = m.nextID()
	t.CreatedAt = now
	cp := *t
	m.verif[t.TokenHash] = &cp
	return nil
}

func (m *MemoryStore) GetVerificationByHash(_ context.Context, tokenHash string) (*model.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.verif[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) MarkVerificationUsed(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.verif[tokenHash]
	if !ok || t.UsedAt != nil {
		return ErrAlreadyUsed
	}
	now := m.Now()
	t.UsedAt = &now
	return nil
}

// ----- LoginAttemptStore -----

func (m *MemoryStore) Record(_ context.Context, a *model.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.CreatedAt = m.Now()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *MemoryStore) RecentFailures(_ context.Context, email string, windowSeconds int) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	cutoff := m.Now().Add(-time.Duration(windowSeconds) * time.Second)
	n := 0
	var oldest time.Time
	for _, a := range m.attempts {
		if a.Email == email && !a.Success && a.CreatedAt.After(cutoff) {
			n++
			if oldest.IsZero() || a.CreatedAt.Before(oldest) {
				oldest = a.CreatedAt
			}
		}
	}
	return n, oldest, nil
}

func (m *MemoryStore) ClearFailures(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.Email != email || a.Success {
			kept = append(kept, a)
		}
	}
	m.attempts = kept
	return nil
}

// ----- ResourceStore -----

// PutResource registers a resource row so authorization tests and the
// in-memory server have something to check ownership against.
func (m *MemoryStore) PutResource(resourceType string, id uint64, ownerID *uint64, public bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.resources[resourceType]
	if !ok {
		byID = map[uint64]*Resource{}
		m.resources[resourceType] = byID
	}
	byID[id] = &Resource{OwnerID: ownerID, Public: public}
}

func (m *MemoryStore) FindResource(_ context.Context, resourceType string, id uint64) (*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.resources[resourceType]
	if !ok {
		return nil, ErrNotFound
	}
	r, ok := byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

var (
	_ UserStore         = (*MemoryStore)(nil)
	_ RefreshTokenStore = (*MemoryStore)(nil)
	_ LoginAttemptStore = (*MemoryStore)(nil)
	_ ResourceStore     = (*MemoryStore)(nil)
)

// memVerificationStore adapts MemoryStore's verification methods to
// the VerificationTokenStore interface; the method names differ
// because MemoryStore already uses GetByHash for refresh tokens.
type memVerificationStore struct{ m *MemoryStore }

// VerificationTokens exposes the MemoryStore as a
// VerificationTokenStore.
func (m *MemoryStore) VerificationTokens() VerificationTokenStore {
	return memVerificationStore{m: m}
}

func (s memVerificationStore) CreateInvalidatingPrior(ctx context.Context, t *model.VerificationToken) error {
	return s.m.CreateInvalidatingPrior(ctx, t)
}

func (s memVerificationStore) GetByHash(ctx context.Context, tokenHash string) (*model.VerificationToken, error) {
	return s.m.GetVerificationByHash(ctx, tokenHash)
}

func (s memVerificationStore) MarkUsed(ctx context.Context, tokenHash string) error {
	return s.m.MarkVerificationUsed(ctx, tokenHash)
}

var _ VerificationTokenStore = memVerificationStore{}
