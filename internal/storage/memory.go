// internal/storage/memory.go
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"multi-tenant-notes/internal/model"
)

// Memory is a process-local Store. It backs the `memory` driver and the tests.
type Memory struct {
	mu sync.Mutex

	tenants map[uuid.UUID]model.Tenant
	users   map[uuid.UUID]model.User
	notes   map[uuid.UUID]model.Note
	// insertion order, used to break CreatedAt ties when listing
	noteOrder []uuid.UUID
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tenants: make(map[uuid.UUID]model.Tenant),
		users:   make(map[uuid.UUID]model.User),
		notes:   make(map[uuid.UUID]model.Note),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateTenant(_ context.Context, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	for _, existing := range m.tenants {
		if existing.ID == t.ID || existing.Slug == t.Slug {
			return ErrConflict
		}
	}
	m.tenants[t.ID] = *t
	return nil
}

func (m *Memory) GetTenantByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) GetTenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slug = strings.ToLower(slug)
	for _, t := range m.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListTenants(_ context.Context) ([]model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenants := make([]model.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Slug < tenants[j].Slug })
	return tenants, nil
}

func (m *Memory) SetTenantTier(_ context.Context, id uuid.UUID, tier model.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Subscription = tier
	m.tenants[id] = t
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = model.NormalizeEmail(u.Email)
	if _, ok := m.tenants[u.TenantID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.users {
		if existing.ID == u.ID || existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = model.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// DeleteUser removes a user record. Tokens already issued to the user stop
// resolving on their next request.
func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) CreateNoteWithinQuota(_ context.Context, n *model.Note, allow QuotaFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[n.TenantID]
	if !ok {
		return ErrNotFound
	}
	if err := allow(t.Subscription, m.countLocked(n.TenantID)); err != nil {
		return err
	}
	if _, exists := m.notes[n.ID]; exists {
		return ErrConflict
	}
	m.notes[n.ID] = *n
	m.noteOrder = append(m.noteOrder, n.ID)
	return nil
}

func (m *Memory) ListNotesByTenant(_ context.Context, tenantID uuid.UUID) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	notes := make([]model.Note, 0)
	for i := len(m.noteOrder) - 1; i >= 0; i-- {
		n, ok := m.notes[m.noteOrder[i]]
		if ok && n.TenantID == tenantID {
			notes = append(notes, n)
		}
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (m *Memory) GetNote(_ context.Context, id uuid.UUID) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (m *Memory) UpdateNote(_ context.Context, n *model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.notes[n.ID]
	if !ok {
		return ErrNotFound
	}
	// ownership columns are immutable
	n.TenantID, n.CreatedBy, n.CreatedAt = prev.TenantID, prev.CreatedBy, prev.CreatedAt
	m.notes[n.ID] = *n
	return nil
}

func (m *Memory) DeleteNote(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(m.notes, id)
	for i, nid := range m.noteOrder {
		if nid == id {
			m.noteOrder = append(m.noteOrder[:i], m.noteOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) CountNotesByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(tenantID), nil
}

func (m *Memory) countLocked(tenantID uuid.UUID) int {
	count := 0
	for _, n := range m.notes {
		if n.TenantID == tenantID {
			count++
		}
	}
	return count
}
