// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"multi-tenant-notes/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// QuotaFunc decides, from the tenant's tier and current note count, whether an
// insert may proceed. A non-nil error aborts the insert and is returned unchanged.
type QuotaFunc func(tier model.Tier, count int) error

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type TenantStore interface {
	CreateTenant(ctx context.Context, t *model.Tenant) error
	GetTenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	SetTenantTier(ctx context.Context, id uuid.UUID, tier model.Tier) error
}

type NoteStore interface {
	// CreateNoteWithinQuota counts the tenant's notes and inserts n in one
	// transaction, serialized per tenant, so concurrent creates cannot overshoot
	// the limit enforced by allow.
	CreateNoteWithinQuota(ctx context.Context, n *model.Note, allow QuotaFunc) error
	ListNotesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Note, error)
	GetNote(ctx context.Context, id uuid.UUID) (*model.Note, error)
	UpdateNote(ctx context.Context, n *model.Note) error
	DeleteNote(ctx context.Context, id uuid.UUID) error
	CountNotesByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// Store is the full persistence handle injected into the managers.
type Store interface {
	UserStore
	TenantStore
	NoteStore
	Close() error
}
