// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"multi-tenant-notes/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	slug         TEXT NOT NULL UNIQUE CHECK (slug = lower(slug)),
	subscription TEXT NOT NULL DEFAULT 'free' CHECK (subscription IN ('free', 'pro')),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'member')),
	tenant_id     UUID NOT NULL REFERENCES tenants (id),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS notes (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	tenant_id  UUID NOT NULL REFERENCES tenants (id),
	created_by UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_tenant_created_idx ON notes (tenant_id, created_at DESC);
`

type Postgres struct {
	DB *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &Postgres{DB: db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	return s.DB.Close()
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row scanner) (*model.Tenant, error) {
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Subscription, &t.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.TenantID, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func scanNote(row scanner) (*model.Note, error) {
	var n model.Note
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.TenantID, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

const (
	tenantColumns = `id, name, slug, subscription, created_at`
	userColumns   = `id, email, password_hash, role, tenant_id, created_at`
	noteColumns   = `id, title, content, tenant_id, created_by, created_at, updated_at`
)

func (s *Postgres) CreateTenant(ctx context.Context, t *model.Tenant) error {
	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, subscription, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Slug, t.Subscription, t.CreatedAt)
	return translate(err)
}

func (s *Postgres) GetTenantByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return scanTenant(s.DB.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (s *Postgres) GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return scanTenant(s.DB.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, strings.ToLower(slug)))
}

func (s *Postgres) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

func (s *Postgres) SetTenantTier(ctx context.Context, id uuid.UUID, tier model.Tier) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tenants SET subscription = $1 WHERE id = $2`, tier, id)
	if err != nil {
		return translate(err)
	}
	return expectOneRow(res)
}

func (s *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.TenantID, u.CreatedAt)
	return translate(err)
}

func (s *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, model.NormalizeEmail(email)))
}

func (s *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return expectOneRow(res)
}

// CreateNoteWithinQuota locks the tenant row so concurrent creates for the same
// tenant queue behind each other between the count and the insert.
func (s *Postgres) CreateNoteWithinQuota(ctx context.Context, n *model.Note, allow QuotaFunc) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var tier model.Tier
	err = tx.QueryRowContext(ctx, `SELECT subscription FROM tenants WHERE id = $1 FOR UPDATE`, n.TenantID).Scan(&tier)
	if err != nil {
		return translate(err)
	}

	var count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, n.TenantID).Scan(&count); err != nil {
		return fmt.Errorf("count notes: %w", err)
	}
	if err = allow(tier, count); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.Title, n.Content, n.TenantID, n.CreatedBy, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return tx.Commit()
}

func (s *Postgres) ListNotesByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Note, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *Postgres) GetNote(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	return scanNote(s.DB.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
}

func (s *Postgres) UpdateNote(ctx context.Context, n *model.Note) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE notes
		SET title = $1, content = $2, updated_at = $3
		WHERE id = $4
	`, n.Title, n.Content, n.UpdatedAt, n.ID)
	if err != nil {
		return translate(err)
	}
	return expectOneRow(res)
}

func (s *Postgres) DeleteNote(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return expectOneRow(res)
}

func (s *Postgres) CountNotesByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, translate(err)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
