// internal/manager/tenant_manager.go
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/metrics"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

// SeedPassword is the password of every seeded demo user.
const SeedPassword = "password"

type seedTenant struct {
	name, slug string
}

var seedTenants = []seedTenant{
	{name: "Acme", slug: "acme"},
	{name: "Globex", slug: "globex"},
}

// TenantManager owns tenant lifecycle: provisioning, demo seeding and the
// free to pro upgrade.
type TenantManager struct {
	store  storage.Store
	events emitter
	log    *zap.Logger
	now    func() time.Time
}

func NewTenantManager(store storage.Store, pub EventPublisher, log *zap.Logger) *TenantManager {
	return &TenantManager{
		store:  store,
		events: newEmitter(pub, store, log),
		log:    log,
		now:    time.Now,
	}
}

// Upgrade moves the caller's own tenant to the pro plan. Upgrading a tenant
// that is already pro succeeds without changing anything.
func (tm *TenantManager) Upgrade(ctx context.Context, p *model.Principal, slug string) (*model.Tenant, error) {
	if err := auth.RequireRole(p, model.RoleAdmin); err != nil {
		return nil, err
	}

	tenant, err := tm.store.GetTenantBySlug(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.NotFound("Tenant not found")
	}
	if err != nil {
		return nil, errs.Internal("manager.Upgrade", err)
	}

	if err := auth.RequireTenantMatch(p, tenant.ID); err != nil {
		tm.log.Warn("cross-tenant upgrade refused",
			zap.String("user_id", p.UserID.String()),
			zap.String("tenant", tenant.Slug),
		)
		return nil, errs.Forbidden("Not authorized to upgrade this tenant")
	}

	if tenant.IsPro() {
		return tenant, nil
	}

	if err := tm.store.SetTenantTier(ctx, tenant.ID, model.TierPro); err != nil {
		return nil, errs.Internal("manager.Upgrade", err)
	}
	tenant.Subscription = model.TierPro

	metrics.TenantUpgrades.Inc()
	tm.log.Info("tenant upgraded", zap.String("tenant", tenant.Slug))
	tm.events.emit(ctx, model.EventTenantUpgraded, tenant.ID, uuid.Nil, tenant.Subscription)
	return tenant, nil
}

// Provision creates a tenant.
func (tm *TenantManager) Provision(ctx context.Context, name, slug string, tier model.Tier) (*model.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, errs.Invalid("Tenant slug is required")
	}
	if name == "" {
		name = slug
	}
	if tier == "" {
		tier = model.TierFree
	}
	if !tier.Valid() {
		return nil, errs.Invalid("Subscription must be free or pro")
	}

	tenant := &model.Tenant{
		ID:           uuid.New(),
		Name:         name,
		Slug:         slug,
		Subscription: tier,
		CreatedAt:    tm.now().UTC(),
	}
	switch err := tm.store.CreateTenant(ctx, tenant); {
	case errors.Is(err, storage.ErrConflict):
		return nil, errs.Conflict("Tenant already exists")
	case err != nil:
		return nil, errs.Internal("manager.Provision", err)
	}

	tm.log.Info("tenant provisioned", zap.String("tenant", tenant.Slug), zap.String("tier", string(tier)))
	return tenant, nil
}

// ProvisionUser creates a user in the tenant named by slug without an acting
// principal. It backs seeding and the command line.
func (tm *TenantManager) ProvisionUser(ctx context.Context, slug, email, password string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, errs.Invalid("Role must be admin or member")
	}
	tenant, err := tm.store.GetTenantBySlug(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.NotFound("Tenant not found")
	}
	if err != nil {
		return nil, errs.Internal("manager.ProvisionUser", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TenantID:     tenant.ID,
		CreatedAt:    tm.now().UTC(),
	}
	switch err := tm.store.CreateUser(ctx, user); {
	case errors.Is(err, storage.ErrConflict):
		return nil, errs.Conflict("User already exists")
	case err != nil:
		return nil, errs.Internal("manager.ProvisionUser", err)
	}
	return user, nil
}

// Seed creates the demo tenants and their admin and member users. Records that
// already exist are left untouched, so seeding twice is harmless.
func (tm *TenantManager) Seed(ctx context.Context) error {
	for _, st := range seedTenants {
		if _, err := tm.Provision(ctx, st.name, st.slug, model.TierFree); err != nil && errs.Code(err) != errs.EConflict {
			return fmt.Errorf("seed tenant %s: %w", st.slug, err)
		}

		users := []struct {
			email string
			role  model.Role
		}{
			{email: "admin@" + st.slug + ".test", role: model.RoleAdmin},
			{email: "user@" + st.slug + ".test", role: model.RoleMember},
		}
		for _, u := range users {
			_, err := tm.ProvisionUser(ctx, st.slug, u.email, SeedPassword, u.role)
			if err != nil && errs.Code(err) != errs.EConflict {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
		}
	}
	tm.log.Info("demo data seeded", zap.Int("tenants", len(seedTenants)))
	return nil
}

// ListTenantIDs returns the ids of every known tenant.
func (tm *TenantManager) ListTenantIDs(ctx context.Context) ([]string, error) {
	tenants, err := tm.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID.String())
	}
	return ids, nil
}
