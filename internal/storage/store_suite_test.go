package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/model"
)

// freeLimit mirrors the quota package without importing it into storage tests.
func freeLimit(tier model.Tier, count int) error {
	if tier == model.TierPro || count < 3 {
		return nil
	}
	return errs.QuotaExceeded("limit")
}

func newTenant(slug string, tier model.Tier) *model.Tenant {
	return &model.Tenant{
		ID:           uuid.New(),
		Name:         slug,
		Slug:         slug,
		Subscription: tier,
		CreatedAt:    time.Now().UTC(),
	}
}

func newNote(tenantID uuid.UUID, title string, at time.Time) *model.Note {
	return &model.Note{
		ID:        uuid.New(),
		Title:     title,
		Content:   "content of " + title,
		TenantID:  tenantID,
		CreatedBy: uuid.New(),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// runStoreSuite exercises the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("tenants", func(t *testing.T) {
		s := newStore(t)
		acme := newTenant("Acme", model.TierFree)
		require.NoError(t, s.CreateTenant(ctx, acme))
		assert.Equal(t, "acme", acme.Slug)

		assert.ErrorIs(t, s.CreateTenant(ctx, newTenant("ACME", model.TierFree)), ErrConflict)

		got, err := s.GetTenantBySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
		assert.Equal(t, model.TierFree, got.Subscription)

		_, err = s.GetTenantBySlug(ctx, "globex")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetTenantByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SetTenantTier(ctx, acme.ID, model.TierPro))
		got, err = s.GetTenantByID(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TierPro, got.Subscription)
		assert.Equal(t, "acme", got.Slug)

		assert.ErrorIs(t, s.SetTenantTier(ctx, uuid.New(), model.TierPro), ErrNotFound)

		require.NoError(t, s.CreateTenant(ctx, newTenant("globex", model.TierFree)))
		all, err := s.ListTenants(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "acme", all[0].Slug)
		assert.Equal(t, "globex", all[1].Slug)
	})

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		acme := newTenant("acme", model.TierFree)
		require.NoError(t, s.CreateTenant(ctx, acme))

		u := &model.User{
			ID:           uuid.New(),
			Email:        " Admin@Acme.Test",
			PasswordHash: "hash",
			Role:         model.RoleAdmin,
			TenantID:     acme.ID,
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.Equal(t, "admin@acme.test", u.Email)

		dup := *u
		dup.ID = uuid.New()
		dup.Email = "ADMIN@acme.test"
		assert.ErrorIs(t, s.CreateUser(ctx, &dup), ErrConflict)

		orphan := *u
		orphan.ID = uuid.New()
		orphan.Email = "orphan@nowhere.test"
		orphan.TenantID = uuid.New()
		assert.Error(t, s.CreateUser(ctx, &orphan))

		got, err := s.GetUserByEmail(ctx, "admin@ACME.test")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, model.RoleAdmin, got.Role)
		assert.Equal(t, acme.ID, got.TenantID)

		got, err = s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)

		require.NoError(t, s.DeleteUser(ctx, u.ID))
		_, err = s.GetUserByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetUserByEmail(ctx, u.Email)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), ErrNotFound)
	})

	t.Run("notes", func(t *testing.T) {
		s := newStore(t)
		acme := newTenant("acme", model.TierFree)
		globex := newTenant("globex", model.TierFree)
		require.NoError(t, s.CreateTenant(ctx, acme))
		require.NoError(t, s.CreateTenant(ctx, globex))

		base := time.Now().UTC().Truncate(time.Millisecond)
		first := newNote(acme.ID, "first", base)
		second := newNote(acme.ID, "second", base.Add(time.Second))
		other := newNote(globex.ID, "other", base)
		for _, n := range []*model.Note{first, second, other} {
			require.NoError(t, s.CreateNoteWithinQuota(ctx, n, freeLimit))
		}

		list, err := s.ListNotesByTenant(ctx, acme.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "second", list[0].Title)
		assert.Equal(t, "first", list[1].Title)

		count, err := s.CountNotesByTenant(ctx, globex.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := s.GetNote(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, globex.ID, got.TenantID)

		got.Title = "renamed"
		got.TenantID = acme.ID
		got.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, s.UpdateNote(ctx, got))
		got, err = s.GetNote(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.Equal(t, globex.ID, got.TenantID, "tenant ownership must not change on update")
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))

		require.NoError(t, s.DeleteNote(ctx, first.ID))
		_, err = s.GetNote(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteNote(ctx, first.ID), ErrNotFound)
		assert.ErrorIs(t, s.UpdateNote(ctx, first), ErrNotFound)

		count, err = s.CountNotesByTenant(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		empty, err := s.ListNotesByTenant(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("quota is enforced inside the insert", func(t *testing.T) {
		s := newStore(t)
		acme := newTenant("acme", model.TierFree)
		require.NoError(t, s.CreateTenant(ctx, acme))

		for i := 0; i < 3; i++ {
			require.NoError(t, s.CreateNoteWithinQuota(ctx, newNote(acme.ID, "n", time.Now().UTC()), freeLimit))
		}
		err := s.CreateNoteWithinQuota(ctx, newNote(acme.ID, "n", time.Now().UTC()), freeLimit)
		assert.Equal(t, errs.EQuotaExceeded, errs.Code(err))

		count, err := s.CountNotesByTenant(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		require.NoError(t, s.SetTenantTier(ctx, acme.ID, model.TierPro))
		for i := 0; i < 3; i++ {
			require.NoError(t, s.CreateNoteWithinQuota(ctx, newNote(acme.ID, "n", time.Now().UTC()), freeLimit))
		}
		count, err = s.CountNotesByTenant(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, count)

		err = s.CreateNoteWithinQuota(ctx, newNote(uuid.New(), "n", time.Now().UTC()), freeLimit)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent creates never exceed the free limit", func(t *testing.T) {
		s := newStore(t)
		acme := newTenant("acme", model.TierFree)
		require.NoError(t, s.CreateTenant(ctx, acme))

		var wg sync.WaitGroup
		results := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.CreateNoteWithinQuota(ctx, newNote(acme.ID, "race", time.Now().UTC()), freeLimit)
			}()
		}
		wg.Wait()
		close(results)

		created := 0
		for err := range results {
			if err == nil {
				created++
				continue
			}
			assert.Equal(t, errs.EQuotaExceeded, errs.Code(err))
		}
		assert.Equal(t, 3, created)

		count, err := s.CountNotesByTenant(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}
