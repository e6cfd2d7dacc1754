// internal/storage/bolt.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"multi-tenant-notes/internal/model"
)

var (
	tenantsBucket     = []byte("tenantsv1")
	tenantSlugsBucket = []byte("tenantslugsv1")
	usersBucket       = []byte("usersv1")
	userEmailsBucket  = []byte("useremailsv1")
	notesBucket       = []byte("notesv1")
	// keys are tenantID||noteID, values are empty
	tenantNotesBucket = []byte("tenantnotesv1")
)

// Bolt is a Store on an embedded bbolt file. Each collection is a bucket of
// JSON documents keyed by the record's UUID bytes. bbolt allows a single
// writer at a time, so read-count-insert inside one Update is serialized.
type Bolt struct {
	Path string
	db   *bolt.DB
}

var _ Store = (*Bolt)(nil)

// NewBolt opens (creating if needed) the bbolt file at path and its buckets.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	b := &Bolt{Path: path, db: db}
	if err := b.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bolt) initialize() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{tenantsBucket, tenantSlugsBucket, usersBucket, userEmailsBucket, notesBucket, tenantNotesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func getJSON(bkt *bolt.Bucket, key []byte, v interface{}) error {
	data := bkt.Get(key)
	if len(data) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(bkt *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bkt.Put(key, data)
}

func noteIndexKey(tenantID, noteID uuid.UUID) []byte {
	key := make([]byte, 0, 32)
	key = append(key, tenantID[:]...)
	return append(key, noteID[:]...)
}

// Tenants

func (b *Bolt) CreateTenant(_ context.Context, t *model.Tenant) error {
	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	return b.db.Update(func(tx *bolt.Tx) error {
		tenants, slugs := tx.Bucket(tenantsBucket), tx.Bucket(tenantSlugsBucket)
		if tenants.Get(t.ID[:]) != nil || slugs.Get([]byte(t.Slug)) != nil {
			return ErrConflict
		}
		if err := putJSON(tenants, t.ID[:], t); err != nil {
			return err
		}
		return slugs.Put([]byte(t.Slug), t.ID[:])
	})
}

func (b *Bolt) GetTenantByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(tenantsBucket), id[:], &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *Bolt) GetTenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	var t model.Tenant
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(tenantSlugsBucket).Get([]byte(strings.ToLower(slug)))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(tenantsBucket), id, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (b *Bolt) ListTenants(_ context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tenantsBucket).ForEach(func(_, v []byte) error {
			var t model.Tenant
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			tenants = append(tenants, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Slug < tenants[j].Slug })
	return tenants, nil
}

func (b *Bolt) SetTenantTier(_ context.Context, id uuid.UUID, tier model.Tier) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(tenantsBucket)
		var t model.Tenant
		if err := getJSON(bkt, id[:], &t); err != nil {
			return err
		}
		t.Subscription = tier
		return putJSON(bkt, id[:], &t)
	})
}

// Users

func (b *Bolt) CreateUser(_ context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(tenantsBucket).Get(u.TenantID[:]) == nil {
			return ErrNotFound
		}
		users, emails := tx.Bucket(usersBucket), tx.Bucket(userEmailsBucket)
		if users.Get(u.ID[:]) != nil || emails.Get([]byte(u.Email)) != nil {
			return ErrConflict
		}
		if err := putJSON(users, u.ID[:], u); err != nil {
			return err
		}
		return emails.Put([]byte(u.Email), u.ID[:])
	})
}

func (b *Bolt) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(usersBucket), id[:], &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (b *Bolt) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	var u model.User
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(userEmailsBucket).Get([]byte(model.NormalizeEmail(email)))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(usersBucket), id, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (b *Bolt) DeleteUser(_ context.Context, id uuid.UUID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucket)
		var u model.User
		if err := getJSON(users, id[:], &u); err != nil {
			return err
		}
		if err := tx.Bucket(userEmailsBucket).Delete([]byte(u.Email)); err != nil {
			return err
		}
		return users.Delete(id[:])
	})
}

// Notes

func (b *Bolt) CreateNoteWithinQuota(_ context.Context, n *model.Note, allow QuotaFunc) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var t model.Tenant
		if err := getJSON(tx.Bucket(tenantsBucket), n.TenantID[:], &t); err != nil {
			return err
		}
		if err := allow(t.Subscription, countPrefix(tx.Bucket(tenantNotesBucket), n.TenantID[:])); err != nil {
			return err
		}
		notes := tx.Bucket(notesBucket)
		if notes.Get(n.ID[:]) != nil {
			return ErrConflict
		}
		if err := putJSON(notes, n.ID[:], n); err != nil {
			return err
		}
		return tx.Bucket(tenantNotesBucket).Put(noteIndexKey(n.TenantID, n.ID), []byte{})
	})
}

func (b *Bolt) ListNotesByTenant(_ context.Context, tenantID uuid.UUID) ([]model.Note, error) {
	notes := make([]model.Note, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(notesBucket)
		c := tx.Bucket(tenantNotesBucket).Cursor()
		prefix := tenantID[:]
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			var n model.Note
			if err := getJSON(bkt, k[len(prefix):], &n); err != nil {
				return fmt.Errorf("note index %x: %w", k, err)
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (b *Bolt) GetNote(_ context.Context, id uuid.UUID) (*model.Note, error) {
	var n model.Note
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(notesBucket), id[:], &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (b *Bolt) UpdateNote(_ context.Context, n *model.Note) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(notesBucket)
		var prev model.Note
		if err := getJSON(bkt, n.ID[:], &prev); err != nil {
			return err
		}
		n.TenantID, n.CreatedBy, n.CreatedAt = prev.TenantID, prev.CreatedBy, prev.CreatedAt
		return putJSON(bkt, n.ID[:], n)
	})
}

func (b *Bolt) DeleteNote(_ context.Context, id uuid.UUID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(notesBucket)
		var n model.Note
		if err := getJSON(bkt, id[:], &n); err != nil {
			return err
		}
		if err := tx.Bucket(tenantNotesBucket).Delete(noteIndexKey(n.TenantID, n.ID)); err != nil {
			return err
		}
		return bkt.Delete(id[:])
	})
}

func (b *Bolt) CountNotesByTenant(_ context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := b.db.View(func(tx *bolt.Tx) error {
		count = countPrefix(tx.Bucket(tenantNotesBucket), tenantID[:])
		return nil
	})
	return count, err
}

func countPrefix(bkt *bolt.Bucket, prefix []byte) int {
	count := 0
	c := bkt.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		count++
	}
	return count
}
