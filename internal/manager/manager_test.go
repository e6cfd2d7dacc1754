package manager

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

func TestMain(m *testing.M) {
	auth.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// recorder is an EventPublisher that keeps every decoded event.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
	fail   error
}

func (r *recorder) Publish(tenantID string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	if ev.TenantID.String() != tenantID {
		return errors.New("event routed to the wrong tenant queue")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// ticker returns a clock that advances one second per call.
func ticker() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type env struct {
	store    storage.Store
	tokens   *auth.TokenService
	pub      *recorder
	accounts *AccountManager
	notes    *NoteManager
	tenants  *TenantManager
}

// newEnv seeds the demo tenants into a fresh in-memory store.
func newEnv(t *testing.T) *env {
	t.Helper()
	store := storage.NewMemory()
	tokens, err := auth.NewTokenService("manager-test-secret", time.Hour)
	require.NoError(t, err)

	log := zap.NewNop()
	pub := &recorder{}
	e := &env{
		store:    store,
		tokens:   tokens,
		pub:      pub,
		accounts: NewAccountManager(store, store, tokens, log),
		notes:    NewNoteManager(store, store, pub, log),
		tenants:  NewTenantManager(store, pub, log),
	}
	e.notes.now = ticker()
	require.NoError(t, e.tenants.Seed(context.Background()))
	return e
}

// principal builds the principal the resolver would produce for email.
func (e *env) principal(t *testing.T, email string) *model.Principal {
	t.Helper()
	ctx := context.Background()
	u, err := e.store.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	tenant, err := e.store.GetTenantByID(ctx, u.TenantID)
	require.NoError(t, err)
	return &model.Principal{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
	}
}
