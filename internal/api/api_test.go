package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/config"
	"multi-tenant-notes/internal/manager"
	"multi-tenant-notes/internal/storage"
)

func TestMain(m *testing.M) {
	auth.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testServer struct {
	api     *API
	handler http.Handler
	store   storage.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	store := storage.NewMemory()

	tokens, err := auth.NewTokenService("api-test-secret", time.Hour)
	require.NoError(t, err)

	tenants := manager.NewTenantManager(store, nil, log)
	require.NoError(t, tenants.Seed(context.Background()))

	cfg := config.Default()
	cfg.Auth.JWTSecret = "api-test-secret"

	a := NewAPI(
		manager.NewAccountManager(store, store, tokens, log),
		manager.NewNoteManager(store, store, nil, log),
		tenants,
		auth.NewResolver(tokens, store, log),
		cfg,
		log,
	)
	return &testServer{api: a, handler: a.Router(), store: store}
}

type response struct {
	Code int
	Body map[string]interface{}
	Raw  *httptest.ResponseRecorder
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	res := response{Code: rec.Code, Raw: rec}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.Body))
	}
	return res
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	res := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password"})
	require.Equal(t, http.StatusOK, res.Code, res.Raw.Body.String())
	token, ok := res.Body["token"].(string)
	require.True(t, ok)
	return token
}

func (s *testServer) createNote(t *testing.T, token, title string) response {
	t.Helper()
	return s.do(t, http.MethodPost, "/notes", token, map[string]string{"title": title, "content": "body of " + title})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])
	assert.Equal(t, "Server is running", res.Body["message"])
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@acme.test", "password": "password"})
	require.Equal(t, http.StatusOK, res.Code)
	user := res.Body["user"].(map[string]interface{})
	assert.Equal(t, "admin@acme.test", user["email"])
	assert.Equal(t, "admin", user["role"])
	tenant := user["tenant"].(map[string]interface{})
	assert.Equal(t, "acme", tenant["slug"])
	assert.Equal(t, "free", tenant["subscription"])

	me := s.do(t, http.MethodGet, "/auth/me", res.Body["token"].(string), nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "admin@acme.test", me.Body["user"].(map[string]interface{})["email"])

	bad := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@acme.test", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "Invalid credentials", bad.Body["message"])

	malformed := s.do(t, http.MethodPost, "/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Equal(t, "Invalid request body", malformed.Body["message"])
}

func TestUnauthenticatedRequests(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/auth/me", "/notes"} {
		res := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code, path)
		assert.Equal(t, "No token, authorization denied", res.Body["message"])
	}

	res := s.do(t, http.MethodGet, "/notes", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Token is not valid", res.Body["message"])

	res = s.do(t, http.MethodPost, "/tenants/acme/upgrade", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@acme.test")
	member := s.login(t, "user@acme.test")

	res := s.do(t, http.MethodPost, "/auth/register", member, map[string]string{"email": "x@acme.test", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Access denied. Admin role required.", res.Body["message"])

	res = s.do(t, http.MethodPost, "/auth/register", admin, map[string]string{"email": "new@acme.test", "password": "pw"})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "User registered successfully", res.Body["message"])

	res = s.do(t, http.MethodPost, "/auth/register", admin, map[string]string{"email": "new@acme.test", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "User already exists", res.Body["message"])

	login := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@acme.test", "password": "pw"})
	require.Equal(t, http.StatusOK, login.Code)
	user := login.Body["user"].(map[string]interface{})
	assert.Equal(t, "member", user["role"])
	assert.Equal(t, "acme", user["tenant"].(map[string]interface{})["slug"])
}

func TestNoteQuotaAndUpgradeFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@acme.test")
	member := s.login(t, "user@acme.test")

	for i := 0; i < 3; i++ {
		res := s.createNote(t, member, fmt.Sprintf("note %d", i))
		require.Equal(t, http.StatusCreated, res.Code, res.Raw.Body.String())
	}

	res := s.createNote(t, member, "one too many")
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, true, res.Body["limitReached"])
	assert.Equal(t, "Free plan limit reached. Please upgrade to Pro for unlimited notes.", res.Body["message"])

	list := s.do(t, http.MethodGet, "/notes", member, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Equal(t, float64(3), list.Body["noteCount"])
	assert.Equal(t, "free", list.Body["subscription"])
	assert.Equal(t, false, list.Body["isProPlan"])
	assert.Equal(t, true, list.Body["limitReached"])

	res = s.do(t, http.MethodPost, "/tenants/acme/upgrade", member, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.do(t, http.MethodPost, "/tenants/globex/upgrade", admin, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Not authorized to upgrade this tenant", res.Body["message"])

	res = s.do(t, http.MethodPost, "/tenants/initech/upgrade", admin, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Tenant not found", res.Body["message"])

	res = s.do(t, http.MethodPost, "/tenants/acme/upgrade", admin, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Subscription upgraded to Pro successfully", res.Body["message"])
	assert.Equal(t, "pro", res.Body["tenant"].(map[string]interface{})["subscription"])

	for i := 0; i < 5; i++ {
		res = s.createNote(t, member, fmt.Sprintf("pro note %d", i))
		require.Equal(t, http.StatusCreated, res.Code, res.Raw.Body.String())
	}

	list = s.do(t, http.MethodGet, "/notes", member, nil)
	assert.Equal(t, float64(8), list.Body["noteCount"])
	assert.Equal(t, true, list.Body["isProPlan"])
	assert.Equal(t, false, list.Body["limitReached"])
}

func TestNoteCRUDAndIsolation(t *testing.T) {
	s := newTestServer(t)
	acme := s.login(t, "user@acme.test")
	globex := s.login(t, "admin@globex.test")

	created := s.createNote(t, acme, "plan")
	require.Equal(t, http.StatusCreated, created.Code)
	id := created.Body["id"].(string)
	assert.Equal(t, "plan", created.Body["title"])
	assert.NotEmpty(t, created.Body["tenantId"])
	assert.NotEmpty(t, created.Body["createdBy"])

	path := "/notes/" + id

	got := s.do(t, http.MethodGet, path, acme, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, id, got.Body["id"])

	res := s.do(t, http.MethodGet, path, globex, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = s.do(t, http.MethodPut, path, globex, map[string]string{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = s.do(t, http.MethodDelete, path, globex, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	theirs := s.do(t, http.MethodGet, "/notes", globex, nil)
	assert.Equal(t, float64(0), theirs.Body["noteCount"])
	assert.Empty(t, theirs.Body["notes"])

	updated := s.do(t, http.MethodPut, path, acme, map[string]string{"content": "revised"})
	require.Equal(t, http.StatusOK, updated.Code)
	assert.Equal(t, "plan", updated.Body["title"])
	assert.Equal(t, "revised", updated.Body["content"])

	empty := s.do(t, http.MethodPut, path, acme, nil)
	require.Equal(t, http.StatusOK, empty.Code, "an empty body is an empty patch")
	assert.Equal(t, "plan", empty.Body["title"])
	assert.Equal(t, "revised", empty.Body["content"])

	malformed := s.do(t, http.MethodPut, path, acme, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Equal(t, "Invalid request body", malformed.Body["message"])

	deleted := s.do(t, http.MethodDelete, path, acme, nil)
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.Equal(t, "Note deleted successfully", deleted.Body["message"])

	res = s.do(t, http.MethodGet, path, acme, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Note not found", res.Body["message"])

	res = s.do(t, http.MethodGet, "/notes/not-a-uuid", acme, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = s.do(t, http.MethodPost, "/notes", acme, map[string]string{"title": "no content"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDeletedUserTokenStopsWorking(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "user@globex.test")

	require.NoError(t, s.api.Accounts.Deactivate(context.Background(), "user@globex.test"))

	res := s.do(t, http.MethodGet, "/notes", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "User not found", res.Body["message"])
}

func TestRecovererRendersServerError(t *testing.T) {
	s := newTestServer(t)
	h := s.api.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Server error"}`, rec.Body.String())
}

func TestCORSAllowList(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
