package manager

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/metrics"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

var errInvalidCredentials = errs.Invalid("Invalid credentials")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string         `json:"token"`
	User  model.UserView `json:"user"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AccountManager handles login, registration and the current-user view.
type AccountManager struct {
	users   storage.UserStore
	tenants storage.TenantStore
	tokens  *auth.TokenService
	log     *zap.Logger
	now     func() time.Time
}

func NewAccountManager(users storage.UserStore, tenants storage.TenantStore, tokens *auth.TokenService, log *zap.Logger) *AccountManager {
	return &AccountManager{
		users:   users,
		tenants: tenants,
		tokens:  tokens,
		log:     log,
		now:     time.Now,
	}
}

// Login exchanges credentials for a token. Every credential failure yields the
// same message so callers cannot tell which emails exist.
func (m *AccountManager) Login(ctx context.Context, c Credentials) (*LoginResult, error) {
	if c.Email == "" || c.Password == "" {
		return nil, errInvalidCredentials
	}

	user, err := m.users.GetUserByEmail(ctx, c.Email)
	if errors.Is(err, storage.ErrNotFound) {
		m.reject("unknown_email")
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, errs.Internal("manager.Login", err)
	}

	if !auth.CheckPassword(user.PasswordHash, c.Password) {
		m.reject("bad_password")
		return nil, errInvalidCredentials
	}

	tenant, err := m.tenants.GetTenantByID(ctx, user.TenantID)
	if errors.Is(err, storage.ErrNotFound) {
		m.log.Warn("user belongs to a missing tenant", zap.String("user_id", user.ID.String()))
		m.reject("missing_tenant")
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, errs.Internal("manager.Login", err)
	}

	token, _, err := m.tokens.Issue(model.Principal{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
	})
	if err != nil {
		return nil, errs.Internal("manager.Login", err)
	}

	m.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant", tenant.Slug),
	)
	return &LoginResult{Token: token, User: model.NewUserView(user, tenant)}, nil
}

func (m *AccountManager) reject(reason string) {
	metrics.AuthFailures.WithLabelValues(reason).Inc()
}

// Register creates a user inside the calling admin's tenant.
func (m *AccountManager) Register(ctx context.Context, p *model.Principal, req RegisterRequest) (*model.User, error) {
	if err := auth.RequireRole(p, model.RoleAdmin); err != nil {
		return nil, err
	}

	email := model.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, errs.Invalid("Email and password are required")
	}

	role := model.RoleMember
	if req.Role != "" {
		role = model.Role(req.Role)
		if !role.Valid() {
			return nil, errs.Invalid("Role must be admin or member")
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errs.Code(err) == errs.EInvalid {
			return nil, err
		}
		return nil, errs.Internal("manager.Register", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TenantID:     p.TenantID,
		CreatedAt:    m.now().UTC(),
	}
	switch err := m.users.CreateUser(ctx, user); {
	case errors.Is(err, storage.ErrConflict):
		return nil, errs.Conflict("User already exists")
	case err != nil:
		return nil, errs.Internal("manager.Register", err)
	}

	m.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// Me returns the stored view of the calling user.
func (m *AccountManager) Me(ctx context.Context, p *model.Principal) (*model.UserView, error) {
	if err := auth.Authenticated(p); err != nil {
		return nil, err
	}

	user, err := m.users.GetUserByID(ctx, p.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.Unauthenticated("User not found")
	}
	if err != nil {
		return nil, errs.Internal("manager.Me", err)
	}

	tenant, err := m.tenants.GetTenantByID(ctx, user.TenantID)
	if err != nil {
		return nil, errs.Internal("manager.Me", err)
	}

	view := model.NewUserView(user, tenant)
	return &view, nil
}

// Deactivate removes a user. Tokens already issued to it stop resolving at once.
func (m *AccountManager) Deactivate(ctx context.Context, email string) error {
	user, err := m.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound("User not found")
	}
	if err != nil {
		return errs.Internal("manager.Deactivate", err)
	}
	if err := m.users.DeleteUser(ctx, user.ID); err != nil {
		return errs.Internal("manager.Deactivate", err)
	}
	m.log.Info("user deactivated", zap.String("user_id", user.ID.String()))
	return nil
}
