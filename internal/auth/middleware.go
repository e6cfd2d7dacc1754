// internal/auth/middleware.go
package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

type contextKey string

const principalKey contextKey = "principal"

// Resolver turns an Authorization header into a Principal. It is the single
// entry point of every protected operation.
type Resolver struct {
	tokens *TokenService
	users  storage.UserStore
	log    *zap.Logger
}

func NewResolver(tokens *TokenService, users storage.UserStore, log *zap.Logger) *Resolver {
	return &Resolver{tokens: tokens, users: users, log: log}
}

// Resolve verifies the bearer token in header and re-reads the user it names.
// Role and tenant come from the stored user, not from the token, so a deleted
// or altered user takes effect before the token expires.
func (r *Resolver) Resolve(ctx context.Context, header string) (*model.Principal, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errs.Unauthenticated("No token, authorization denied")
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return nil, errs.Unauthenticated("No token, authorization denied")
	}

	claims, err := r.tokens.Verify(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		r.log.Warn("token names a user that no longer exists", zap.String("user_id", claims.UserID.String()))
		return nil, errs.Unauthenticated("User not found")
	}
	if err != nil {
		return nil, errs.Internal("auth.Resolve", err)
	}

	return &model.Principal{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		TenantID:   user.TenantID,
		TenantSlug: claims.TenantSlug,
	}, nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the principal attached by the middleware.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok && p != nil
}
