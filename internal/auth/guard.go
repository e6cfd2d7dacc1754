package auth

import (
	"net/http"

	"github.com/google/uuid"

	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/model"
)

// RequireRole fails with Forbidden unless p holds role.
func RequireRole(p *model.Principal, role model.Role) error {
	if p == nil {
		return errs.Unauthenticated("No token, authorization denied")
	}
	if p.Role != role {
		if role == model.RoleAdmin {
			return errs.Forbidden("Access denied. Admin role required.")
		}
		return errs.Forbidden("Access denied. Role " + string(role) + " required.")
	}
	return nil
}

// RequireTenantMatch fails with Forbidden unless the resource belongs to p's
// tenant. Admins are scoped to their own tenant like everyone else.
func RequireTenantMatch(p *model.Principal, resourceTenantID uuid.UUID) error {
	if p == nil {
		return errs.Unauthenticated("No token, authorization denied")
	}
	if p.TenantID != resourceTenantID {
		return errs.Forbidden("Not authorized to access this resource")
	}
	return nil
}

// Predicate is an authorization requirement evaluated against the resolved principal.
type Predicate func(p *model.Principal) error

// Authenticated only requires that a principal was resolved.
func Authenticated(p *model.Principal) error {
	if p == nil {
		return errs.Unauthenticated("No token, authorization denied")
	}
	return nil
}

// AdminOnly requires the admin role.
func AdminOnly(p *model.Principal) error {
	return RequireRole(p, model.RoleAdmin)
}

// ErrorWriter renders an error response. The API layer supplies it.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the principal for every request and rejects the request
// when resolution fails.
func (r *Resolver) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p, err := r.Resolve(req.Context(), req.Header.Get("Authorization"))
			if err != nil {
				onError(w, req, err)
				return
			}
			next.ServeHTTP(w, req.WithContext(WithPrincipal(req.Context(), p)))
		})
	}
}

// Require applies every predicate to the request's principal before calling next.
// Routes declare their requirements through it instead of checking inline.
func Require(onError ErrorWriter, preds ...Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p, _ := PrincipalFromContext(req.Context())
			if err := Authenticated(p); err != nil {
				onError(w, req, err)
				return
			}
			for _, pred := range preds {
				if err := pred(p); err != nil {
					onError(w, req, err)
					return
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}
