// internal/model/principal.go
package model

import "github.com/google/uuid"

// Principal is the identity resolved for a single request. It is never persisted.
type Principal struct {
	UserID     uuid.UUID
	Email      string
	Role       Role
	TenantID   uuid.UUID
	TenantSlug string
}

func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
