// internal/model/user.go
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	TenantID     uuid.UUID `db:"tenant_id" json:"tenantId"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserView is the user payload returned by login and /auth/me.
type UserView struct {
	ID     uuid.UUID  `json:"id"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	Tenant TenantView `json:"tenant"`
}

func NewUserView(u *User, t *Tenant) UserView {
	return UserView{
		ID:     u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Tenant: t.View(),
	}
}
