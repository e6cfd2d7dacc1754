// internal/model/tenant.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

type Tenant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	Subscription Tier      `db:"subscription" json:"subscription"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

func (t *Tenant) IsPro() bool {
	return t.Subscription == TierPro
}

// TenantView is the tenant shape embedded in user payloads and upgrade responses.
type TenantView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Subscription Tier      `json:"subscription"`
}

func (t *Tenant) View() TenantView {
	return TenantView{
		ID:           t.ID,
		Name:         t.Name,
		Slug:         t.Slug,
		Subscription: t.Subscription,
	}
}
