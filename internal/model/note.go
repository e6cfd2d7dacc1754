// internal/model/note.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenantId"`
	CreatedBy uuid.UUID `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NotePatch is a partial update. Nil or empty fields keep their prior value.
type NotePatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Apply copies the present fields of p onto n and refreshes UpdatedAt.
func (p NotePatch) Apply(n *Note, now time.Time) {
	if p.Title != nil && *p.Title != "" {
		n.Title = *p.Title
	}
	if p.Content != nil && *p.Content != "" {
		n.Content = *p.Content
	}
	n.UpdatedAt = now
}
