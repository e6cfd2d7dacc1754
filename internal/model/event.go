// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNoteCreated    EventType = "note.created"
	EventNoteUpdated    EventType = "note.updated"
	EventNoteDeleted    EventType = "note.deleted"
	EventTenantUpgraded EventType = "tenant.upgraded"
)

// Event is published on the tenant's queue after a successful mutation.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	TenantID   uuid.UUID `json:"tenantId"`
	NoteID     uuid.UUID `json:"noteId"`
	NoteCount  int       `json:"noteCount"`
	Tier       Tier      `json:"tier"`
	OccurredAt time.Time `json:"occurredAt"`
}
