package manager

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/storage"
)

// EventPublisher delivers a serialized event to a tenant's queue.
// messaging.RabbitClient satisfies it.
type EventPublisher interface {
	Publish(tenantID string, body []byte) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte) error { return nil }

// emitter publishes domain events on a best-effort basis. A failed publish is
// logged and never surfaces to the caller.
type emitter struct {
	pub   EventPublisher
	notes storage.NoteStore
	log   *zap.Logger
	now   func() time.Time
}

func newEmitter(pub EventPublisher, notes storage.NoteStore, log *zap.Logger) emitter {
	if pub == nil {
		pub = nopPublisher{}
	}
	return emitter{pub: pub, notes: notes, log: log, now: time.Now}
}

func (e emitter) emit(ctx context.Context, typ model.EventType, tenantID, noteID uuid.UUID, tier model.Tier) {
	count, err := e.notes.CountNotesByTenant(ctx, tenantID)
	if err != nil {
		e.log.Warn("event skipped: count failed",
			zap.String("type", string(typ)),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return
	}

	ev := model.Event{
		ID:         uuid.New(),
		Type:       typ,
		TenantID:   tenantID,
		NoteID:     noteID,
		NoteCount:  count,
		Tier:       tier,
		OccurredAt: e.now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("failed to encode event", zap.Error(err))
		return
	}
	if err := e.pub.Publish(tenantID.String(), body); err != nil {
		e.log.Warn("failed to publish event",
			zap.String("type", string(typ)),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
}
