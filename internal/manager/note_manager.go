package manager

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/errs"
	"multi-tenant-notes/internal/metrics"
	"multi-tenant-notes/internal/model"
	"multi-tenant-notes/internal/quota"
	"multi-tenant-notes/internal/storage"
)

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteList is a tenant's notes together with its plan status.
type NoteList struct {
	Notes        []model.Note `json:"notes"`
	Subscription model.Tier   `json:"subscription"`
	IsProPlan    bool         `json:"isProPlan"`
	NoteCount    int          `json:"noteCount"`
	LimitReached bool         `json:"limitReached"`
}

// NoteManager implements tenant-scoped note CRUD. Every operation is confined
// to the principal's tenant; creation is subject to the plan quota.
type NoteManager struct {
	notes   storage.NoteStore
	tenants storage.TenantStore
	events  emitter
	log     *zap.Logger
	now     func() time.Time
}

func NewNoteManager(notes storage.NoteStore, tenants storage.TenantStore, pub EventPublisher, log *zap.Logger) *NoteManager {
	return &NoteManager{
		notes:   notes,
		tenants: tenants,
		events:  newEmitter(pub, notes, log),
		log:     log,
		now:     time.Now,
	}
}

func (m *NoteManager) Create(ctx context.Context, p *model.Principal, req CreateNoteRequest) (*model.Note, error) {
	if err := auth.Authenticated(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, errs.Invalid("Title and content are required")
	}

	now := m.now().UTC()
	note := &model.Note{
		ID:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		TenantID:  p.TenantID,
		CreatedBy: p.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var tier model.Tier
	err := m.notes.CreateNoteWithinQuota(ctx, note, func(t model.Tier, count int) error {
		tier = t
		return quota.Check(t, count)
	})
	switch {
	case errs.Code(err) == errs.EQuotaExceeded:
		metrics.QuotaDenials.Inc()
		m.log.Info("note quota reached", zap.String("tenant_id", p.TenantID.String()))
		return nil, err
	case errors.Is(err, storage.ErrNotFound):
		return nil, errs.NotFound("Tenant not found")
	case err != nil:
		return nil, errs.Internal("manager.CreateNote", err)
	}

	metrics.NotesCreated.WithLabelValues(string(tier)).Inc()
	m.events.emit(ctx, model.EventNoteCreated, note.TenantID, note.ID, tier)
	return note, nil
}

// List returns the tenant's notes, newest first.
func (m *NoteManager) List(ctx context.Context, p *model.Principal) (*NoteList, error) {
	if err := auth.Authenticated(p); err != nil {
		return nil, err
	}

	tenant, err := m.tenants.GetTenantByID(ctx, p.TenantID)
	if err != nil {
		return nil, errs.Internal("manager.ListNotes", err)
	}
	notes, err := m.notes.ListNotesByTenant(ctx, p.TenantID)
	if err != nil {
		return nil, errs.Internal("manager.ListNotes", err)
	}

	return &NoteList{
		Notes:        notes,
		Subscription: tenant.Subscription,
		IsProPlan:    tenant.IsPro(),
		NoteCount:    len(notes),
		LimitReached: quota.LimitReached(tenant.Subscription, len(notes)),
	}, nil
}

func (m *NoteManager) Get(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Note, error) {
	return m.load(ctx, p, id, "access")
}

// Update applies a partial update. Absent or empty fields keep their value.
func (m *NoteManager) Update(ctx context.Context, p *model.Principal, id uuid.UUID, patch model.NotePatch) (*model.Note, error) {
	note, err := m.load(ctx, p, id, "update")
	if err != nil {
		return nil, err
	}

	patch.Apply(note, m.now().UTC())
	switch err := m.notes.UpdateNote(ctx, note); {
	case errors.Is(err, storage.ErrNotFound):
		return nil, errs.NotFound("Note not found")
	case err != nil:
		return nil, errs.Internal("manager.UpdateNote", err)
	}

	m.events.emit(ctx, model.EventNoteUpdated, note.TenantID, note.ID, m.tierOf(ctx, note.TenantID))
	return note, nil
}

func (m *NoteManager) Delete(ctx context.Context, p *model.Principal, id uuid.UUID) error {
	note, err := m.load(ctx, p, id, "delete")
	if err != nil {
		return err
	}

	switch err := m.notes.DeleteNote(ctx, note.ID); {
	case errors.Is(err, storage.ErrNotFound):
		return errs.NotFound("Note not found")
	case err != nil:
		return errs.Internal("manager.DeleteNote", err)
	}

	m.events.emit(ctx, model.EventNoteDeleted, note.TenantID, note.ID, m.tierOf(ctx, note.TenantID))
	return nil
}

// load fetches a note and checks that it belongs to the principal's tenant.
func (m *NoteManager) load(ctx context.Context, p *model.Principal, id uuid.UUID, verb string) (*model.Note, error) {
	if err := auth.Authenticated(p); err != nil {
		return nil, err
	}

	note, err := m.notes.GetNote(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.NotFound("Note not found")
	}
	if err != nil {
		return nil, errs.Internal("manager.GetNote", err)
	}

	if err := auth.RequireTenantMatch(p, note.TenantID); err != nil {
		m.log.Warn("cross-tenant note access refused",
			zap.String("user_id", p.UserID.String()),
			zap.String("note_id", note.ID.String()),
		)
		return nil, errs.Forbidden("Not authorized to " + verb + " this note")
	}
	return note, nil
}

func (m *NoteManager) tierOf(ctx context.Context, tenantID uuid.UUID) model.Tier {
	tenant, err := m.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return ""
	}
	return tenant.Subscription
}
