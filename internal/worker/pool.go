package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/consumer"
	"multi-tenant-notes/internal/messaging"
	"multi-tenant-notes/internal/metrics"
	"multi-tenant-notes/internal/model"
)

// Pool runs a fixed number of event consumers per tenant. The consumers keep
// the per-tenant note gauges in step with the event stream.
type Pool struct {
	conn    *amqp.Connection
	rabbit  *messaging.RabbitClient
	workers int
	log     *zap.Logger

	mu        sync.Mutex
	consumers map[string][]*consumer.Consumer
}

func NewPool(rabbit *messaging.RabbitClient, workers int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		conn:      rabbit.GetConnection(),
		rabbit:    rabbit,
		workers:   workers,
		log:       log,
		consumers: make(map[string][]*consumer.Consumer),
	}
}

// Add declares the tenant's queues and starts its consumers. Adding a tenant
// twice is a no-op.
func (p *Pool) Add(tenantID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.consumers[tenantID]; exists {
		return nil
	}
	if err := p.rabbit.DeclareQueue(tenantID); err != nil {
		return err
	}

	handler := func(tenantID string, body []byte) error {
		return HandleEvent(tenantID, body, p.log)
	}

	started := make([]*consumer.Consumer, 0, p.workers)
	for i := 0; i < p.workers; i++ {
		tag := fmt.Sprintf("events-%s-%d", tenantID, i)
		c, err := consumer.StartConsumer(p.conn, tenantID, tag, handler, p.log)
		if err != nil {
			for _, s := range started {
				s.Stop()
			}
			return err
		}
		started = append(started, c)
	}

	p.consumers[tenantID] = started
	metrics.WorkerActive.WithLabelValues(tenantID).Set(float64(len(started)))
	p.log.Info("tenant event workers started", zap.String("tenant_id", tenantID), zap.Int("workers", len(started)))
	return nil
}

// Sync starts consumers for every tenant in ids that has none yet. A tenant
// that fails to start does not stop the others.
func (p *Pool) Sync(ids []string) error {
	var errList []error
	for _, id := range ids {
		if err := p.Add(id); err != nil {
			p.log.Warn("failed to start tenant workers", zap.String("tenant_id", id), zap.Error(err))
			errList = append(errList, fmt.Errorf("tenant %s: %w", id, err))
		}
	}
	return errors.Join(errList...)
}

// TenantLister reports the tenants that should have consumers.
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Watch re-lists tenants on every tick until ctx is cancelled, so tenants
// provisioned after startup (by another process too) get consumers. Each tick
// also refreshes the queue depth gauges.
func (p *Pool) Watch(ctx context.Context, lister TenantLister, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := lister.ListTenantIDs(ctx)
			if err != nil {
				p.log.Warn("failed to list tenants", zap.Error(err))
			} else {
				_ = p.Sync(ids)
			}
			for _, id := range p.TenantIDs() {
				p.rabbit.UpdateQueueDepth(id)
			}
		}
	}
}

// TenantIDs returns the tenants that currently have consumers.
func (p *Pool) TenantIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.consumers))
	for id := range p.consumers {
		ids = append(ids, id)
	}
	return ids
}

// StopAll stops every consumer and waits for each to finish its current event.
func (p *Pool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, cs := range p.consumers {
		for _, c := range cs {
			c.Stop()
		}
		metrics.WorkerActive.WithLabelValues(id).Set(0)
	}
	p.consumers = make(map[string][]*consumer.Consumer)
}

// HandleEvent applies one domain event to the tenant gauges. Undecodable or
// misrouted events are rejected.
func HandleEvent(tenantID string, body []byte, log *zap.Logger) error {
	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.TenantID.String() != tenantID {
		return fmt.Errorf("event for tenant %s delivered to queue of %s", ev.TenantID, tenantID)
	}

	switch ev.Type {
	case model.EventNoteCreated, model.EventNoteUpdated, model.EventNoteDeleted, model.EventTenantUpgraded:
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	metrics.TenantNotes.WithLabelValues(tenantID).Set(float64(ev.NoteCount))
	metrics.EventsProcessed.WithLabelValues(tenantID, string(ev.Type)).Inc()
	log.Debug("event processed",
		zap.String("tenant_id", tenantID),
		zap.String("type", string(ev.Type)),
		zap.Int("note_count", ev.NoteCount),
	)
	return nil
}
