// internal/messaging/rabbit.go
package messaging

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/metrics"
)

// QueueName is the durable per-tenant queue that receives domain events.
func QueueName(tenantID string) string {
	return fmt.Sprintf("tenant_%s_events", tenantID)
}

func dlqName(tenantID string) string {
	return fmt.Sprintf("tenant_%s_events_dlq", tenantID)
}

type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	URL     string
	log     *zap.Logger

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitClient(url string, log *zap.Logger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		conn:     conn,
		channel:  ch,
		URL:      url,
		log:      log,
		declared: make(map[string]bool),
	}, nil
}

func (r *RabbitClient) GetConnection() *amqp.Connection {
	return r.conn
}

// DeclareQueue creates the tenant's durable event queue and its dead-letter queue.
func (r *RabbitClient) DeclareQueue(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.declareLocked(tenantID)
}

func (r *RabbitClient) declareLocked(tenantID string) error {
	if r.declared[tenantID] {
		return nil
	}

	// 1. DLQ
	_, err := r.channel.QueueDeclare(
		dlqName(tenantID),
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}

	// 2. Main Queue with DLQ binding
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqName(tenantID),
	}
	_, err = r.channel.QueueDeclare(
		QueueName(tenantID),
		true, false, false, false,
		args,
	)
	if err != nil {
		return fmt.Errorf("declare main queue: %w", err)
	}

	r.declared[tenantID] = true
	r.log.Debug("queues declared", zap.String("tenant_id", tenantID))
	return nil
}

// Publish sends an event body to the tenant's queue, declaring it on first use.
func (r *RabbitClient) Publish(tenantID string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declareLocked(tenantID); err != nil {
		return err
	}

	queueName := QueueName(tenantID)
	err := r.channel.Publish(
		"",        // default exchange
		queueName, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if err := r.conn.Close(); err != nil {
		return err
	}
	return nil
}

// UpdateQueueDepth refreshes the queue depth gauge for a tenant.
func (r *RabbitClient) UpdateQueueDepth(tenantID string) {
	r.mu.Lock()
	q, err := r.channel.QueueInspect(QueueName(tenantID))
	r.mu.Unlock()
	if err != nil {
		r.log.Warn("failed to inspect queue", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}

	metrics.QueueDepth.WithLabelValues(tenantID).Set(float64(q.Messages))
}
