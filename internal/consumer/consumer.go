// internal/consumer/consumer.go
package consumer

import (
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/messaging"
)

// HandlerFunc processes one event body. A returned error dead-letters the delivery.
type HandlerFunc func(tenantID string, body []byte) error

// Consumer holds control channels and metadata for a running tenant consumer
type Consumer struct {
	TenantID    string
	QueueName   string
	Channel     *amqp.Channel
	StopChan    chan struct{}
	DoneChan    chan struct{}
	Handler     HandlerFunc
	ConsumerTag string
	log         *zap.Logger
}

// StartConsumer starts a goroutine that consumes the tenant's event queue.
// The queue must already be declared.
func StartConsumer(conn *amqp.Connection, tenantID, consumerTag string, handler HandlerFunc, log *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("tenant %s: failed to open channel: %w", tenantID, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("tenant %s: failed to set qos: %w", tenantID, err)
	}

	queueName := messaging.QueueName(tenantID)
	msgs, err := ch.Consume(
		queueName,
		consumerTag,
		false, // autoAck: false to handle manually
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("tenant %s: failed to start consuming: %w", tenantID, err)
	}

	c := &Consumer{
		TenantID:    tenantID,
		QueueName:   queueName,
		Channel:     ch,
		StopChan:    make(chan struct{}),
		DoneChan:    make(chan struct{}),
		Handler:     handler,
		ConsumerTag: consumerTag,
		log:         log.With(zap.String("tenant_id", tenantID), zap.String("consumer", consumerTag)),
	}

	go c.consumeLoop(msgs)

	c.log.Info("consumer started")
	return c, nil
}

// consumeLoop processes messages until StopChan is closed
func (c *Consumer) consumeLoop(msgs <-chan amqp.Delivery) {
	defer close(c.DoneChan)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			Dispatch(c.Handler, c.TenantID, msg, c.log)

		case <-c.StopChan:
			_ = c.Channel.Cancel(c.ConsumerTag, false)
			return
		}
	}
}

// Dispatch runs handler on one delivery, acking on success and rejecting
// without requeue (into the dead-letter queue) on failure.
func Dispatch(handler HandlerFunc, tenantID string, msg amqp.Delivery, log *zap.Logger) {
	if err := handler(tenantID, msg.Body); err != nil {
		log.Warn("event rejected", zap.Error(err))
		if err := msg.Reject(false); err != nil {
			log.Error("reject failed", zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("ack failed", zap.Error(err))
	}
}

// Stop signals the consumer to stop and waits for cleanup
func (c *Consumer) Stop() {
	close(c.StopChan)
	<-c.DoneChan
	_ = c.Channel.Close()
	c.log.Info("consumer stopped")
}
