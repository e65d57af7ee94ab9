package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"
)

// ErrRejected marks a handler failure that retrying cannot fix; the message
// is dropped instead of requeued
var ErrRejected = errors.New("trigger rejected")

// Handler processes one decoded trigger
type Handler func(ctx context.Context, msg *TriggerMessage) error

// RabbitMQ publishes and consumes trigger messages on one durable queue
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQ connects and declares the queue
func NewRabbitMQ(url, queue string) (*RabbitMQ, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	log.Info().Str("queue", queue).Msg("🐇 RabbitMQ connected")
	return &RabbitMQ{conn: conn, channel: channel, queue: queue}, nil
}

// Publish enqueues a trigger as a persistent JSON message
func (r *RabbitMQ) Publish(ctx context.Context, msg *TriggerMessage) error {
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(ctx,
		"",      // exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Body:         body,
			Timestamp:    msg.RequestedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Debug().Str("queue", r.queue).Str("event", string(msg.Event)).Msg("📨 Trigger published")
	return nil
}

// Consume handles deliveries until ctx is done or the channel closes
func (r *RabbitMQ) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if prefetch > 0 {
		if err := r.channel.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set qos: %w", err)
		}
	}

	msgs, err := r.channel.Consume(
		r.queue,
		"marketing-worker", // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Info().Str("queue", r.queue).Msg("👂 Consuming trigger queue")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery acks on success. Malformed and rejected messages are
// dropped; other failures are requeued once.
func handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	fields := deliveryFields(d)

	msg, err := Decode(d.Body)
	if err != nil {
		fields["error"] = err.Error()
		utils.LogWarn("⚠️ Dropping malformed trigger message", fields)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !errors.Is(err, ErrRejected) && !d.Redelivered
		fields["event"] = string(msg.Event)
		fields["requeue"] = requeue
		utils.LogError("❌ Trigger handling failed", err, fields)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}

func deliveryFields(d amqp.Delivery) map[string]interface{} {
	fields := map[string]interface{}{
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
	}
	if d.MessageId != "" {
		fields["message_id"] = d.MessageId
	}
	if d.RoutingKey != "" {
		fields["routing_key"] = d.RoutingKey
	}
	return fields
}

// Close closes the channel and the connection
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Error closing channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Error closing connection")
		}
	}
	return nil
}
