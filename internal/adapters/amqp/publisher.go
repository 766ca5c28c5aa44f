package amqpad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"hotel_catalog/internal/domain"
)

const SyncCompletedQueue = "catalog.sync.completed"

const defaultDialTimeout = 5 * time.Second

// Publisher sends sync events to RabbitMQ. A connection is opened per
// publish; a sync run emits a single event.
type Publisher struct {
	url   string
	queue string
}

func New(url string) *Publisher {
	return &Publisher{url: url, queue: SyncCompletedQueue}
}

func (p *Publisher) PublishSyncCompleted(ctx context.Context, s domain.SyncSummary) error {
	msg, err := publishing(s)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout(ctx)),
	})
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so the event survives broker restarts
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	log.Info().Str("queue", p.queue).Str("message_id", msg.MessageId).Msg("sync summary published")
	return nil
}

// dialTimeout bounds the TCP and handshake phase by the context deadline.
func dialTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < defaultDialTimeout {
			return d
		}
	}
	return defaultDialTimeout
}

func publishing(s domain.SyncSummary) (amqp.Publishing, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         SyncCompletedQueue,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
