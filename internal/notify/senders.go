package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSender writes notifications to the structured log. Used when no broker is
// configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "email notification",
		"notification_id", n.ID,
		"kind", n.Kind,
		"to", n.To,
		"subject", n.Subject,
	)
	return nil
}

// AMQPSender publishes notifications to a durable RabbitMQ queue consumed by
// the mailer.
type AMQPSender struct {
	ch    *amqp.Channel
	queue string
}

func NewAMQPSender(conn *amqp.Connection, queue string) (*AMQPSender, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("notify: declare queue %s: %w", queue, err)
	}
	return &AMQPSender{ch: ch, queue: queue}, nil
}

func (s *AMQPSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", n.ID, err)
	}
	err = s.ch.PublishWithContext(ctx,
		"",
		s.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Type:         n.Kind,
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", n.ID, err)
	}
	return nil
}

func (s *AMQPSender) Close() error {
	return s.ch.Close()
}
