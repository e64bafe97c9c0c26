package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// retryCountHeader tracks how many times a delivery has been republished.
const retryCountHeader = "x-retry-count"

// AMQPQueue publishes send jobs to a durable RabbitMQ queue. A separate
// worker binary consumes them.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string, topics ...string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, topic := range topics {
		if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", topic, err)
		}
	}

	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, job SendEmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// Consume processes deliveries from the topic until the channel closes.
// Failed jobs are republished with an incremented retry header; once
// attempts run out, exhausted is invoked and the delivery acked so the row
// cannot stay pending forever.
func (q *AMQPQueue) Consume(ctx context.Context, topic string, maxAttempts int, handler Handler, exhausted ExhaustedFunc, log *zap.Logger) error {
	msgs, err := q.ch.Consume(topic, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for d := range msgs {
		var job SendEmailJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			log.Warn("dropping malformed job", zap.Error(err))
			d.Ack(false)
			continue
		}

		if err := handler(ctx, job); err != nil {
			attempt := deliveryAttempt(d)
			log.Warn("send job attempt failed",
				zap.Int64("email_status_id", job.EmailStatusID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err),
			)

			if attempt < maxAttempts {
				if pubErr := q.republish(topic, d.Body, attempt+1); pubErr != nil {
					log.Error("failed to requeue job", zap.Error(pubErr))
					d.Nack(false, true)
					continue
				}
			} else {
				log.Error("send job permanently failed",
					zap.Int64("email_status_id", job.EmailStatusID),
					zap.Error(err),
				)
				if exhausted != nil {
					exhausted(ctx, job, err)
				}
			}
		}

		d.Ack(false)
	}
	return nil
}

func (q *AMQPQueue) republish(topic string, body []byte, attempt int) error {
	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryCountHeader: int32(attempt)},
		Body:         body,
	})
}

// deliveryAttempt reads the retry header; a first delivery counts as
// attempt 1. Header integer width depends on the publisher.
func deliveryAttempt(d amqp.Delivery) int {
	v, ok := d.Headers[retryCountHeader]
	if !ok {
		return 1
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 1
	}
}

var _ Queue = (*AMQPQueue)(nil)
