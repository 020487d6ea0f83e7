package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one delivery body.
type HandlerFunc func(ctx context.Context, body []byte) error

// ConsumeWithRetry drains queueName until the channel closes. A failed
// delivery goes back to the tail of the queue with a bumped x-retry-count
// header; once the budget is spent it is nacked without requeue and the
// dead-letter binding keeps it for inspection.
func (c *Client) ConsumeWithRetry(queueName string, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	deliveries, err := c.ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		ctx := context.Background()
		if err := handler(ctx, delivery.Body); err == nil {
			_ = delivery.Ack(false)
			continue
		}

		attempts := getRetryCount(delivery.Headers)
		if attempts >= maxRetries {
			_ = delivery.Nack(false, false)
			continue
		}

		time.Sleep(retryDelay)
		c.requeue(ctx, queueName, delivery, attempts+1)
	}

	return errors.New("consumer channel closed")
}

// requeue republishes the delivery at the tail with the attempt recorded in
// its headers. If the republish itself fails the original is nacked back
// into the queue so the message is not lost.
func (c *Client) requeue(ctx context.Context, queueName string, delivery amqp.Delivery, attempt int) {
	headers := delivery.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retry-count"] = attempt

	err := c.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         delivery.Body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
