package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	rabbitHeartbeat = 10 * time.Second
	rabbitPrefetch  = 10
	consumerTag     = "shipnotify"
)

// RabbitMQConsumer consumes a durable queue with manual acknowledgements and
// reconnects with exponential backoff when the connection drops.
type RabbitMQConsumer struct {
	url     string
	queue   string
	handler EventHandler
	retry   *backoff.ExponentialBackOff
}

// NewRabbitMQConsumer creates a consumer for queue at url. Nothing is dialed until Run.
func NewRabbitMQConsumer(url, queue string, h EventHandler) *RabbitMQConsumer {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = time.Minute
	return &RabbitMQConsumer{url: url, queue: queue, handler: h, retry: retry}
}

// Run consumes until ctx is cancelled.
func (r *RabbitMQConsumer) Run(ctx context.Context) error {
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := r.retry.NextBackOff()
		slog.Warn("rabbitmq consumer stopped, reconnecting", "queue", r.queue, "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *RabbitMQConsumer) consume(ctx context.Context) error {
	conn, err := amqp.DialConfig(r.url, amqp.Config{Heartbeat: rabbitHeartbeat})
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(r.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", r.queue, err)
	}
	if err := ch.Qos(rabbitPrefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, r.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", r.queue, err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	slog.Info("rabbitmq consumer started", "queue", r.queue)
	r.retry.Reset()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.settle(d, handle(ctx, r.handler, "rabbitmq", d.Body))
		}
	}
}

func (r *RabbitMQConsumer) settle(d amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck, outcomeDrop:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		slog.Error("settling rabbitmq delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}

// Close is a no-op; the connection is released when Run returns.
func (r *RabbitMQConsumer) Close() error { return nil }
