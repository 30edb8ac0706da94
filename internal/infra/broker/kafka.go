package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

const kafkaHandleTries = 3

var errTransient = errors.New("transient shipment event failure")

// KafkaConsumer reads a topic as part of a consumer group. Offsets are
// committed only after a message has been handled or given up on.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler EventHandler
	topic   string
}

// NewKafkaConsumer creates a group consumer for topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, h EventHandler) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		handler: h,
		topic:   topic,
	}
}

// Run consumes until ctx is cancelled.
func (k *KafkaConsumer) Run(ctx context.Context) error {
	slog.Info("kafka consumer started", "topic", k.topic)
	for {
		m, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("reading kafka message", "topic", k.topic, "error", err)
			continue
		}

		if err := k.process(ctx, m); err != nil {
			slog.Error("giving up on kafka message",
				"topic", k.topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}

		if err := k.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("committing kafka offset", "topic", k.topic, "offset", m.Offset, "error", err)
		}
	}
}

// process retries transient failures a few times, since a partition cannot
// skip ahead and come back to a message later.
func (k *KafkaConsumer) process(ctx context.Context, m kafka.Message) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (outcome, error) {
		o := handle(ctx, k.handler, "kafka", m.Value)
		if o == outcomeRequeue {
			return o, errTransient
		}
		return o, nil
	}, backoff.WithBackOff(retry), backoff.WithMaxTries(kafkaHandleTries))
	if err != nil {
		return fmt.Errorf("offset %d: %w", m.Offset, err)
	}
	return nil
}

// Close closes the underlying reader.
func (k *KafkaConsumer) Close() error {
	return k.reader.Close()
}
