// Package broker consumes shipment status events published by the logistics
// backend on RabbitMQ or Kafka and hands them to the shipment processor.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"shipnotify/internal/common"
	"shipnotify/internal/config"
	"shipnotify/internal/domain/shipment"
)

// EventHandler processes one decoded status event. shipment.Processor satisfies it.
type EventHandler interface {
	Process(ctx context.Context, source string, e *shipment.StatusEvent) error
}

// Consumer reads events until ctx is cancelled.
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

// New builds the consumer selected by cfg.Driver. It returns nil, nil when
// the driver is "none" or empty.
func New(cfg config.BrokerConfig, h EventHandler) (Consumer, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQConsumer(cfg.URL, cfg.Queue, h), nil
	case "kafka":
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafka broker list is empty")
		}
		return NewKafkaConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID, h), nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// outcome says what to do with a message after handling it.
type outcome int

const (
	outcomeAck     outcome = iota // processed
	outcomeDrop                   // malformed or invalid, never redeliver
	outcomeRequeue                // transient failure, redeliver
)

func handle(ctx context.Context, h EventHandler, source string, body []byte) outcome {
	var e shipment.StatusEvent
	if err := json.Unmarshal(body, &e); err != nil {
		slog.Warn("dropping malformed shipment event", "source", source, "error", err)
		return outcomeDrop
	}

	err := h.Process(ctx, source, &e)
	if err == nil {
		return outcomeAck
	}

	var invalid *common.ValidationError
	if errors.As(err, &invalid) {
		slog.Warn("dropping invalid shipment event",
			"source", source,
			"tracking_number", e.TrackingNumber,
			"error", err,
		)
		return outcomeDrop
	}

	slog.Error("shipment event failed", "source", source, "tracking_number", e.TrackingNumber, "error", err)
	return outcomeRequeue
}
