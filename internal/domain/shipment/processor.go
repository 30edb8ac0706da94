package shipment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shipnotify/internal/common"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"
)

// Publisher persists and enqueues a notification for a user.
// notification.Service satisfies it.
type Publisher interface {
	Publish(ctx context.Context, req *notification.PublishRequest) (*notification.Notification, error)
}

// HistoryStore keeps the tracking history of each shipment.
type HistoryStore interface {
	// Append records an event and returns the full history, oldest first.
	Append(ctx context.Context, trackingNumber string, e TrackingEvent) ([]TrackingEvent, error)
	History(ctx context.Context, trackingNumber string) ([]TrackingEvent, error)
}

// Observer receives processing outcomes. It may be nil.
type Observer interface {
	ShipmentEvent(source, result string)
}

// Processor turns shipment status events into real-time frames for the
// shipment's room and a persisted notification for its owner.
type Processor struct {
	publisher Publisher
	history   HistoryStore
	pusher    notification.Pusher
	observer  Observer
	now       func() time.Time
}

// NewProcessor creates a new shipment event processor.
func NewProcessor(publisher Publisher, history HistoryStore, pusher notification.Pusher, observer Observer) *Processor {
	return &Processor{
		publisher: publisher,
		history:   history,
		pusher:    pusher,
		observer:  observer,
		now:       time.Now,
	}
}

// Process handles one status event. source names where it came from
// (http, rabbitmq, kafka) for logs and metrics.
func (p *Processor) Process(ctx context.Context, source string, e *StatusEvent) error {
	if err := validate(e); err != nil {
		p.observe(source, "invalid")
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = p.now().UTC()
	}

	history, err := p.history.Append(ctx, e.TrackingNumber, TrackingEvent{
		Status:    e.Status,
		Location:  e.Location,
		Comment:   e.Comment,
		Timestamp: e.OccurredAt,
	})
	if err != nil {
		p.observe(source, "error")
		return fmt.Errorf("appending tracking history for %s: %w", e.TrackingNumber, err)
	}

	room := notification.Target{Room: protocol.ShipmentRoom(e.TrackingNumber)}
	if err := p.pusher.Push(ctx, room, protocol.EventShipmentUpdate, e.Shipment()); err != nil {
		slog.Error("shipment update push failed", "tracking_number", e.TrackingNumber, "error", err)
	}
	update := TrackingUpdate{TrackingNumber: e.TrackingNumber, History: history}
	if err := p.pusher.Push(ctx, room, protocol.EventTrackingUpdate, update); err != nil {
		slog.Error("tracking update push failed", "tracking_number", e.TrackingNumber, "error", err)
	}

	n, err := p.publisher.Publish(ctx, PublishRequest(e))
	var limited *common.RateLimitError
	switch {
	case errors.As(err, &limited):
		slog.Warn("shipment notification rate limited", "tracking_number", e.TrackingNumber, "owner_id", e.OwnerID)
	case err != nil:
		p.observe(source, "error")
		return fmt.Errorf("publishing shipment notification: %w", err)
	default:
		slog.Info("shipment event processed",
			"source", source,
			"tracking_number", e.TrackingNumber,
			"status", e.Status,
			"notification_id", n.ID,
		)
	}

	p.observe(source, "ok")
	return nil
}

// History returns the stored tracking history of a shipment.
func (p *Processor) History(ctx context.Context, trackingNumber string) (*TrackingUpdate, error) {
	history, err := p.history.History(ctx, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("reading tracking history for %s: %w", trackingNumber, err)
	}
	if len(history) == 0 {
		return nil, common.NewNotFoundError("shipment", trackingNumber)
	}
	return &TrackingUpdate{TrackingNumber: trackingNumber, History: history}, nil
}

func (p *Processor) observe(source, result string) {
	if p.observer != nil {
		p.observer.ShipmentEvent(source, result)
	}
}

func validate(e *StatusEvent) error {
	switch {
	case e.TrackingNumber == "":
		return common.NewValidationError("tracking_number is required")
	case e.OwnerID == "":
		return common.NewValidationError("owner_id is required")
	case !e.Status.IsValid():
		return common.NewValidationError(fmt.Sprintf("unsupported shipment status: %s", e.Status))
	}
	return nil
}
