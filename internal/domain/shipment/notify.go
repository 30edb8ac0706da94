package shipment

import (
	"fmt"
	"time"

	"shipnotify/internal/domain/notification"
)

// EntityType is the relatedEntityType used for shipment notifications.
const EntityType = "shipment"

// DetailsURL is the client route for a shipment's tracking page.
func DetailsURL(trackingNumber string) string {
	return "/shipments/tracking/" + trackingNumber
}

// viewAction links a notification to the shipment's tracking page.
func viewAction(trackingNumber string) notification.Action {
	return notification.Action{
		ID:      "view_shipment",
		Label:   "View Details",
		Variant: "primary",
		Action:  "navigate",
		Payload: map[string]any{"url": DetailsURL(trackingNumber)},
	}
}

// UpdateNotification synthesizes the inbox entry a client derives from a
// pushed shipment update. Its ID is local and never advances the sync cursor.
func UpdateNotification(s *Shipment, now time.Time) *notification.Notification {
	return &notification.Notification{
		ID:                notification.ID(fmt.Sprintf("shipment_%s_%d", s.TrackingNumber, now.UnixMilli())),
		Type:              notification.TypeShipmentStatus,
		Priority:          notification.PriorityMedium,
		Status:            notification.StatusUnread,
		Title:             "Shipment Status Updated",
		Message:           fmt.Sprintf("Shipment %s is now %s", s.TrackingNumber, s.Status.Label()),
		Timestamp:         now,
		RelatedEntityID:   s.TrackingNumber,
		RelatedEntityType: EntityType,
		Data:              map[string]any{"shipment": s},
		Actions:           []notification.Action{viewAction(s.TrackingNumber)},
	}
}

// PublishRequest builds the persisted notification for a broker status event.
func PublishRequest(e *StatusEvent) *notification.PublishRequest {
	req := &notification.PublishRequest{
		UserID:            e.OwnerID,
		Type:              notification.TypeShipmentStatus,
		Priority:          notification.PriorityMedium,
		Title:             "Shipment Status Updated",
		Message:           fmt.Sprintf("Shipment %s is now %s", e.TrackingNumber, e.Status.Label()),
		RelatedEntityID:   e.TrackingNumber,
		RelatedEntityType: EntityType,
		Data: map[string]any{
			"trackingNumber": e.TrackingNumber,
			"status":         string(e.Status),
		},
		Actions: []notification.Action{viewAction(e.TrackingNumber)},
	}

	switch e.Status {
	case StatusCreated:
		req.Type = notification.TypeShipmentCreated
		req.Priority = notification.PriorityLow
		req.Title = "Shipment Created"
	case StatusDelivered:
		req.Type = notification.TypeDeliveryConfirmation
		req.Title = "Shipment Delivered"
	case StatusException:
		req.Priority = notification.PriorityHigh
		req.Title = "Shipment Delayed"
	}

	if e.Location != "" {
		req.Message += " (" + e.Location + ")"
		req.Data["location"] = e.Location
	}
	return req
}
