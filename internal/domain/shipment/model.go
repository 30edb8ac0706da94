package shipment

import "time"

// Status is a shipment lifecycle state as reported by the logistics backend.
type Status string

const (
	StatusCreated        Status = "created"
	StatusTruckEnRoute   Status = "truck_en_route"
	StatusPickedUp       Status = "picked_up"
	StatusInTransit      Status = "in_transit"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusException      Status = "exception"
)

// Shipment is the client-visible shipment representation pushed on shipment_update.
type Shipment struct {
	TrackingNumber     string     `json:"tracking_number"`
	Status             Status     `json:"status"`
	OwnerID            string     `json:"owner_id,omitempty"`
	OriginAddress      string     `json:"origin_address,omitempty"`
	DestinationAddress string     `json:"destination_address,omitempty"`
	CurrentLocation    string     `json:"current_location,omitempty"`
	EstimatedDelivery  *time.Time `json:"estimated_delivery,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TrackingEvent is one entry of a shipment's tracking history.
type TrackingEvent struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingUpdate is the payload pushed on tracking_update.
type TrackingUpdate struct {
	TrackingNumber string          `json:"trackingNumber"`
	History        []TrackingEvent `json:"history"`
}

// StatusEvent is a shipment status change emitted by the logistics backend
// onto the message broker.
type StatusEvent struct {
	TrackingNumber string    `json:"tracking_number" binding:"required"`
	OwnerID        string    `json:"owner_id" binding:"required"`
	Status         Status    `json:"status" binding:"required"`
	Location       string    `json:"location"`
	Comment        string    `json:"comment"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Shipment projects the event onto the shipment representation.
func (e *StatusEvent) Shipment() *Shipment {
	return &Shipment{
		TrackingNumber:  e.TrackingNumber,
		Status:          e.Status,
		OwnerID:         e.OwnerID,
		CurrentLocation: e.Location,
		UpdatedAt:       e.OccurredAt,
	}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusTruckEnRoute, StatusPickedUp, StatusInTransit,
		StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusException:
		return true
	}
	return false
}

// IsTerminal reports whether no further status changes are expected.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Label renders a status for humans.
func (s Status) Label() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusTruckEnRoute:
		return "awaiting pickup"
	case StatusPickedUp:
		return "picked up"
	case StatusInTransit:
		return "in transit"
	case StatusOutForDelivery:
		return "out for delivery"
	case StatusDelivered:
		return "delivered"
	case StatusCancelled:
		return "cancelled"
	case StatusException:
		return "delayed"
	}
	return string(s)
}
