// Package protocol defines the frames exchanged over the real-time channel
// between the gateway and its clients.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Server -> client events.
const (
	EventNotification   = "notification"
	EventShipmentUpdate = "shipment_update"
	EventTrackingUpdate = "tracking_update"
	EventSystemAlert    = "system_alert"
	EventPong           = "pong"
)

// EventSessionEnded is a gateway control event: the hub closes the target
// user's connections with CloseSessionEnded instead of forwarding a frame.
const EventSessionEnded = "session_ended"

// Client -> server events.
const (
	EventPing                = "ping"
	EventSubscribeShipment   = "subscribe_shipment"
	EventUnsubscribeShipment = "unsubscribe_shipment"
)

// Close codes. A server-initiated close with CloseNormal or CloseSessionEnded
// ends the session; clients must not reconnect automatically.
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	CloseSessionEnded = 4000
)

// Envelope is a single frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload as the frame data. A nil payload yields no data.
func NewEnvelope(event string, payload any) (*Envelope, error) {
	env := &Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	env.Data = data
	return env, nil
}

// Decode unmarshals the frame data into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Event, err)
	}
	return nil
}

// ShipmentSubscription is the payload of subscribe/unsubscribe frames.
type ShipmentSubscription struct {
	TrackingNumber string `json:"trackingNumber"`
}

// ShipmentRoom names the room that receives updates for one shipment.
func ShipmentRoom(trackingNumber string) string {
	return "shipment:" + trackingNumber
}
