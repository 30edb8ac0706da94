package realtime

import (
	"log/slog"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/protocol"
)

// Query keys invalidated when a shipment changes.
const (
	KeyShipments      = "shipments"
	KeyDashboardStats = "dashboardStats"
)

// Inbox is the client-side notification store.
type Inbox interface {
	AddNotification(n *notification.Notification) bool
	AddNotifications(ns []*notification.Notification) int
	// SetLastSyncID advances the cursor. Older IDs are ignored.
	SetLastSyncID(id notification.ID) bool
	LastSyncID() notification.ID
}

// Cache holds server data the UI renders from.
type Cache interface {
	SetShipment(s *shipment.Shipment)
	SetTrackingHistory(u *shipment.TrackingUpdate)
	Invalidate(keys ...string)
}

// Presenter shows a banner for a notification when the user allows it.
type Presenter interface {
	Show(n *notification.Notification)
}

// EventRouter applies inbound frames to the inbox and cache.
type EventRouter struct {
	inbox     Inbox
	cache     Cache
	presenter Presenter
	now       func() time.Time
}

// NewEventRouter creates a router. cache and presenter may be nil.
func NewEventRouter(inbox Inbox, cache Cache, presenter Presenter) *EventRouter {
	return &EventRouter{inbox: inbox, cache: cache, presenter: presenter, now: time.Now}
}

// Route handles one frame. Malformed frames are logged and dropped.
func (r *EventRouter) Route(env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventNotification:
		var n notification.Notification
		if !decode(env, &n) {
			return
		}
		r.inbox.AddNotification(&n)
		r.inbox.SetLastSyncID(n.ID)
		r.show(&n)

	case protocol.EventShipmentUpdate:
		var s shipment.Shipment
		if !decode(env, &s) {
			return
		}
		if r.cache != nil {
			r.cache.SetShipment(&s)
			r.cache.Invalidate(KeyShipments, KeyDashboardStats)
		}
		r.inbox.AddNotification(shipment.UpdateNotification(&s, r.now()))

	case protocol.EventTrackingUpdate:
		var u shipment.TrackingUpdate
		if !decode(env, &u) {
			return
		}
		if r.cache != nil {
			r.cache.SetTrackingHistory(&u)
		}

	case protocol.EventSystemAlert:
		var a notification.SystemAlert
		if !decode(env, &a) {
			return
		}
		n := &notification.Notification{
			ID:        a.ID,
			Type:      notification.TypeSystemAlert,
			Priority:  a.Priority,
			Status:    notification.StatusUnread,
			Title:     "System Alert",
			Message:   a.Message,
			Timestamp: r.now(),
			ExpiresAt: a.ExpiresAt,
		}
		r.inbox.AddNotification(n)
		r.show(n)

	case protocol.EventPong:
		slog.Debug("received pong from gateway")

	default:
		slog.Debug("ignoring unknown event", "event", env.Event)
	}
}

func (r *EventRouter) show(n *notification.Notification) {
	if r.presenter != nil {
		r.presenter.Show(n)
	}
}

func decode(env *protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		slog.Warn("dropping malformed frame", "event", env.Event, "error", err)
		return false
	}
	return true
}
