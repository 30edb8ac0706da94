package notification

import "time"

// NotificationType enumerates the kinds of notifications surfaced to users.
type NotificationType string

const (
	TypeShipmentStatus       NotificationType = "shipment_status"
	TypeShipmentCreated      NotificationType = "shipment_created"
	TypeShipmentUpdated      NotificationType = "shipment_updated"
	TypeSystemAlert          NotificationType = "system_alert"
	TypeUserMessage          NotificationType = "user_message"
	TypeConflictResolution   NotificationType = "conflict_resolution"
	TypeDeliveryConfirmation NotificationType = "delivery_confirmation"
)

// validTypes is the set of all recognized notification types.
var validTypes = map[NotificationType]bool{
	TypeShipmentStatus:       true,
	TypeShipmentCreated:      true,
	TypeShipmentUpdated:      true,
	TypeSystemAlert:          true,
	TypeUserMessage:          true,
	TypeConflictResolution:   true,
	TypeDeliveryConfirmation: true,
}

// IsValidType checks whether a notification type is recognized.
func IsValidType(t NotificationType) bool {
	return validTypes[t]
}

// AllTypes returns every recognized notification type.
func AllTypes() []NotificationType {
	return []NotificationType{
		TypeShipmentStatus,
		TypeShipmentCreated,
		TypeShipmentUpdated,
		TypeSystemAlert,
		TypeUserMessage,
		TypeConflictResolution,
		TypeDeliveryConfirmation,
	}
}

// Priority ranks how urgently a notification should be surfaced.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValidPriority checks whether a priority is recognized.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the read state of a notification.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
)

// Action is a user-triggerable follow-up attached to a notification.
type Action struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Variant string         `json:"variant"` // primary, secondary, destructive
	Action  string         `json:"action"`  // navigate, api_call, dismiss, custom
	Payload map[string]any `json:"payload,omitempty"`
}

// Notification is a discrete, server-originated event record surfaced to a user.
type Notification struct {
	ID                ID               `json:"id"`
	Type              NotificationType `json:"type"`
	Priority          Priority         `json:"priority"`
	Status            Status           `json:"status"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	Timestamp         time.Time        `json:"timestamp"`
	Data              map[string]any   `json:"data,omitempty"`
	Actions           []Action         `json:"actions,omitempty"`
	ExpiresAt         *time.Time       `json:"expiresAt,omitempty"`
	UserID            string           `json:"userId,omitempty"`
	RelatedEntityID   string           `json:"relatedEntityId,omitempty"`
	RelatedEntityType string           `json:"relatedEntityType,omitempty"`

	// DeliveredAt is set once the worker has pushed the notification. Server-side only.
	DeliveredAt *time.Time `json:"-"`
}

// Expired reports whether the notification has passed its expiry at the given instant.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// PrimaryAction returns the first action with the primary variant, if any.
func (n *Notification) PrimaryAction() *Action {
	for i := range n.Actions {
		if n.Actions[i].Variant == "primary" {
			return &n.Actions[i]
		}
	}
	return nil
}

// PublishRequest is the service-to-service payload for creating a notification for a user.
type PublishRequest struct {
	UserID            string           `json:"userId" binding:"required"`
	Type              NotificationType `json:"type" binding:"required"`
	Priority          Priority         `json:"priority"`
	Title             string           `json:"title" binding:"required"`
	Message           string           `json:"message" binding:"required"`
	Data              map[string]any   `json:"data"`
	Actions           []Action         `json:"actions"`
	ExpiresAt         *time.Time       `json:"expiresAt"`
	RelatedEntityID   string           `json:"relatedEntityId"`
	RelatedEntityType string           `json:"relatedEntityType"`
}

// AlertRequest is the payload for broadcasting a system alert to every connected user.
type AlertRequest struct {
	Message   string     `json:"message" binding:"required"`
	Priority  Priority   `json:"priority"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// SystemAlert is the frame pushed on the system_alert event.
type SystemAlert struct {
	ID        ID         `json:"id"`
	Message   string     `json:"message"`
	Priority  Priority   `json:"priority"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Filters narrows a notification listing. Zero values match everything.
type Filters struct {
	Status            Status             `form:"status" json:"status,omitempty"`
	Types             []NotificationType `form:"-" json:"types,omitempty"`
	Priorities        []Priority         `form:"-" json:"priorities,omitempty"`
	DateFrom          *time.Time         `form:"-" json:"dateFrom,omitempty"`
	DateTo            *time.Time         `form:"-" json:"dateTo,omitempty"`
	RelatedEntityType string             `form:"relatedEntityType" json:"relatedEntityType,omitempty"`
}

// Match reports whether n passes every filter.
func (f Filters) Match(n *Notification) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, n.Type) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, n.Priority) {
		return false
	}
	if f.DateFrom != nil && n.Timestamp.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && n.Timestamp.After(*f.DateTo) {
		return false
	}
	if f.RelatedEntityType != "" && n.RelatedEntityType != f.RelatedEntityType {
		return false
	}
	return true
}

func containsType(list []NotificationType, t NotificationType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
