package notification

import (
	"context"
	"time"
)

// NotificationStore defines the contract for persisting notifications server-side.
// Implementations live in infra/store/ (Supabase, SQLite).
type NotificationStore interface {
	// Create inserts a notification and assigns its sequence ID and timestamp.
	Create(ctx context.Context, n *Notification) error

	// GetByID retrieves a notification by ID. Returns nil, nil if absent.
	GetByID(ctx context.Context, id ID) (*Notification, error)

	// ListSince returns up to limit notifications for userID with ID greater
	// than since, in ascending ID order. An empty since starts from the beginning.
	ListSince(ctx context.Context, userID string, since ID, limit int) ([]*Notification, error)

	// List retrieves a user's notifications, newest first, with pagination and filtering.
	List(ctx context.Context, userID string, filter ListFilter) ([]*Notification, int, error)

	// UpdateStatus sets the read state of the given notifications owned by userID
	// and returns how many rows changed.
	UpdateStatus(ctx context.Context, userID string, ids []ID, status Status) (int, error)

	// MarkAllRead marks every unread notification of userID as read.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// Delete removes a notification owned by userID. Returns false if nothing matched.
	Delete(ctx context.Context, userID string, id ID) (bool, error)

	// MarkDelivered records that the worker pushed the notification.
	MarkDelivered(ctx context.Context, id ID, at time.Time) error

	// ListUndelivered returns notifications created before olderThan that were
	// never marked delivered. Used by the reaper for reconciliation.
	ListUndelivered(ctx context.Context, olderThan time.Time, limit int) ([]*Notification, error)

	// Stats aggregates counts for a user's non-archived notifications.
	Stats(ctx context.Context, userID string) (*Stats, error)
}

// PreferencesStore persists per-user delivery preferences.
type PreferencesStore interface {
	// GetPreferences returns nil, nil when the user never saved preferences.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs *Preferences) error
}
