package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipnotify/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	notificationsTable = "notifications"
	preferencesTable   = "notification_preferences"
)

var (
	_ notification.NotificationStore = (*SupabaseStore)(nil)
	_ notification.PreferencesStore  = (*SupabaseStore)(nil)
)

// SupabaseStore implements NotificationStore and PreferencesStore using the Supabase Go SDK.
// The notifications table uses a bigint identity primary key, which gives the
// monotonically increasing IDs the sync cursor relies on.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// supabaseRow is the internal representation for Supabase PostgREST insert/update.
type supabaseRow struct {
	ID                int64                 `json:"id,omitempty"`
	UserID            string                `json:"user_id"`
	Type              string                `json:"type"`
	Priority          string                `json:"priority"`
	Status            string                `json:"status"`
	Title             string                `json:"title"`
	Message           string                `json:"message"`
	Data              map[string]any        `json:"data,omitempty"`
	Actions           []notification.Action `json:"actions,omitempty"`
	ExpiresAt         *string               `json:"expires_at,omitempty"`
	RelatedEntityID   *string               `json:"related_entity_id,omitempty"`
	RelatedEntityType *string               `json:"related_entity_type,omitempty"`
	CreatedAt         string                `json:"created_at,omitempty"`
	DeliveredAt       *string               `json:"delivered_at,omitempty"`
}

type preferencesRow struct {
	UserID            string          `json:"user_id"`
	EnablePush        bool            `json:"enable_push"`
	EnableEmail       bool            `json:"enable_email"`
	EnableSMS         bool            `json:"enable_sms"`
	Email             *string         `json:"email"`
	NotificationTypes map[string]bool `json:"notification_types"`
	QuietHoursStart   *string         `json:"quiet_hours_start"`
	QuietHoursEnd     *string         `json:"quiet_hours_end"`
}

// Create inserts a notification and reads back its assigned ID and timestamp.
func (s *SupabaseStore) Create(ctx context.Context, n *notification.Notification) error {
	row := supabaseRow{
		UserID:            n.UserID,
		Type:              string(n.Type),
		Priority:          string(n.Priority),
		Status:            string(n.Status),
		Title:             n.Title,
		Message:           n.Message,
		Data:              n.Data,
		Actions:           n.Actions,
		ExpiresAt:         formatTimePtr(n.ExpiresAt),
		RelatedEntityID:   optional(n.RelatedEntityID),
		RelatedEntityType: optional(n.RelatedEntityType),
	}

	data, _, err := s.client.From(notificationsTable).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	var results []supabaseRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("insert returned no rows")
	}

	n.ID = notification.FormatID(results[0].ID)
	n.Timestamp = parseTime(results[0].CreatedAt)
	return nil
}

// GetByID retrieves a notification by ID. Returns nil, nil if absent.
func (s *SupabaseStore) GetByID(ctx context.Context, id notification.ID) (*notification.Notification, error) {
	if !id.IsServerAssigned() {
		return nil, nil
	}

	data, _, err := s.client.From(notificationsTable).Select("*", "", false).Eq("id", string(id)).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListSince returns notifications newer than since in ascending ID order.
func (s *SupabaseStore) ListSince(ctx context.Context, userID string, since notification.ID, limit int) ([]*notification.Notification, error) {
	query := s.client.From(notificationsTable).
		Select("*", "", false).
		Eq("user_id", userID)
	if since != "" {
		query = query.Gt("id", string(since))
	}
	query = query.
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "")

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing notifications since %s: %w", since, err)
	}
	return decodeRows(data)
}

// List retrieves a user's notifications with pagination and filtering, newest first.
func (s *SupabaseStore) List(ctx context.Context, userID string, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	offset := (filter.Page - 1) * filter.Limit

	query := s.client.From(notificationsTable).
		Select("*", "exact", false).
		Eq("user_id", userID)

	if filter.Status != "" {
		query = query.Eq("status", string(filter.Status))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.In("type", types)
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		query = query.In("priority", priorities)
	}
	if filter.DateFrom != nil {
		query = query.Gte("created_at", filter.DateFrom.UTC().Format(time.RFC3339Nano))
	}
	if filter.DateTo != nil {
		query = query.Lte("created_at", filter.DateTo.UTC().Format(time.RFC3339Nano))
	}
	if filter.RelatedEntityType != "" {
		query = query.Eq("related_entity_type", filter.RelatedEntityType)
	}

	query = query.Order("id", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.Limit-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	list, err := decodeRows(data)
	if err != nil {
		return nil, 0, err
	}
	return list, int(count), nil
}

// UpdateStatus sets the status of the given notifications owned by userID.
func (s *SupabaseStore) UpdateStatus(ctx context.Context, userID string, ids []notification.ID, status notification.Status) (int, error) {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsServerAssigned() {
			values = append(values, string(id))
		}
	}
	if len(values) == 0 {
		return 0, nil
	}

	data, _, err := s.client.From(notificationsTable).
		Update(map[string]any{"status": string(status)}, "representation", "").
		Eq("user_id", userID).
		In("id", values).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("updating notification status: %w", err)
	}
	return countRows(data)
}

// MarkAllRead marks every unread notification of userID read.
func (s *SupabaseStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	data, _, err := s.client.From(notificationsTable).
		Update(map[string]any{"status": string(notification.StatusRead)}, "representation", "").
		Eq("user_id", userID).
		Eq("status", string(notification.StatusUnread)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	return countRows(data)
}

// Delete removes a notification owned by userID.
func (s *SupabaseStore) Delete(ctx context.Context, userID string, id notification.ID) (bool, error) {
	if !id.IsServerAssigned() {
		return false, nil
	}

	data, _, err := s.client.From(notificationsTable).
		Delete("representation", "").
		Eq("user_id", userID).
		Eq("id", string(id)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("deleting notification: %w", err)
	}
	n, err := countRows(data)
	return n > 0, err
}

// MarkDelivered stamps delivered_at.
func (s *SupabaseStore) MarkDelivered(ctx context.Context, id notification.ID, at time.Time) error {
	_, _, err := s.client.From(notificationsTable).
		Update(map[string]any{"delivered_at": at.UTC().Format(time.RFC3339Nano)}, "minimal", "").
		Eq("id", string(id)).
		Execute()
	if err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	return nil
}

// ListUndelivered retrieves notifications never delivered and created before olderThan.
func (s *SupabaseStore) ListUndelivered(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	data, _, err := s.client.From(notificationsTable).
		Select("*", "", false).
		Is("delivered_at", "null").
		Lt("created_at", olderThan.UTC().Format(time.RFC3339Nano)).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing undelivered notifications: %w", err)
	}
	return decodeRows(data)
}

// Stats aggregates counts over the user's non-archived notifications.
func (s *SupabaseStore) Stats(ctx context.Context, userID string) (*notification.Stats, error) {
	data, _, err := s.client.From(notificationsTable).
		Select("type,priority,status", "", false).
		Eq("user_id", userID).
		Neq("status", string(notification.StatusArchived)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching stats rows: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stats rows: %w", err)
	}

	stats := newStats()
	for _, row := range rows {
		stats.add(row.Type, row.Priority, row.Status)
	}
	return stats.Stats, nil
}

// GetPreferences returns the user's saved preferences, or nil, nil.
func (s *SupabaseStore) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	data, _, err := s.client.From(preferencesTable).Select("*", "", false).Eq("user_id", userID).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", err)
	}

	var rows []preferencesRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	prefs := &notification.Preferences{
		UserID:                   row.UserID,
		EnablePushNotifications:  row.EnablePush,
		EnableEmailNotifications: row.EnableEmail,
		EnableSMSNotifications:   row.EnableSMS,
		NotificationTypes:        make(map[notification.NotificationType]bool, len(row.NotificationTypes)),
	}
	for t, on := range row.NotificationTypes {
		prefs.NotificationTypes[notification.NotificationType(t)] = on
	}
	if row.Email != nil {
		prefs.Email = *row.Email
	}
	if row.QuietHoursStart != nil {
		prefs.QuietHoursStart = *row.QuietHoursStart
	}
	if row.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *row.QuietHoursEnd
	}
	return prefs, nil
}

// SavePreferences upserts the user's preferences.
func (s *SupabaseStore) SavePreferences(ctx context.Context, prefs *notification.Preferences) error {
	row := preferencesRow{
		UserID:            prefs.UserID,
		EnablePush:        prefs.EnablePushNotifications,
		EnableEmail:       prefs.EnableEmailNotifications,
		EnableSMS:         prefs.EnableSMSNotifications,
		Email:             optional(prefs.Email),
		NotificationTypes: make(map[string]bool, len(prefs.NotificationTypes)),
		QuietHoursStart:   optional(prefs.QuietHoursStart),
		QuietHoursEnd:     optional(prefs.QuietHoursEnd),
	}
	for t, on := range prefs.NotificationTypes {
		row.NotificationTypes[string(t)] = on
	}

	_, _, err := s.client.From(preferencesTable).Upsert(row, "user_id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

func decodeRows(data []byte) ([]*notification.Notification, error) {
	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notifications: %w", err)
	}
	list := make([]*notification.Notification, len(rows))
	for i := range rows {
		list[i] = rowToNotification(&rows[i])
	}
	return list, nil
}

func countRows(data []byte) (int, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("parsing update response: %w", err)
	}
	return len(rows), nil
}

// rowToNotification converts a supabaseRow to a Notification.
func rowToNotification(row *supabaseRow) *notification.Notification {
	n := &notification.Notification{
		ID:        notification.FormatID(row.ID),
		UserID:    row.UserID,
		Type:      notification.NotificationType(row.Type),
		Priority:  notification.Priority(row.Priority),
		Status:    notification.Status(row.Status),
		Title:     row.Title,
		Message:   row.Message,
		Data:      row.Data,
		Actions:   row.Actions,
		Timestamp: parseTime(row.CreatedAt),
	}
	if row.RelatedEntityID != nil {
		n.RelatedEntityID = *row.RelatedEntityID
	}
	if row.RelatedEntityType != nil {
		n.RelatedEntityType = *row.RelatedEntityType
	}
	if row.ExpiresAt != nil {
		t := parseTime(*row.ExpiresAt)
		n.ExpiresAt = &t
	}
	if row.DeliveredAt != nil {
		t := parseTime(*row.DeliveredAt)
		n.DeliveredAt = &t
	}
	return n
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
