package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shipnotify/internal/domain/notification"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	_ notification.NotificationStore = (*SQLiteStore)(nil)
	_ notification.PreferencesStore  = (*SQLiteStore)(nil)
)

// SQLiteStore implements NotificationStore and PreferencesStore on a local
// SQLite database. It backs single-node deployments and the test suite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// any pending schema migrations. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// sqliteRow mirrors the notifications table. Times are unix milliseconds.
type sqliteRow struct {
	ID                int64          `db:"id"`
	UserID            string         `db:"user_id"`
	Type              string         `db:"type"`
	Priority          string         `db:"priority"`
	Status            string         `db:"status"`
	Title             string         `db:"title"`
	Message           string         `db:"message"`
	Data              sql.NullString `db:"data"`
	Actions           sql.NullString `db:"actions"`
	ExpiresAt         sql.NullInt64  `db:"expires_at"`
	RelatedEntityID   string         `db:"related_entity_id"`
	RelatedEntityType string         `db:"related_entity_type"`
	CreatedAt         int64          `db:"created_at"`
	DeliveredAt       sql.NullInt64  `db:"delivered_at"`
}

// Create inserts a notification and assigns its ID and timestamp.
func (s *SQLiteStore) Create(ctx context.Context, n *notification.Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC().Truncate(time.Millisecond)
	}

	data, err := marshalNullable(n.Data, len(n.Data) > 0)
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}
	actions, err := marshalNullable(n.Actions, len(n.Actions) > 0)
	if err != nil {
		return fmt.Errorf("marshaling actions: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			user_id, type, priority, status, title, message,
			data, actions, expires_at, related_entity_id, related_entity_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), string(n.Priority), string(n.Status), n.Title, n.Message,
		data, actions, millisPtr(n.ExpiresAt), n.RelatedEntityID, n.RelatedEntityType, n.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	n.ID = notification.FormatID(id)
	return nil
}

// GetByID retrieves a notification by ID. Returns nil, nil if absent.
func (s *SQLiteStore) GetByID(ctx context.Context, id notification.ID) (*notification.Notification, error) {
	seq, ok := id.Seq()
	if !ok {
		return nil, nil
	}

	var row sqliteRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM notifications WHERE id = ?", seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching notification %s: %w", id, err)
	}
	return row.toNotification()
}

// ListSince returns notifications newer than since in ascending ID order.
func (s *SQLiteStore) ListSince(ctx context.Context, userID string, since notification.ID, limit int) ([]*notification.Notification, error) {
	var after int64
	if since != "" {
		seq, ok := since.Seq()
		if !ok {
			return nil, fmt.Errorf("invalid cursor %q", since)
		}
		after = seq
	}

	var rows []sqliteRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM notifications WHERE user_id = ? AND id > ? ORDER BY id ASC LIMIT ?",
		userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications since %s: %w", since, err)
	}
	return toNotifications(rows)
}

// List retrieves a user's notifications with pagination and filtering, newest first.
func (s *SQLiteStore) List(ctx context.Context, userID string, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		conditions = append(conditions, "type IN (?)")
		args = append(args, types)
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		conditions = append(conditions, "priority IN (?)")
		args = append(args, priorities)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.DateFrom.UnixMilli())
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.DateTo.UnixMilli())
	}
	if filter.RelatedEntityType != "" {
		conditions = append(conditions, "related_entity_type = ?")
		args = append(args, filter.RelatedEntityType)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.In("SELECT COUNT(*) FROM notifications"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	listQuery, listArgs, err := sqlx.In(
		"SELECT * FROM notifications"+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, filter.Limit, (filter.Page-1)*filter.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}
	var rows []sqliteRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	list, err := toNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// UpdateStatus sets the status of the given notifications owned by userID.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, userID string, ids []notification.ID, status notification.Status) (int, error) {
	seqs := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seq, ok := id.Seq(); ok {
			seqs = append(seqs, seq)
		}
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE notifications SET status = ? WHERE user_id = ? AND id IN (?)",
		string(status), userID, seqs)
	if err != nil {
		return 0, fmt.Errorf("building update query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("updating notification status: %w", err)
	}
	return rowsAffected(res)
}

// MarkAllRead marks every unread notification of userID read.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET status = ? WHERE user_id = ? AND status = ?",
		string(notification.StatusRead), userID, string(notification.StatusUnread))
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	return rowsAffected(res)
}

// Delete removes a notification owned by userID.
func (s *SQLiteStore) Delete(ctx context.Context, userID string, id notification.ID) (bool, error) {
	seq, ok := id.Seq()
	if !ok {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ? AND id = ?", userID, seq)
	if err != nil {
		return false, fmt.Errorf("deleting notification: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// MarkDelivered stamps delivered_at.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, id notification.ID, at time.Time) error {
	seq, ok := id.Seq()
	if !ok {
		return fmt.Errorf("invalid notification id %q", id)
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET delivered_at = ? WHERE id = ?", at.UnixMilli(), seq); err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	return nil
}

// ListUndelivered retrieves notifications never delivered and created before olderThan.
func (s *SQLiteStore) ListUndelivered(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []sqliteRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM notifications WHERE delivered_at IS NULL AND created_at < ? ORDER BY id ASC LIMIT ?",
		olderThan.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing undelivered notifications: %w", err)
	}
	return toNotifications(rows)
}

// Stats aggregates counts over the user's non-archived notifications.
func (s *SQLiteStore) Stats(ctx context.Context, userID string) (*notification.Stats, error) {
	var rows []struct {
		Type     string `db:"type"`
		Priority string `db:"priority"`
		Status   string `db:"status"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT type, priority, status FROM notifications WHERE user_id = ? AND status != ?",
		userID, string(notification.StatusArchived))
	if err != nil {
		return nil, fmt.Errorf("fetching stats rows: %w", err)
	}

	stats := newStats()
	for _, r := range rows {
		stats.add(r.Type, r.Priority, r.Status)
	}
	return stats.Stats, nil
}

type preferencesSQLiteRow struct {
	UserID            string `db:"user_id"`
	EnablePush        bool   `db:"enable_push"`
	EnableEmail       bool   `db:"enable_email"`
	EnableSMS         bool   `db:"enable_sms"`
	Email             string `db:"email"`
	NotificationTypes string `db:"notification_types"`
	QuietHoursStart   string `db:"quiet_hours_start"`
	QuietHoursEnd     string `db:"quiet_hours_end"`
}

// GetPreferences returns the user's saved preferences, or nil, nil.
func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	var row preferencesSQLiteRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM notification_preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", err)
	}

	prefs := &notification.Preferences{
		UserID:                   row.UserID,
		EnablePushNotifications:  row.EnablePush,
		EnableEmailNotifications: row.EnableEmail,
		EnableSMSNotifications:   row.EnableSMS,
		Email:                    row.Email,
		QuietHoursStart:          row.QuietHoursStart,
		QuietHoursEnd:            row.QuietHoursEnd,
	}
	if err := json.Unmarshal([]byte(row.NotificationTypes), &prefs.NotificationTypes); err != nil {
		return nil, fmt.Errorf("parsing notification_types: %w", err)
	}
	return prefs, nil
}

// SavePreferences upserts the user's preferences.
func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs *notification.Preferences) error {
	types, err := json.Marshal(prefs.NotificationTypes)
	if err != nil {
		return fmt.Errorf("marshaling notification_types: %w", err)
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO notification_preferences (
			user_id, enable_push, enable_email, enable_sms, email,
			notification_types, quiet_hours_start, quiet_hours_end
		) VALUES (
			:user_id, :enable_push, :enable_email, :enable_sms, :email,
			:notification_types, :quiet_hours_start, :quiet_hours_end
		)
		ON CONFLICT(user_id) DO UPDATE SET
			enable_push = excluded.enable_push,
			enable_email = excluded.enable_email,
			enable_sms = excluded.enable_sms,
			email = excluded.email,
			notification_types = excluded.notification_types,
			quiet_hours_start = excluded.quiet_hours_start,
			quiet_hours_end = excluded.quiet_hours_end`,
		preferencesSQLiteRow{
			UserID:            prefs.UserID,
			EnablePush:        prefs.EnablePushNotifications,
			EnableEmail:       prefs.EnableEmailNotifications,
			EnableSMS:         prefs.EnableSMSNotifications,
			Email:             prefs.Email,
			NotificationTypes: string(types),
			QuietHoursStart:   prefs.QuietHoursStart,
			QuietHoursEnd:     prefs.QuietHoursEnd,
		})
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

func (r *sqliteRow) toNotification() (*notification.Notification, error) {
	n := &notification.Notification{
		ID:                notification.FormatID(r.ID),
		UserID:            r.UserID,
		Type:              notification.NotificationType(r.Type),
		Priority:          notification.Priority(r.Priority),
		Status:            notification.Status(r.Status),
		Title:             r.Title,
		Message:           r.Message,
		RelatedEntityID:   r.RelatedEntityID,
		RelatedEntityType: r.RelatedEntityType,
		Timestamp:         time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.Data.Valid {
		if err := json.Unmarshal([]byte(r.Data.String), &n.Data); err != nil {
			return nil, fmt.Errorf("parsing data of %d: %w", r.ID, err)
		}
	}
	if r.Actions.Valid {
		if err := json.Unmarshal([]byte(r.Actions.String), &n.Actions); err != nil {
			return nil, fmt.Errorf("parsing actions of %d: %w", r.ID, err)
		}
	}
	if r.ExpiresAt.Valid {
		t := time.UnixMilli(r.ExpiresAt.Int64).UTC()
		n.ExpiresAt = &t
	}
	if r.DeliveredAt.Valid {
		t := time.UnixMilli(r.DeliveredAt.Int64).UTC()
		n.DeliveredAt = &t
	}
	return n, nil
}

func toNotifications(rows []sqliteRow) ([]*notification.Notification, error) {
	list := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNotification()
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, nil
}

func marshalNullable(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func millisPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return int(n), nil
}
