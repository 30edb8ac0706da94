package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shipnotify/internal/common"
	"shipnotify/internal/protocol"

	"github.com/google/uuid"
)

// Enqueuer defines the contract for enqueuing delivery tasks.
// This allows the service to be decoupled from the specific queue implementation.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, id ID) error
}

// Service orchestrates notification business logic for the gateway.
// Publish flow: validate → check rate limit → persist → enqueue delivery.
type Service struct {
	store       NotificationStore
	prefs       PreferencesStore
	enqueuer    Enqueuer
	rateLimiter RecipientRateLimiter
	pusher      Pusher
	now         func() time.Time
}

// NewService creates a new notification service. rateLimiter may be nil.
func NewService(store NotificationStore, prefs PreferencesStore, enqueuer Enqueuer, rateLimiter RecipientRateLimiter, pusher Pusher) *Service {
	return &Service{
		store:       store,
		prefs:       prefs,
		enqueuer:    enqueuer,
		rateLimiter: rateLimiter,
		pusher:      pusher,
		now:         time.Now,
	}
}

// Publish validates a notification request, checks the per-user rate limit,
// persists the notification and enqueues it for real-time delivery.
func (s *Service) Publish(ctx context.Context, req *PublishRequest) (*Notification, error) {
	if !IsValidType(req.Type) {
		return nil, common.NewValidationError(fmt.Sprintf("unsupported notification type: %s", req.Type))
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !IsValidPriority(req.Priority) {
		return nil, common.NewValidationError(fmt.Sprintf("unsupported priority: %s", req.Priority))
	}

	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, req.UserID)
		if err != nil {
			slog.Error("rate limit check failed, proceeding without limit", "user_id", req.UserID, "error", err)
			// Fail open when Redis is down
		} else if !allowed {
			return nil, common.NewRateLimitError("user " + req.UserID)
		}
	}

	n := &Notification{
		Type:              req.Type,
		Priority:          req.Priority,
		Status:            StatusUnread,
		Title:             req.Title,
		Message:           req.Message,
		Data:              req.Data,
		Actions:           req.Actions,
		ExpiresAt:         req.ExpiresAt,
		UserID:            req.UserID,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	// The reaper re-enqueues anything left undelivered, so a queue failure is not fatal here.
	if err := s.enqueuer.EnqueueDelivery(ctx, n.ID); err != nil {
		slog.Error("enqueue delivery failed, leaving for reaper", "id", n.ID, "user_id", n.UserID, "error", err)
	}

	slog.Info("notification published",
		"id", n.ID,
		"type", n.Type,
		"priority", n.Priority,
		"user_id", n.UserID,
	)

	return n, nil
}

// Sync returns the user's notifications newer than since, oldest first.
func (s *Service) Sync(ctx context.Context, userID string, since ID, limit int) (*SyncResponse, error) {
	if since != "" && !since.IsServerAssigned() {
		return nil, common.NewValidationError(fmt.Sprintf("invalid sync cursor: %s", since))
	}
	if limit < 1 || limit > DefaultSyncLimit {
		limit = DefaultSyncLimit
	}

	// Fetch one extra row to learn whether another page exists.
	list, err := s.store.ListSince(ctx, userID, since, limit+1)
	if err != nil {
		return nil, fmt.Errorf("listing notifications since %q: %w", since, err)
	}

	resp := &SyncResponse{Notifications: list, LastID: since}
	if len(list) > limit {
		resp.Notifications = list[:limit]
		resp.HasMore = true
	}
	if n := len(resp.Notifications); n > 0 {
		resp.LastID = resp.Notifications[n-1].ID
	}
	if resp.Notifications == nil {
		resp.Notifications = []*Notification{}
	}
	return resp, nil
}

// List retrieves a user's notifications with pagination and filtering.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) (*ListResponse, error) {
	filter.normalize()

	list, total, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if list == nil {
		list = []*Notification{}
	}

	return &ListResponse{
		Notifications: list,
		Total:         total,
		Page:          filter.Page,
		Limit:         filter.Limit,
		HasMore:       filter.Page*filter.Limit < total,
	}, nil
}

// MarkRead marks a single notification read.
func (s *Service) MarkRead(ctx context.Context, userID string, id ID) error {
	return s.setStatus(ctx, userID, id, StatusRead)
}

// Archive archives a single notification.
func (s *Service) Archive(ctx context.Context, userID string, id ID) error {
	return s.setStatus(ctx, userID, id, StatusArchived)
}

func (s *Service) setStatus(ctx context.Context, userID string, id ID, status Status) error {
	n, err := s.store.UpdateStatus(ctx, userID, []ID{id}, status)
	if err != nil {
		return fmt.Errorf("updating notification %s to %s: %w", id, status, err)
	}
	if n == 0 {
		return common.NewNotFoundError("notification", string(id))
	}
	return nil
}

// MarkManyRead marks the given notifications read and returns how many changed.
func (s *Service) MarkManyRead(ctx context.Context, userID string, ids []ID) (int, error) {
	if len(ids) == 0 {
		return 0, common.NewValidationError("notificationIds must not be empty")
	}
	n, err := s.store.UpdateStatus(ctx, userID, ids, StatusRead)
	if err != nil {
		return 0, fmt.Errorf("bulk marking read: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	return n, nil
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, userID string, id ID) error {
	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	if !ok {
		return common.NewNotFoundError("notification", string(id))
	}
	return nil
}

// Stats returns the user's notification counters.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return stats, nil
}

// Preferences returns the user's delivery preferences, or the defaults.
func (s *Service) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", err)
	}
	if prefs == nil {
		return DefaultPreferences(userID), nil
	}
	return prefs, nil
}

// UpdatePreferences validates and saves the user's preferences.
func (s *Service) UpdatePreferences(ctx context.Context, prefs *Preferences) (*Preferences, error) {
	if err := prefs.Validate(); err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if prefs.NotificationTypes == nil {
		prefs.NotificationTypes = DefaultPreferences(prefs.UserID).NotificationTypes
	}
	if err := s.prefs.SavePreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("saving preferences: %w", err)
	}
	return prefs, nil
}

// SendTest publishes a low-priority test notification to the user.
func (s *Service) SendTest(ctx context.Context, userID string) (*Notification, error) {
	return s.Publish(ctx, &PublishRequest{
		UserID:   userID,
		Type:     TypeUserMessage,
		Priority: PriorityLow,
		Title:    "Test Notification",
		Message:  "Real-time notifications are working.",
		Data:     map[string]any{"test": true},
	})
}

// BroadcastAlert pushes a system alert to every connected client.
// Alerts are transient and are not persisted per user.
func (s *Service) BroadcastAlert(ctx context.Context, req *AlertRequest) (*SystemAlert, error) {
	if req.Priority == "" {
		req.Priority = PriorityHigh
	}
	if !IsValidPriority(req.Priority) {
		return nil, common.NewValidationError(fmt.Sprintf("unsupported priority: %s", req.Priority))
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, common.NewValidationError("expiresAt must be in the future")
	}

	alert := &SystemAlert{
		ID:        ID("alert_" + uuid.New().String()),
		Message:   req.Message,
		Priority:  req.Priority,
		ExpiresAt: req.ExpiresAt,
	}

	if err := s.pusher.Push(ctx, Target{Broadcast: true}, protocol.EventSystemAlert, alert); err != nil {
		return nil, common.NewProviderError("push", err.Error())
	}

	slog.Info("system alert broadcast", "id", alert.ID, "priority", alert.Priority)
	return alert, nil
}
