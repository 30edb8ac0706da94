package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shipnotify/internal/common"
	"shipnotify/internal/protocol"

	"github.com/hibiken/asynq"
)

// Worker processes delivery tasks from the queue.
// It loads the stored notification, applies the owner's preferences,
// pushes it to the user's live sessions, optionally emails it, and
// records the delivery.
type Worker struct {
	store     NotificationStore
	prefs     PreferencesStore
	pusher    Pusher
	renderer  TemplateRenderer
	providers map[Channel]Provider
	now       func() time.Time
}

// NewWorker creates a new delivery worker. renderer may be nil when no
// out-of-band provider is configured.
func NewWorker(store NotificationStore, prefs PreferencesStore, pusher Pusher, renderer TemplateRenderer, providers ...Provider) *Worker {
	pm := make(map[Channel]Provider, len(providers))
	for _, p := range providers {
		pm[p.Channel()] = p
	}
	return &Worker{
		store:     store,
		prefs:     prefs,
		pusher:    pusher,
		renderer:  renderer,
		providers: pm,
		now:       time.Now,
	}
}

// ProcessTask handles a deliver task from the queue.
func (w *Worker) ProcessTask(ctx context.Context, id ID) error {
	start := time.Now()

	n, err := w.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", id, err)
	}
	if n == nil {
		slog.Error("notification not found", "id", id)
		return fmt.Errorf("notification not found: %s: %w", id, asynq.SkipRetry)
	}
	if n.DeliveredAt != nil {
		slog.Debug("notification already delivered", "id", id)
		return nil
	}

	now := w.now()
	if n.Expired(now) {
		slog.Info("notification expired before delivery", "id", id, "user_id", n.UserID)
		return w.markDelivered(ctx, n, now)
	}

	prefs, err := w.prefs.GetPreferences(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("fetching preferences for %s: %w", n.UserID, err)
	}
	if prefs == nil {
		prefs = DefaultPreferences(n.UserID)
	}

	if !prefs.Wants(n.Type) {
		slog.Info("notification type muted by user", "id", id, "type", n.Type, "user_id", n.UserID)
		return w.markDelivered(ctx, n, now)
	}

	if prefs.EnablePushNotifications {
		if err := w.pusher.Push(ctx, Target{UserID: n.UserID}, protocol.EventNotification, n); err != nil {
			slog.Error("notification push failed",
				"id", id,
				"user_id", n.UserID,
				"error", err,
				"duration", time.Since(start),
			)
			return common.NewProviderError(string(ChannelPush), err.Error())
		}
	}

	if w.wantsEmail(n, prefs, now) {
		if err := w.sendEmail(ctx, n, prefs.Email); err != nil {
			return err
		}
	}

	if err := w.markDelivered(ctx, n, now); err != nil {
		return err
	}

	slog.Info("notification delivered",
		"id", id,
		"type", n.Type,
		"priority", n.Priority,
		"user_id", n.UserID,
		"duration", time.Since(start),
	)
	return nil
}

// wantsEmail reports whether n should also go out by email. Only high and
// critical notifications are emailed, and quiet hours hold back all but critical.
func (w *Worker) wantsEmail(n *Notification, prefs *Preferences, now time.Time) bool {
	if !prefs.EnableEmailNotifications || prefs.Email == "" {
		return false
	}
	if _, ok := w.providers[ChannelEmail]; !ok || w.renderer == nil {
		return false
	}
	switch n.Priority {
	case PriorityCritical:
		return true
	case PriorityHigh:
		return !prefs.InQuietHours(now)
	}
	return false
}

func (w *Worker) sendEmail(ctx context.Context, n *Notification, to string) error {
	subject, html, text, err := w.renderer.Render(n)
	if err != nil {
		return fmt.Errorf("rendering email for %s: %w", n.ID, err)
	}

	provider := w.providers[ChannelEmail]
	providerID, err := provider.Send(ctx, &Message{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		slog.Error("notification email failed", "id", n.ID, "to", to, "error", err)
		return common.NewProviderError(string(ChannelEmail), err.Error())
	}

	slog.Info("notification emailed", "id", n.ID, "to", to, "provider_id", providerID)
	return nil
}

func (w *Worker) markDelivered(ctx context.Context, n *Notification, at time.Time) error {
	if err := w.store.MarkDelivered(ctx, n.ID, at); err != nil {
		return fmt.Errorf("marking %s delivered: %w", n.ID, err)
	}
	return nil
}
