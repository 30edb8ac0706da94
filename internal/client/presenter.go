package client

import (
	"log/slog"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/realtime"
)

var _ realtime.Presenter = (*LogPresenter)(nil)

// LogPresenter shows banners as log records. A disabled presenter stands for
// a user who has not granted notification permission.
type LogPresenter struct {
	logger  *slog.Logger
	enabled bool
}

// NewLogPresenter creates a presenter. A nil logger uses slog.Default.
func NewLogPresenter(logger *slog.Logger, enabled bool) *LogPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPresenter{logger: logger, enabled: enabled}
}

// Show emits the banner.
func (p *LogPresenter) Show(n *notification.Notification) {
	if !p.enabled {
		return
	}
	attrs := []any{
		"id", n.ID,
		"type", n.Type,
		"priority", n.Priority,
		"message", n.Message,
		// Critical banners stay until dismissed.
		"sticky", n.Priority == notification.PriorityCritical,
	}
	if a := n.PrimaryAction(); a != nil && a.Action == "navigate" {
		if url, ok := a.Payload["url"].(string); ok {
			attrs = append(attrs, "link", url)
		}
	}
	p.logger.Info(n.Title, attrs...)
}
