package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the undelivered notification reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans the store.
	Interval time.Duration

	// StaleThreshold is how long a notification may stay undelivered
	// before the reaper re-enqueues it.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of notifications recovered per cycle.
	BatchSize int
}

// Reaper periodically scans the store for notifications that were persisted
// but never delivered and re-enqueues them. The store is the source of
// truth; the queue is reconciled with it on a timer, so a lost task or a
// wiped Redis never drops a notification.
type Reaper struct {
	store    NotificationStore
	enqueuer Enqueuer
	config   ReaperConfig
	now      func() time.Time
}

// NewReaper creates a new reaper.
func NewReaper(store NotificationStore, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{
		store:    store,
		enqueuer: enqueuer,
		config:   cfg,
		now:      time.Now,
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reaper cycle and returns how many notifications were re-enqueued.
func (r *Reaper) Sweep(ctx context.Context) int {
	olderThan := r.now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListUndelivered(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list undelivered notifications", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	slog.Warn("reaper: found undelivered notifications", "count", len(stale))

	recovered := 0
	for _, n := range stale {
		if err := r.enqueuer.EnqueueDelivery(ctx, n.ID); err != nil {
			slog.Error("reaper: failed to re-enqueue", "id", n.ID, "error", err)
			continue
		}
		recovered++
		slog.Info("reaper: recovered notification",
			"id", n.ID,
			"user_id", n.UserID,
			"age", r.now().Sub(n.Timestamp).Round(time.Second),
		)
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered", recovered, "total_stale", len(stale))
	}
	return recovered
}
