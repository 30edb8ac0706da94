package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipnotify/internal/config"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/infra/broker"
	"shipnotify/internal/infra/email"
	"shipnotify/internal/infra/history"
	"shipnotify/internal/infra/metrics"
	"shipnotify/internal/infra/pubsub"
	"shipnotify/internal/infra/queue"
	"shipnotify/internal/infra/ratelimit"
	"shipnotify/internal/infra/store"
	"shipnotify/internal/infra/template"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded", "store", cfg.Store.Driver, "broker", cfg.Broker.Driver)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tmplEngine, err := template.NewEngine(cfg.Email.LinkBaseURL)
	if err != nil {
		slog.Error("failed to initialize template engine", "error", err)
		os.Exit(1)
	}

	var providers []notification.Provider
	if cfg.Email.APIKey != "" {
		providers = append(providers, email.NewResendProvider(
			cfg.Email.APIKey,
			cfg.Email.FromAddress,
			cfg.Email.FromName,
		))
	} else {
		slog.Warn("email api key not set, email delivery disabled")
	}

	notifStore, closeStore, err := store.Open(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pusher := pubsub.NewRedisPusher(rdb, pubsub.DefaultChannel)
	notifWorker := notification.NewWorker(notifStore, notifStore, pusher, tmplEngine, providers...)

	// Asynq Client (for reaper re-enqueuing and shipment notifications)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
		time.Duration(cfg.Queue.RetryDelaySec)*time.Second,
	)

	observer := metrics.Observer{}
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliverNotification, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDeliverNotificationPayload(task.Payload())
		if err != nil {
			observer.Delivered("invalid")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if err := notifWorker.ProcessTask(ctx, payload.NotificationID); err != nil {
			observer.Delivered("error")
			return err
		}
		observer.Delivered("ok")
		return nil
	})

	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Stale Task Reaper
	// ==========================================

	reaper := notification.NewReaper(notifStore, enqueuer, notification.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})
	go reaper.Run(ctx)

	// ==========================================
	// Shipment Event Consumer
	// ==========================================

	notificationService := notification.NewService(
		notifStore,
		notifStore,
		enqueuer,
		ratelimit.NewRedisRecipientLimiter(rdb, cfg.RecipientRateLimit.MaxPerHour),
		pusher,
	)
	processor := shipment.NewProcessor(notificationService, history.NewRedisStore(rdb, 0, 0), pusher, observer)

	consumer, err := broker.New(cfg.Broker, processor)
	if err != nil {
		slog.Error("failed to initialize broker consumer", "error", err)
		os.Exit(1)
	}
	if consumer != nil {
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("broker consumer stopped", "error", err)
			}
		}()
	}

	// ==========================================
	// Metrics
	// ==========================================

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Queue.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel() // Stop the reaper and consumer first
	asynqServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	slog.Info("worker exited gracefully")
}
