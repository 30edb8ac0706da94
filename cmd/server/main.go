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

	"shipnotify/internal/auth"
	"shipnotify/internal/config"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/gateway"
	"shipnotify/internal/infra/history"
	"shipnotify/internal/infra/metrics"
	"shipnotify/internal/infra/pubsub"
	"shipnotify/internal/infra/queue"
	"shipnotify/internal/infra/ratelimit"
	"shipnotify/internal/infra/store"
	"shipnotify/internal/middleware"
	"shipnotify/internal/router"

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
	if cfg.Auth.JWTSecret == "" {
		slog.Error("auth.jwt_secret is required")
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode, "store", cfg.Store.Driver)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifStore, closeStore, err := store.Open(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Asynq Client (for enqueuing deliveries)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)

	recipientLimiter := ratelimit.NewRedisRecipientLimiter(rdb, cfg.RecipientRateLimit.MaxPerHour)
	slog.Info("recipient rate limiter initialized", "max_per_hour", cfg.RecipientRateLimit.MaxPerHour)

	// Every process publishes through Redis; the relay feeds this gateway's hub.
	pusher := pubsub.NewRedisPusher(rdb, pubsub.DefaultChannel)
	hub := gateway.NewHub(metrics.Observer{})
	relay := pubsub.NewRelay(rdb, pubsub.DefaultChannel, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			slog.Error("push relay failed", "error", err)
		}
	}()

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)

	notificationService := notification.NewService(notifStore, notifStore, enqueuer, recipientLimiter, pusher)
	processor := shipment.NewProcessor(
		notificationService,
		history.NewRedisStore(rdb, 0, 0),
		pusher,
		metrics.Observer{},
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx)

	r := router.New(cfg, rateLimiter, tokens, router.Handlers{
		Notification: notification.NewHandler(notificationService),
		Shipment:     shipment.NewHandler(processor),
		Gateway:      gateway.NewHandler(hub, tokens, pusher, cfg.CORS.AllowedOrigins),
	})

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Hijacked WebSocket connections are not tracked by srv.Shutdown.
	hub.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
