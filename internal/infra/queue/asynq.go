package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipnotify/internal/domain/notification"

	"github.com/hibiken/asynq"
)

// QueueNotifications is the asynq queue delivery tasks are placed on.
const QueueNotifications = "notifications"

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int, retryDelay time.Duration) *asynq.Server {
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueNotifications: 10, // priority weight
				"default":          1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return RetryDelay(retryDelay, n)
			},
		},
	)
}

// RetryDelay doubles base for every retry: 30s, 60s, 120s, ...
func RetryDelay(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return base * time.Duration(1<<uint(n-1))
}

var _ notification.Enqueuer = (*Enqueuer)(nil)

// Enqueuer puts delivery tasks on the asynq queue.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

// EnqueueDelivery enqueues a deliver task for the notification. The task ID
// is derived from the notification ID, so a reaper re-enqueue of a task that
// is still pending is a no-op.
func (e *Enqueuer) EnqueueDelivery(ctx context.Context, id notification.ID) error {
	task, err := notification.NewDeliverNotificationTask(id)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(e.maxRetry),
		asynq.Queue(QueueNotifications),
		asynq.TaskID("deliver:"+string(id)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return nil
}
