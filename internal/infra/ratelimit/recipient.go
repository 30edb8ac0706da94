package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"shipnotify/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.RecipientRateLimiter = (*RedisRecipientLimiter)(nil)

// RedisRecipientLimiter caps how many notifications a single user can be sent
// per window, using a Redis sorted set as a sliding window counter.
type RedisRecipientLimiter struct {
	client    *redis.Client
	maxPerWin int
	window    time.Duration
	now       func() time.Time
}

// NewRedisRecipientLimiter creates a per-user limiter with an hourly window.
func NewRedisRecipientLimiter(client *redis.Client, maxPerHour int) *RedisRecipientLimiter {
	return &RedisRecipientLimiter{
		client:    client,
		maxPerWin: maxPerHour,
		window:    time.Hour,
		now:       time.Now,
	}
}

// Allow checks whether another notification may be published to userID and
// records it when allowed.
func (r *RedisRecipientLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("shipnotify:ratelimit:%s", userID)
	now := r.now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("checking user rate limit: %w", err)
	}

	if countCmd.Val() >= int64(r.maxPerWin) {
		return false, nil
	}

	// Random suffix keeps concurrent members in the same nanosecond distinct.
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}
	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute)
	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording rate limit entry: %w", err)
	}

	return true, nil
}
