package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipnotify/internal/domain/shipment"

	"github.com/redis/go-redis/v9"
)

var _ shipment.HistoryStore = (*RedisStore)(nil)

// RedisStore keeps each shipment's tracking history in a capped Redis list.
type RedisStore struct {
	client *redis.Client
	max    int64
	ttl    time.Duration
}

// NewRedisStore creates a history store keeping at most maxEvents per shipment.
func NewRedisStore(client *redis.Client, maxEvents int, ttl time.Duration) *RedisStore {
	if maxEvents <= 0 {
		maxEvents = 50
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, max: int64(maxEvents), ttl: ttl}
}

func key(trackingNumber string) string {
	return "shipnotify:tracking:" + trackingNumber
}

// Append records an event and returns the full history, oldest first.
func (s *RedisStore) Append(ctx context.Context, trackingNumber string, e shipment.TrackingEvent) ([]shipment.TrackingEvent, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding tracking event: %w", err)
	}

	k := key(trackingNumber)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, k, raw)
	pipe.LTrim(ctx, k, -s.max, -1)
	pipe.Expire(ctx, k, s.ttl)
	rangeCmd := pipe.LRange(ctx, k, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("appending tracking event: %w", err)
	}
	return decode(rangeCmd.Val())
}

// History returns the stored history, oldest first.
func (s *RedisStore) History(ctx context.Context, trackingNumber string) ([]shipment.TrackingEvent, error) {
	vals, err := s.client.LRange(ctx, key(trackingNumber), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading tracking history: %w", err)
	}
	return decode(vals)
}

func decode(vals []string) ([]shipment.TrackingEvent, error) {
	events := make([]shipment.TrackingEvent, 0, len(vals))
	for _, v := range vals {
		var e shipment.TrackingEvent
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decoding tracking event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
