// Package pubsub fans real-time pushes out to every gateway process through
// Redis pub/sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"shipnotify/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel push frames travel on.
const DefaultChannel = "shipnotify:push"

// message is the pub/sub wire format.
type message struct {
	Target notification.Target `json:"target"`
	Event  string              `json:"event"`
	Data   json.RawMessage     `json:"data,omitempty"`
}

var _ notification.Pusher = (*RedisPusher)(nil)

// RedisPusher publishes pushes to Redis. Any process can use it; gateways
// deliver the frames through a Relay.
type RedisPusher struct {
	client  *redis.Client
	channel string
}

// NewRedisPusher creates a pusher on the given channel.
func NewRedisPusher(client *redis.Client, channel string) *RedisPusher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPusher{client: client, channel: channel}
}

// Push publishes the event for target.
func (p *RedisPusher) Push(ctx context.Context, target notification.Target, event string, payload any) error {
	msg := message{Target: target, Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", event, err)
		}
		msg.Data = data
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding push message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// Relay subscribes to the push channel and hands every message to a local pusher.
type Relay struct {
	client  *redis.Client
	channel string
	local   notification.Pusher
}

// NewRelay creates a relay into local, typically the gateway hub.
func NewRelay(client *redis.Client, channel string, local notification.Pusher) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, local: local}
}

// Run relays messages until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	slog.Info("push relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("push relay stopped")
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, m.Payload)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, payload string) {
	var msg message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.Error("push relay: bad message", "error", err)
		return
	}

	var data any
	if len(msg.Data) > 0 {
		data = msg.Data
	}
	if err := r.local.Push(ctx, msg.Target, msg.Event, data); err != nil {
		slog.Error("push relay: local delivery failed", "event", msg.Event, "error", err)
	}
}
