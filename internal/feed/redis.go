package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/core/events"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "attendance:events"

// RedisBroker relays committed events between instances. Publish is a bus
// handler on the writing instance; Run feeds every instance's local hub.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	backoff time.Duration
	logger  *slog.Logger
}

func NewRedisBroker(client redis.UniversalClient, channel string, hub *Hub, logger *slog.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroker{
		client:  client,
		channel: channel,
		hub:     hub,
		backoff: 2 * time.Second,
		logger:  logger,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run subscribes until ctx is done. While the subscription is down the hub
// is marked unavailable.
func (b *RedisBroker) Run(ctx context.Context) error {
	for {
		if err := b.relay(ctx); err != nil {
			b.logger.Error("redis feed relay interrupted", "channel", b.channel, "error", err)
		}
		b.hub.SetAvailable(false)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.backoff):
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.hub.SetAvailable(true)
	b.logger.Info("redis feed relay subscribed", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			var ev attendance.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed feed message", "channel", b.channel, "error", err)
				continue
			}
			b.hub.Broadcast(&ev)
		}
	}
}
