// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel realtime events are relayed on.
const DefaultChannel = "uconnect_events"

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis creates a client and verifies it with a ping.
func ConnectRedis(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// EventBus is a Redis pub/sub channel shared by all server instances.
type EventBus struct {
	rdb     *redis.Client
	channel string
}

func NewEventBus(rdb *redis.Client, channel string) *EventBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventBus{rdb: rdb, channel: channel}
}

// Publish sends payload to every subscriber of the channel.
func (b *EventBus) Publish(ctx context.Context, payload []byte) error {
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", b.channel, err)
	}
	return nil
}

// Subscribe calls fn for each message on the channel until ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, fn func(payload []byte)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reading
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to Redis channel '%s': %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}
