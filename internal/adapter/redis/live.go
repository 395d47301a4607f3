// Package redis carries newly ingested events between the ingestion
// pipeline and websocket clients over a Redis pub/sub channel, so every
// replica of the API sees every event.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

// subscriberBuffer bounds how far a slow websocket client may fall behind
// before messages are dropped for it.
const subscriberBuffer = 64

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// LiveChannel publishes events to, and subscribes to, one pub/sub channel.
type LiveChannel struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewLiveChannel binds a client to a channel name.
func NewLiveChannel(client *redis.Client, channel string, logger *slog.Logger) *LiveChannel {
	return &LiveChannel{client: client, channel: channel, logger: logger}
}

// PublishEvent implements pipeline.LivePublisher.
func (l *LiveChannel) PublishEvent(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize live event: %w", err)
	}
	if err := l.client.Publish(ctx, l.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	return nil
}

// Subscribe streams raw event payloads until ctx is cancelled, then closes the
// returned channel. Messages are dropped when the consumer falls behind.
func (l *LiveChannel) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := l.client.Subscribe(ctx, l.channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", l.channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					l.logger.Warn("live subscriber lagging, dropping event", "channel", l.channel)
				}
			}
		}
	}()
	return out, nil
}
