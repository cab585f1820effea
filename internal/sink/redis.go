package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotReady is returned when the server does not answer a ping.
var ErrRedisNotReady = errors.New("redis not ready")

// Publisher is satisfied by *redis.Client and redis.UniversalClient.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis republishes every notification on <prefix>:<type>.
type Redis struct {
	client Publisher
	prefix string
}

// NewRedis creates a Redis writer.
func NewRedis(client Publisher, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Name implements Writer.
func (r *Redis) Name() string { return "redis" }

// Channel returns the pub/sub channel for a message type.
func (r *Redis) Channel(e Event) string {
	return r.prefix + ":" + string(e.Type)
}

// Write publishes events in order and stops at the first failure.
func (r *Redis) Write(ctx context.Context, events []Event) (written int, err error) {
	for _, e := range events {
		if err := r.client.Publish(ctx, r.Channel(e), []byte(e.Payload)).Err(); err != nil {
			return written, fmt.Errorf("publish %s: %w", r.Channel(e), err)
		}
		written++
	}
	return written, nil
}

// ConnectRedis parses a redis:// URL and verifies the server with a ping.
func ConnectRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}
