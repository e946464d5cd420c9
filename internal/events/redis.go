package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Bus = (*RedisBus)(nil)

// RedisBus implements Bus on Redis pub/sub. Delivery is fire-and-forget: no
// persistence, no replay.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisBus creates a bus on an existing Redis client.
func NewRedisBus(client *redis.Client, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

// NewRedisClient connects and pings a Redis server.
func NewRedisClient(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connected", zap.String("addr", opts.Addr))
	return client, nil
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	env, err := newEnvelope(channel, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, string(data)).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	pubsub := b.client.Subscribe(ctx, channel)
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Error("failed to unmarshal event envelope",
						zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(ctx, env)
			}
		}
	}()

	return nil
}
