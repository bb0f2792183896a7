package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisObserver PUBLISHes events on a pub/sub channel for push/SMS gateways.
type RedisObserver struct {
	client  redisPublisher
	channel string
}

func NewRedisObserver(client *redis.Client, channel string) *RedisObserver {
	return &RedisObserver{client: client, channel: channel}
}

func (r *RedisObserver) Name() string { return "redis" }

func (r *RedisObserver) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}
