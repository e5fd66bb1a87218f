package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPublishTimeout = 2 * time.Second

// RedisSubscriber republishes order events on a pub/sub channel for other services.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
}

func NewRedisSubscriber(client *redis.Client, channel string) *RedisSubscriber {
	return &RedisSubscriber{client: client, channel: channel}
}

func (s *RedisSubscriber) Name() string {
	return "redis"
}

func (s *RedisSubscriber) Handle(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	return s.client.Publish(ctx, s.channel, payload).Err()
}
