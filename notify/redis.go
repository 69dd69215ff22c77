package notify

import (
	"context"
	"encoding/json"
	"errors"

	"Gin_postgres_redis_library/models"

	"github.com/redis/go-redis/v9"
)

const (
	OutboxKey     = "library:notify:outbox"
	channelPrefix = "library:notify:"
)

// Channel is the pub/sub channel carrying userID's notifications.
func Channel(userID string) string { return channelPrefix + userID }

type RedisOutbox struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisOutbox(rdb redis.UniversalClient) *RedisOutbox {
	return &RedisOutbox{rdb: rdb, key: OutboxKey}
}

func (o *RedisOutbox) Push(ctx context.Context, n models.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return o.rdb.RPush(ctx, o.key, b).Err()
}

func (o *RedisOutbox) Pop(ctx context.Context) (*models.Notification, error) {
	b, err := o.rdb.LPop(ctx, o.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n models.Notification
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (o *RedisOutbox) Len(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, o.key).Result()
}

type RedisPublisher struct{ rdb redis.UniversalClient }

func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) Publish(ctx context.Context, n models.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(n.UserID), b).Err()
}
