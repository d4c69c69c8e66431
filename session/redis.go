package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "user-session:"

// RedisBackend is the fast shared cache tier, storing one JSON-encoded
// record per user.
type RedisBackend struct {
	client *redis.Client
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps an existing Redis client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, userID string) (*Record, error) {
	payload, err := b.client.Get(ctx, redisKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session from redis")
	}

	record := &Record{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session record")
	}
	return record, nil
}

func (b *RedisBackend) Set(ctx context.Context, userID string, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session record")
	}
	if err := b.client.Set(ctx, redisKeyPrefix+userID, payload, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to set session in redis")
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, userID string) error {
	if err := b.client.Del(ctx, redisKeyPrefix+userID).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session from redis")
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
