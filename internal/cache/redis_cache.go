package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	Ref    string    `json:"ref"`
	SentAt time.Time `json:"sentAt"`
}

func key(q model.Queue, id int64) string {
	return fmt.Sprintf("relay:%s:%d", q, id)
}

func (c *RedisCache) StoreSent(ctx context.Context, q model.Queue, id int64, ref string, sentAt time.Time) error {
	val := sentValue{
		Ref:    ref,
		SentAt: sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key(q, id), b, c.ttl).Err()
}

func (c *RedisCache) LookupSent(ctx context.Context, q model.Queue, id int64) (string, bool, error) {
	raw, err := c.rdb.Get(ctx, key(q, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var val sentValue
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", false, fmt.Errorf("decode cached delivery: %w", err)
	}
	return val.Ref, true, nil
}
