package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "relay:commands:"

// RedisChannel is the pub/sub channel a client subscribes to for its pairing.
func RedisChannel(pairingID string) string {
	return redisChannelPrefix + pairingID
}

type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (r *RedisNotifier) Notify(ctx context.Context, n CommandAvailable) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, RedisChannel(n.PairingID), b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
