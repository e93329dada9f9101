// README: Redis-backed lock electing one replica per cleanup interval.
package driver

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLock struct {
	redis *redis.Client
	owner string
}

func NewRedisLock(client *redis.Client, owner string) *RedisLock {
	return &RedisLock{redis: client, owner: owner}
}

// TryLock holds key until ttl expires. It is never released early so that one replica
// runs the job per interval.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.redis.SetNX(ctx, key, l.owner, ttl).Result()
}
