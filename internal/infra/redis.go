// README: Redis client for the cleanup leader lock.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockDialTimeout = 2 * time.Second
	lockIOTimeout   = time.Second
	lockPoolSize    = 4
)

// NewRedis connects and pings. Lock traffic is one SET NX per interval.
func NewRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  lockDialTimeout,
		ReadTimeout:  lockIOTimeout,
		WriteTimeout: lockIOTimeout,
		PoolSize:     lockPoolSize,
		MaxRetries:   1,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
