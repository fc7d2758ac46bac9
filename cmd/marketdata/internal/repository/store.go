package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient abstracts the output storage connection
type RedisClient interface {
	Pipeline() redis.Pipeliner
	Close() error
}

// Pipeliner is the subset of redis.Pipeliner the store uses.
type Pipeliner interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}
