package services

import (
	"context"
	"time"

	"github.com/nimasrn/expense-tracker/pkg/redis"
)

// RedisLimiter admits the first call per key and window using SET NX.
type RedisLimiter struct {
	adapter redis.RedisAdapter
}

func NewRedisLimiter(adapter redis.RedisAdapter) *RedisLimiter {
	return &RedisLimiter{adapter: adapter}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return l.adapter.SetNX(ctx, "cooldown:"+key, []byte("1"), window)
}
