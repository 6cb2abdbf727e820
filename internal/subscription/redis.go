package subscription

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps usage counts in Redis. Keys expire a day after the
// period they count.
type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func usageKey(userID, feature, period string) string {
	return "usage:" + period + ":" + userID + ":" + feature
}

func (c *RedisCounter) Get(ctx context.Context, userID, feature, period string) (int, error) {
	v, err := c.client.Get(ctx, usageKey(userID, feature, period)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (c *RedisCounter) Incr(ctx context.Context, userID, feature, period string) (int, error) {
	key := usageKey(userID, feature, period)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = c.client.Expire(ctx, key, periodTTL(period, time.Now())).Err()
	}
	return int(n), nil
}

func periodTTL(period string, now time.Time) time.Duration {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return 32 * 24 * time.Hour
	}
	end := start.AddDate(0, 1, 1)
	if ttl := end.Sub(now); ttl > 0 {
		return ttl
	}
	return time.Hour
}
