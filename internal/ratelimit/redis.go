package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a sliding-window limiter on a Redis sorted set per key, scored
// by timestamp. Multiple service instances pointed at the same Redis share
// one window per client.
type Redis struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRedis(rdb *redis.Client, max int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, max: max, window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	setKey := "ratelimit:" + key
	now := r.now()
	cutoff := strconv.FormatInt(now.Add(-r.window).UnixMilli(), 10)

	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", cutoff)
	count := pipe.ZCard(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit window check: %w", err)
	}
	if int(count.Val()) >= r.max {
		return false, nil
	}

	pipe = r.rdb.TxPipeline()
	pipe.ZAdd(ctx, setKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, setKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit record: %w", err)
	}
	return true, nil
}
