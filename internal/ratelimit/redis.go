package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "miniquoter:ratelimit:"
	redisKeyTTL    = 48 * time.Hour
)

// takeScript increments KEYS[1] only while it is below ARGV[1] and expires
// the key at ARGV[2]. It returns {count, allowed}.
var takeScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n >= tonumber(ARGV[1]) then
	return {n, 0}
end
n = redis.call("INCR", KEYS[1])
redis.call("EXPIREAT", KEYS[1], ARGV[2])
return {n, 1}
`)

// RedisCounter shares counts between processes. Takes are atomic on the
// server. Keys expire on their own, so it does not implement Pruner.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects using a redis:// URL.
func NewRedisCounter(ctx context.Context, url string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

func (r *RedisCounter) Count(ctx context.Context, key string) (int, error) {
	n, err := r.client.Get(ctx, redisKeyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RedisCounter) SetCount(ctx context.Context, key string, n int) error {
	return r.client.Set(ctx, redisKeyPrefix+key, n, redisKeyTTL).Err()
}

// TakeUnit implements Incrementer. Keys are kept a day past their window.
func (r *RedisCounter) TakeUnit(ctx context.Context, key string, limit int, expireAt time.Time) (int, bool, error) {
	vals, err := takeScript.Run(ctx, r.client, []string{redisKeyPrefix + key},
		limit, expireAt.Add(24*time.Hour).Unix()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(vals) != 2 {
		return 0, false, fmt.Errorf("unexpected script reply %v", vals)
	}
	return int(vals[0]), vals[1] == 1, nil
}

func (r *RedisCounter) Close() error {
	return r.client.Close()
}
