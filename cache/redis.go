package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/raggate/errors"
)

const redisKeyPrefix = "raggate:response:"

// Redis stores responses in a shared Redis instance so multiple gateway
// replicas see the same cache. Hit/miss counters are per-process.
type Redis struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis creates a Redis-backed cache and verifies connectivity.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(errors.CodeConfig, "connect to redis", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.CodeInternal, "redis get", err)
	}
	r.hits.Add(1)
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "redis set", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "redis delete", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(errors.CodeInternal, "redis clear", err)
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "redis scan", err)
	}
	return nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, errors.Wrap(errors.CodeInternal, "redis dbsize", err)
	}
	hits, misses := r.hits.Load(), r.misses.Load()
	total := hits + misses
	stats := Stats{
		Hits:          hits,
		Misses:        misses,
		Size:          int(size),
		TotalRequests: total,
	}
	if total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
