// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Limiter decides whether another request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// allowScript increments the window counter and sets its expiry in one
// server-side step, so a counter can never be left without a TTL.
var allowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter counts requests per key in windows of fixed length. The first
// hit of a window sets the key's expiry, so windows start on first use.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
	window time.Duration
	max    int64
}

func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		prefix: prefix,
		window: window,
		max:    int64(max),
	}
}

// Allow returns ErrRateLimited once key exceeds the limit, or an error
// wrapping ErrUnavailable when Redis cannot be reached.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := l.prefix + ":" + key

	count, err := allowScript.Run(ctx, l.redis, []string{k}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count > l.max {
		return ErrRateLimited
	}
	return nil
}

// Nop never limits. It is used when no Redis address is configured.
type Nop struct{}

func (Nop) Allow(context.Context, string) error { return nil }

// NewClient connects to Redis at addr and checks the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
