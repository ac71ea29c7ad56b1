package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter on a shared Redis counter, so the
// budget holds across concurrent instances. INCR and the window expiry are
// atomic in a single Lua script.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    max,
		window: window,
		prefix: "ratelimit:",
	}
}

// allowScript increments the counter and stamps the expiry on first use of
// the window. Returns the post-increment count.
var allowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	key := l.prefix + clientKey
	count, err := allowScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return count <= int64(l.max), nil
}
