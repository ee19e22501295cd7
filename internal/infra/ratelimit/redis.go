// Package ratelimit provides fixed-window (Redis) and token-bucket (in-process)
// request limiters keyed by caller.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// RedisLimiter shares a fixed window per key across every API node.
type RedisLimiter struct {
	client  *redis.Client
	script  *redis.Script
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisLimiter(client *redis.Client, prefix string, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		script:  redis.NewScript(fixedWindowScript),
		prefix:  prefix,
		timeout: 250 * time.Millisecond,
		logger:  logger.With("component", "redis-limiter"),
	}
}

// Allow fails open: if Redis is slow or down, the request goes through.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, limit).Int64()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request", "key", key, "error", err)
		return true
	}
	return allowed == 1
}
