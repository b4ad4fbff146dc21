package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	logx "github.com/motorchat-core/server/pkg/logger"
)

// atomically increments the per-identity counter and arms its expiry
var limitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call("INCR", key)
if current == 1 then
    redis.call("EXPIRE", key, window)
end

if current > limit then
    return 0
else
    return 1
end
`)

// Limiter enforces a fixed-window request ceiling per identity (session ID).
// It fails open: when Redis is unreachable a turn is allowed rather than
// refused, since the generation pipeline has its own breaker.
type Limiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func New(client redis.Cmdable, perMinute int) *Limiter {
	return &Limiter{
		client: client,
		limit:  perMinute,
		window: time.Minute,
	}
}

func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	if l.limit <= 0 {
		return true
	}

	result, err := limitScript.Run(ctx, l.client, []string{"ratelimit:" + identity}, l.limit, int(l.window.Seconds())).Int()
	if err != nil {
		logx.Warn().Str("identity", identity).Err(err).Msg("Rate limit check failed, allowing request")
		return true
	}
	return result == 1
}
