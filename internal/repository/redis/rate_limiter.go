package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.RateLimiter = (*RateLimiter)(nil)

const keyRate = "rate:"

// allowScript increments the window counter, arming the expiry on the first
// hit, and returns {count, remaining ms}.
var allowScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`)

// RateLimiter is a fixed-window counter. Bursts of up to twice the limit can
// straddle a window boundary; that is a property of the algorithm, not a bug.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (auth.Decision, error) {
	res, err := allowScript.Run(ctx, l.client, []string{keyRate + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return auth.Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if len(res) != 2 {
		return auth.Decision{}, fmt.Errorf("rate limit incr: unexpected reply %v", res)
	}
	count, ttlMs := res[0], res[1]
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return auth.Decision{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   l.now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}
