package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrBucketNotConfigured = errors.New("rate_limit_not_configured")
	ErrInvalidLimit        = errors.New("rate_limit_invalid")
)

// The bucket refills continuously at ARGV[1] tokens per second up to
// ARGV[2]. It answers {allowed, milliseconds until the next token}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, wait}
`

// Limit is a sustained rate in requests per second plus the burst allowed on
// top of it.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// TokenBucket keeps one bucket per key in redis so every instance shares the
// same budget.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take consumes one token from the bucket at key.
func (t *TokenBucket) Take(ctx context.Context, key string, limit Limit) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrBucketNotConfigured
	}
	if key == "" || !limit.valid() {
		return Decision{}, ErrInvalidLimit
	}

	res, err := t.script.Run(ctx, t.client, []string{key},
		limit.Rate,
		limit.Burst,
		bucketTTL(limit).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, errors.New("rate limit script returned an unexpected reply")
	}

	return Decision{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket long enough to refill twice.
func bucketTTL(limit Limit) time.Duration {
	if !limit.valid() {
		return time.Second
	}
	seconds := math.Ceil(float64(limit.Burst) / limit.Rate * 2)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}
