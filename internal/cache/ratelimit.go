package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitIPPrefix = "ratelimit:ip:"
	rateLimitIPTTL    = 10 * time.Second
	cooldownPrefix    = "cooldown:"
)

// RateLimitResult is the verdict of an IP rate limit or a cooldown check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and takes from a bucket atomically.
// ARGV: rate per second, burst, now (unix seconds), key TTL.
// Returns {allowed, retry_after_seconds, tokens_left}.
var tokenBucketScript = redis.NewScript(`
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
	local tokens = tonumber(state[1]) or burst
	local ts = tonumber(state[2]) or now
	tokens = math.min(burst, tokens + (now - ts) * rate)

	local allowed, wait = 0, 0
	if tokens >= 1 then
		allowed = 1
		tokens = tokens - 1
	else
		wait = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[4]))
	return {allowed, wait, math.floor(tokens)}
`)

// CheckIPRateLimit takes one token from the bucket of ip. Used by the admin API;
// the middleware lets requests through when this returns an error.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	return c.checkRateLimit(ctx, ipKey(ip), float64(ratePerSecond), burst, int(rateLimitIPTTL.Seconds()))
}

func (c *Cache) checkRateLimit(ctx context.Context, key string, rate float64, burst, ttl int) (*RateLimitResult, error) {
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client, []string{key}, rate, burst, now, ttl).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

// CheckCooldown lets one call per subject through every period.
// subject is usually project:command:user. Redis errors fail open and are
// returned alongside an allowed result so the caller can log them.
func (c *Cache) CheckCooldown(ctx context.Context, subject string, period time.Duration) (*RateLimitResult, error) {
	if period <= 0 {
		return &RateLimitResult{Allowed: true, ResetAt: time.Now()}, nil
	}

	key := cooldownKey(subject)

	set, err := c.client.SetNX(ctx, key, 1, period).Result()
	if err != nil {
		return &RateLimitResult{Allowed: true, ResetAt: time.Now()}, fmt.Errorf("cooldown check failed: %w", err)
	}
	if set {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: 0,
			ResetAt:   time.Now().Add(period),
		}, nil
	}

	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = period
	}

	return &RateLimitResult{
		Allowed:    false,
		ResetAt:    time.Now().Add(ttl),
		RetryAfter: ttl,
	}, nil
}

// ipKey stores a truncated SHA256 of the address, never the address itself.
func ipKey(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return rateLimitIPPrefix + hex.EncodeToString(hash[:8])
}

func cooldownKey(subject string) string {
	return cooldownPrefix + subject
}
