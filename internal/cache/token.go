package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	// tokenCachePrefix is the Redis key prefix for verified admin tokens.
	tokenCachePrefix = "admin:token:"
	// TokenCacheTTL is how long a verified token skips argon2 verification.
	TokenCacheTTL = 5 * time.Minute
)

// IsTokenVerified reports whether key was verified recently. Callers build key
// from the token fingerprint and the hash it was checked against.
// Redis errors are reported as not verified, which falls back to argon2.
func (c *Cache) IsTokenVerified(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, tokenCachePrefix+key).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkTokenVerified remembers a verified key for TokenCacheTTL.
func (c *Cache) MarkTokenVerified(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, tokenCachePrefix+key, 1, TokenCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache token verification: %w", err)
	}
	return nil
}
