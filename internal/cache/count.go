package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countKeyPrefix     = "count:"
	countVersionPrefix = "countver:"
	// allListsKey stands in for the list name when counting a whole project.
	allListsKey = "*"
)

// ErrStaleCount is returned by SetCount when the project's counts were
// invalidated after the version was read.
var ErrStaleCount = errors.New("count version is stale")

// setCountScript writes a count only while the project version is unchanged.
// KEYS: version key, count key. ARGV: expected version, count, TTL in ms.
var setCountScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1]) or '0'
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
	return 1
`)

// countKey builds the cache key for a project/list count.
func countKey(project, listName string) string {
	if listName == "" {
		listName = allListsKey
	}
	return countKeyPrefix + project + ":" + listName
}

func countVersionKey(project string) string {
	return countVersionPrefix + project
}

// GetCount returns a cached entry count and the project's count version.
// On ErrCacheMiss the version is still valid and should be handed to SetCount.
func (c *Cache) GetCount(ctx context.Context, project, listName string) (count, version int64, err error) {
	var verCmd, countCmd *redis.StringCmd
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		verCmd = pipe.Get(ctx, countVersionKey(project))
		countCmd = pipe.Get(ctx, countKey(project, listName))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("failed to get cached count: %w", err)
	}

	version, err = verCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("failed to read count version: %w", err)
	}

	count, err = countCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, version, ErrCacheMiss
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get cached count: %w", err)
	}
	return count, version, nil
}

// SetCount caches an entry count for ttl, unless the project's counts were
// invalidated since version was read by GetCount.
func (c *Cache) SetCount(ctx context.Context, project, listName string, count, version int64, ttl time.Duration) error {
	stored, err := setCountScript.Run(ctx, c.client,
		[]string{countVersionKey(project), countKey(project, listName)},
		strconv.FormatInt(version, 10), count, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to cache count: %w", err)
	}
	if stored == 0 {
		return ErrStaleCount
	}
	return nil
}

// InvalidateCounts bumps the project's count version, which refuses any
// count read before now, and drops the cached counts a new entry on listName
// affects: the list itself and the project-wide total.
func (c *Cache) InvalidateCounts(ctx context.Context, project, listName string) error {
	keys := []string{countKey(project, "")}
	if listName != "" {
		keys = append(keys, countKey(project, listName))
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, countVersionKey(project))
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate counts: %w", err)
	}
	return nil
}
