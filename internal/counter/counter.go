// Package counter keeps live download tallies in Redis. It is a best-effort
// sink beside the durable store: per-package daily counters plus a per-day
// ranking, queried by the admin API.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pkgstats/internal/ingest"
)

const (
	// Redis key prefixes for daily counters and rankings.
	dailyKeyPrefix = "pkgstats:day:"
	rankKeyPrefix  = "pkgstats:rank:"

	// Counters are transient; the durable store is the system of record.
	defaultTTL = 90 * 24 * time.Hour

	dayFormat = "2006-01-02"
)

// PackageCount is one entry of a daily ranking.
type PackageCount struct {
	Package string `json:"package"`
	Count   int64  `json:"count"`
}

// RedisCounter is a Redis-backed live download counter.
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a counter on an externally managed client.
func NewRedis(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, ttl: defaultTTL}
}

// RecordDownload bumps the package's counter and ranking for the event's day.
// One pipelined round trip per event.
func (c *RedisCounter) RecordDownload(ctx context.Context, d ingest.Download) error {
	day := d.DownloadTime.UTC().Format(dayFormat)
	dailyKey := dailyKeyPrefix + day + ":" + d.PackageName
	rankKey := rankKeyPrefix + day

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, c.ttl)
	pipe.ZIncrBy(ctx, rankKey, 1, d.PackageName)
	pipe.Expire(ctx, rankKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record download counter: %w", err)
	}
	return nil
}

// Count returns the number of downloads recorded for a package on the given
// day. A missing key means zero, not an error.
func (c *RedisCounter) Count(ctx context.Context, pkg string, day time.Time) (int64, error) {
	key := dailyKeyPrefix + day.UTC().Format(dayFormat) + ":" + pkg
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read download counter: %w", err)
	}
	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse download counter %q: %w", value, err)
	}
	return count, nil
}

// Top returns the n most-downloaded packages for the given day, highest
// first.
func (c *RedisCounter) Top(ctx context.Context, day time.Time, n int64) ([]PackageCount, error) {
	key := rankKeyPrefix + day.UTC().Format(dayFormat)
	entries, err := c.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read download ranking: %w", err)
	}
	top := make([]PackageCount, 0, len(entries))
	for _, entry := range entries {
		name, ok := entry.Member.(string)
		if !ok {
			continue
		}
		top = append(top, PackageCount{Package: name, Count: int64(entry.Score)})
	}
	return top, nil
}
