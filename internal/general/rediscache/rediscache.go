// Package rediscache caches booth queue snapshots for the admin query
// surface. The store stays authoritative: every queue mutation invalidates
// the cached snapshot, and reads fall back to the store on a miss.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache is a redis-backed ports.SnapshotCache.
type SnapshotCache struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// NewClient dials redis at the given address.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// New wraps a redis client as a snapshot cache.
func New(rdb *redis.Client, log *logger.Logger) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, logger: log}
}

func snapshotKey(boothID, date string) string {
	return "boothq:" + date + ":" + boothID
}

// GetQueue returns the cached snapshot if present and decodable.
func (c *SnapshotCache) GetQueue(ctx context.Context, boothID, date string) (*queue.BoothQueue, bool) {
	raw, err := c.rdb.Get(ctx, snapshotKey(boothID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug(ctx, "snapshot_cache_miss", "Redis read failed, falling back to store", map[string]any{"booth_id": boothID})
		}
		return nil, false
	}

	var q queue.BoothQueue
	if err := json.Unmarshal(raw, &q); err != nil {
		// poisoned entry: drop it rather than serve it
		c.InvalidateQueue(ctx, boothID, date)
		return nil, false
	}
	return &q, true
}

// SetQueue stores the snapshot with a bounded TTL.
func (c *SnapshotCache) SetQueue(ctx context.Context, q *queue.BoothQueue, ttl time.Duration) {
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, snapshotKey(q.BoothID, q.Date), raw, ttl).Err(); err != nil {
		c.logger.Debug(ctx, "snapshot_cache_set_failed", "Redis write failed", map[string]any{"booth_id": q.BoothID})
	}
}

// InvalidateQueue drops the cached snapshot after a mutation.
func (c *SnapshotCache) InvalidateQueue(ctx context.Context, boothID, date string) {
	if err := c.rdb.Del(ctx, snapshotKey(boothID, date)).Err(); err != nil {
		c.logger.Debug(ctx, "snapshot_cache_del_failed", "Redis delete failed", map[string]any{"booth_id": boothID})
	}
}
