package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
)

// SnapshotCache keeps the last-known-good normalized snapshot per task in
// redis. It backs two behaviors: serving a stale-but-valid view when the
// provider rate-limits us, and the ephemeral mirror that is dropped once a
// task is finalized.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(taskID string) string {
	return "spivanka:task:" + taskID + ":snapshot"
}

func (c *SnapshotCache) Get(ctx context.Context, taskID string) (*normalizer.Snapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot cache get: %w", err)
	}
	var snap normalizer.Snapshot
	if err := sonic.Unmarshal(raw, &snap); err != nil {
		// corrupt entry: treat as a miss, the store remains authoritative
		return nil, nil
	}
	return &snap, nil
}

func (c *SnapshotCache) Set(ctx context.Context, snap *normalizer.Snapshot) error {
	raw, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot cache marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.TaskID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot cache set: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Delete(ctx context.Context, taskID string) error {
	if err := c.rdb.Del(ctx, snapshotKey(taskID)).Err(); err != nil {
		return fmt.Errorf("snapshot cache delete: %w", err)
	}
	return nil
}
