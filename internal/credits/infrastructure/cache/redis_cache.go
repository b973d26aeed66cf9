package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "skinsight:credits:"
	DefaultTTL = 30 * time.Second
)

// RedisSnapshotCache stores credit snapshots in Redis with a short TTL.
type RedisSnapshotCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a snapshot cache. The caller owns the client.
func NewRedisSnapshotCache(client redis.UniversalClient, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(accountID string) string {
	return keyPrefix + accountID
}

// Get returns the cached snapshot, reporting false on a miss.
func (c *RedisSnapshotCache) Get(ctx context.Context, accountID string) (domain.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Set stores a snapshot.
func (c *RedisSnapshotCache) Set(ctx context.Context, accountID string, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(accountID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, snapshotKey(accountID)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}
