package cache

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

type memoryEntry struct {
	snapshot  domain.Snapshot
	expiresAt time.Time
}

// MemorySnapshotCache is a process-local snapshot cache for local mode.
type MemorySnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySnapshotCache creates an in-process snapshot cache.
func NewMemorySnapshotCache(ttl time.Duration) *MemorySnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySnapshotCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemorySnapshotCache) Get(_ context.Context, accountID string) (domain.Snapshot, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return domain.Snapshot{}, false, nil
	}
	return entry.snapshot, true, nil
}

func (c *MemorySnapshotCache) Set(_ context.Context, accountID string, snapshot domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[accountID] = memoryEntry{snapshot: snapshot, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemorySnapshotCache) Invalidate(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
	return nil
}
