package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingSnapshotKey = "approvals:pending_snapshot"

// PendingCache holds the last known pending queue in Redis. When the store is
// unreachable during an advisory refresh, the listing degrades to this
// snapshot instead of failing the caller.
type PendingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingCache constructs the cache.
func NewPendingCache(client *redis.Client, ttl time.Duration) *PendingCache {
	return &PendingCache{client: client, ttl: ttl}
}

// Put replaces the snapshot.
func (c *PendingCache) Put(ctx context.Context, pending []Request) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, pendingSnapshotKey, data, c.ttl).Err()
}

// Get returns the snapshot, or nil when none is stored.
func (c *PendingCache) Get(ctx context.Context) ([]Request, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, pendingSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var pending []Request
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}
