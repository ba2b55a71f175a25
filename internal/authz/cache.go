package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const epochKey = "authz:epoch"

// EffectiveCache keeps resolved effective sets in Redis. Cache keys embed a
// global epoch counter; bumping the epoch on any grant or override mutation
// invalidates every cached set at once, so a stale set is never served across
// a permission edit.
type EffectiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEffectiveCache constructs the cache.
func NewEffectiveCache(client *redis.Client, ttl time.Duration) *EffectiveCache {
	return &EffectiveCache{client: client, ttl: ttl}
}

// Get returns the cached effective set for the user, or nil on miss.
func (c *EffectiveCache) Get(ctx context.Context, userID int64) (map[string]struct{}, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	key, err := c.entryKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	effective := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		effective[k] = struct{}{}
	}
	return effective, nil
}

// Put stores the effective set for the user under the current epoch.
func (c *EffectiveCache) Put(ctx context.Context, userID int64, effective map[string]struct{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.entryKey(ctx, userID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(effective))
	for k := range effective {
		keys = append(keys, k)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate bumps the epoch, discarding every cached effective set.
func (c *EffectiveCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, epochKey).Err()
}

func (c *EffectiveCache) entryKey(ctx context.Context, userID int64) (string, error) {
	epoch, err := c.client.Get(ctx, epochKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("authz:effective:%d:%d", epoch, userID), nil
}
