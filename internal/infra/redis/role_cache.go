package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
)

const roleCacheKeyPrefix = "bioarchive:roles:user:"

// RoleCache caches resolved effective role sets per user. Role and group
// membership changes invalidate the affected users, so a stale entry can
// only survive for the TTL after a write path misses an invalidation.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache creates a new RoleCache.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleCache{client: client, ttl: ttl}
}

// Get returns the cached effective role set for a user. The second
// return value is false on a miss.
func (c *RoleCache) Get(ctx context.Context, userID shared.ID) (security.RoleSet, bool, error) {
	data, err := c.client.Get(ctx, roleCacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read role cache: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, fmt.Errorf("failed to decode role cache entry: %w", err)
	}

	set := security.NewRoleSet()
	for _, s := range ids {
		id, err := shared.IDFromString(s)
		if err != nil {
			return nil, false, fmt.Errorf("invalid role id in cache: %w", err)
		}
		set.Add(id)
	}
	return set, true, nil
}

// Set stores a user's effective role set.
func (c *RoleCache) Set(ctx context.Context, userID shared.ID, roles security.RoleSet) error {
	ids := roles.IDs()
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, id.String())
	}

	data, err := json.Marshal(strs)
	if err != nil {
		return fmt.Errorf("failed to encode role cache entry: %w", err)
	}

	if err := c.client.Set(ctx, roleCacheKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write role cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached role sets of the given users.
func (c *RoleCache) Invalidate(ctx context.Context, userIDs ...shared.ID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, roleCacheKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate role cache: %w", err)
	}
	return nil
}

func roleCacheKey(userID shared.ID) string {
	return roleCacheKeyPrefix + userID.String()
}
