package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tabi-api/domain"
)

type backend interface {
	Role(ctx context.Context, roomID, userID string) (domain.Role, error)
	EnsureMember(ctx context.Context, roomID, userID string, role domain.Role) error
}

// roleMiss marks a cached negative lookup.
const roleMiss = "-"

// RoleCache wraps a membership backend with a short-lived Redis cache for
// role lookups. It serves the UI role-resolution path, where a slightly
// stale answer only delays a write affordance; session issuance reads the
// backend directly because a grant must reflect membership no older than
// the request.
type RoleCache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewRoleCache creates a caching membership wrapper using the provided
// Redis client and TTL.
func NewRoleCache(base backend, client *redis.Client, ttl time.Duration) *RoleCache {
	if base == nil {
		panic("storage.NewRoleCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RoleCache{base: base, redis: client, ttl: ttl}
}

func roleKey(roomID, userID string) string {
	return "role:" + roomID + ":" + userID
}

func (c *RoleCache) Role(ctx context.Context, roomID, userID string) (domain.Role, error) {
	if role, miss, ok := c.loadRole(ctx, roomID, userID); ok {
		if miss {
			return "", ErrNotFound
		}
		return role, nil
	}

	role, err := c.base.Role(ctx, roomID, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.storeRole(ctx, roomID, userID, roleMiss)
		return "", err
	case err != nil:
		return "", err
	}
	c.storeRole(ctx, roomID, userID, string(role))
	return role, nil
}

// EnsureMember writes through to the backend and drops the cached entry so
// the next lookup sees the new row.
func (c *RoleCache) EnsureMember(ctx context.Context, roomID, userID string, role domain.Role) error {
	if err := c.base.EnsureMember(ctx, roomID, userID, role); err != nil {
		return err
	}
	if c.redis != nil {
		_ = c.redis.Del(ctx, roleKey(roomID, userID)).Err()
	}
	return nil
}

func (c *RoleCache) loadRole(ctx context.Context, roomID, userID string) (role domain.Role, miss, ok bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false, false
	}
	val, err := c.redis.Get(ctx, roleKey(roomID, userID)).Result()
	if err != nil {
		return "", false, false
	}
	if val == roleMiss {
		return "", true, true
	}
	return domain.Role(val), false, true
}

func (c *RoleCache) storeRole(ctx context.Context, roomID, userID, val string) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	_ = c.redis.Set(ctx, roleKey(roomID, userID), val, c.ttl).Err()
}
