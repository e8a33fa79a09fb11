package cache

import (
	"context"
	"fmt"
	"time"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// SetNX stores value under key only if the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// DeliveryGuard implements dispatch.DeliveryGuard with one expiring Redis key
// per notification item. The first Claim wins until the key expires.
type DeliveryGuard struct {
	cache CacheClient
	ttl   time.Duration
	now   func() time.Time
}

func NewDeliveryGuard(cache CacheClient, ttl time.Duration) *DeliveryGuard {
	return &DeliveryGuard{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (g *DeliveryGuard) Claim(ctx context.Context, userID, itemID string) (bool, error) {
	claimed, err := g.cache.SetNX(ctx, DeliveryKey(userID, itemID), g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification %s/%s: %w", userID, itemID, err)
	}
	return claimed, nil
}

func (g *DeliveryGuard) Release(ctx context.Context, userID, itemID string) error {
	return g.cache.Del(ctx, DeliveryKey(userID, itemID))
}

// DeliveryKey is the Redis key recording that an item has been pushed.
func DeliveryKey(userID, itemID string) string {
	return fmt.Sprintf("boomerang:push:%s:%s", userID, itemID)
}
