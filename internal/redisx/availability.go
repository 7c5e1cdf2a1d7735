package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache holds the read-only availability view. Entries are
// advisory; the booking transaction never reads them.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl}
}

// Get decodes the cached view into out. It reports false on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, resourceID, date string, out any) (bool, error) {
	key, err := c.key(ctx, resourceID, date)
	if err != nil {
		return false, err
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode cached availability: %w", err)
	}
	return true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, resourceID, date string, v any) error {
	key, err := c.key(ctx, resourceID, date)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// Invalidate drops every cached date of the resource by bumping its version.
func (c *AvailabilityCache) Invalidate(ctx context.Context, resourceID string) error {
	vk := fmt.Sprintf(KeyAvailabilityVersion, resourceID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, vk)
	pipe.Expire(ctx, vk, TTLAvailabilityVersion)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *AvailabilityCache) key(ctx context.Context, resourceID, date string) (string, error) {
	v, err := c.rdb.Get(ctx, fmt.Sprintf(KeyAvailabilityVersion, resourceID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(KeyAvailability, resourceID, v, date), nil
}
