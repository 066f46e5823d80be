package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "catalog:services:"

// Cache stores per-business service lists in Redis as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client or non-positive TTL yields
// a cache that never hits.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func cacheKey(businessID string) string {
	return cachePrefix + strings.TrimSpace(businessID)
}

// Get loads the cached services for businessID. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, businessID string) ([]Service, bool, error) {
	if !c.enabled() || strings.TrimSpace(businessID) == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(businessID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var services []Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, false, err
	}
	return services, true, nil
}

// Set stores services for businessID with the configured TTL.
func (c *Cache) Set(ctx context.Context, businessID string, services []Service) error {
	if !c.enabled() || strings.TrimSpace(businessID) == "" {
		return nil
	}
	if services == nil {
		services = []Service{}
	}
	data, err := json.Marshal(services)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(businessID), data, c.ttl).Err()
}

// Invalidate drops the cached list for businessID.
func (c *Cache) Invalidate(ctx context.Context, businessID string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, cacheKey(businessID)).Err()
}
