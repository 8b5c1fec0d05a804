package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"lead-enricher/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache caches the resolved configuration per tenant and tier. A cached
// nil config records that no configuration is active.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type cacheEntry struct {
	Config *models.EnrichmentConfig `json:"config"`
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(tenantID string, tier models.Tier) string {
	return fmt.Sprintf("enrichment:config:%s:%s", tenantID, tier)
}

func (c *RedisCache) Get(ctx context.Context, tenantID string, tier models.Tier) (*models.EnrichmentConfig, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(tenantID, tier)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, false, fmt.Errorf("decode cached config: %w", err)
	}
	return entry.Config, true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID string, tier models.Tier, cfg *models.EnrichmentConfig) error {
	b, err := json.Marshal(cacheEntry{Config: cfg})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(tenantID, tier), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID string, tier models.Tier) error {
	return c.client.Del(ctx, cacheKey(tenantID, tier)).Err()
}
