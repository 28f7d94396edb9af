package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Nico-Draagron/clima-negocios/internal/config"
	"github.com/Nico-Draagron/clima-negocios/internal/metrics"
)

// Key prefixes. Keeping them in one place avoids collisions between the
// report cache and the retrain guard flags.
const (
	prefixCorrelation  = "correlation"
	prefixRetrainGuard = "retrain_guard"
)

// Cache is a thin JSON-over-Redis key/value store with TTLs.
type Cache struct {
	client *redis.Client
}

// New creates a cache backed by the Redis instance from config.
func New(cfg config.RedisConfig) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// NewFromClient wraps an existing Redis client. Used by tests.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetJSON fetches key into dest, reporting whether it was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}

	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON stores value under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CorrelationKey builds the cache key for a tenant's correlation report.
func CorrelationKey(tenantID int64, windowDays int) string {
	return fmt.Sprintf("%s:%d:%d", prefixCorrelation, tenantID, windowDays)
}

// AcquireRetrainGuard sets the per-tenant retrain flag if absent,
// reporting whether this caller won it. The flag expires on its own so a
// crashed worker cannot wedge retraining forever.
func (c *Cache) AcquireRetrainGuard(ctx context.Context, tenantID int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%d", prefixRetrainGuard, tenantID)
	ok, err := c.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire retrain guard for tenant %d: %w", tenantID, err)
	}
	return ok, nil
}

// ReleaseRetrainGuard clears the per-tenant retrain flag early.
func (c *Cache) ReleaseRetrainGuard(ctx context.Context, tenantID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("%s:%d", prefixRetrainGuard, tenantID)).Err()
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
