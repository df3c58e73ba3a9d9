package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solana-scanner/internal/types"
)

// CacheService provides JSON caching for classifications and wallet summaries
type CacheService struct {
	redis          *RedisCache
	classification time.Duration
	summary        time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, classificationTTL, summaryTTL time.Duration) *CacheService {
	return &CacheService{
		redis:          redis,
		classification: classificationTTL,
		summary:        summaryTTL,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyClassification is for resolver verdicts
	CacheKeyClassification CacheKeyType = "classification"
	// CacheKeySummary is for scraped wallet summaries
	CacheKeySummary CacheKeyType = "summary"
)

// GenerateCacheKey generates a cache key for a given type and parameters.
// Format: <type>:<param1>:<param2>:...
// Parameters keep their case: base58 addresses are case-sensitive.
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := append([]string{string(keyType)}, params...)
	return strings.Join(parts, ":")
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it into dest.
// A miss returns false with no error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// CachedClassification is a cached resolver verdict
type CachedClassification struct {
	Classification *types.AddressClassification `json:"classification"`
	CachedAt       time.Time                    `json:"cachedAt"`
}

// CachedSummary is a cached wallet summary
type CachedSummary struct {
	Summary  *types.WalletTradeSummary `json:"summary"`
	CachedAt time.Time                 `json:"cachedAt"`
}

// GetClassification returns the cached verdict for address, or nil on a miss
func (c *CacheService) GetClassification(ctx context.Context, address string) (*CachedClassification, error) {
	var cached CachedClassification
	found, err := c.Get(ctx, c.GenerateCacheKey(CacheKeyClassification, address), &cached)
	if err != nil || !found || cached.Classification == nil {
		return nil, err
	}
	return &cached, nil
}

// SetClassification caches a verdict
func (c *CacheService) SetClassification(ctx context.Context, classification *types.AddressClassification) error {
	return c.SetWithTTL(ctx, c.GenerateCacheKey(CacheKeyClassification, classification.Address),
		&CachedClassification{Classification: classification, CachedAt: time.Now().UTC()}, c.classification)
}

// GetSummary returns the cached summary for address, or nil on a miss
func (c *CacheService) GetSummary(ctx context.Context, address string) (*CachedSummary, error) {
	var cached CachedSummary
	found, err := c.Get(ctx, c.GenerateCacheKey(CacheKeySummary, address), &cached)
	if err != nil || !found || cached.Summary == nil {
		return nil, err
	}
	return &cached, nil
}

// SetSummary caches a wallet summary
func (c *CacheService) SetSummary(ctx context.Context, summary *types.WalletTradeSummary) error {
	return c.SetWithTTL(ctx, c.GenerateCacheKey(CacheKeySummary, summary.Address),
		&CachedSummary{Summary: summary, CachedAt: time.Now().UTC()}, c.summary)
}

// InvalidateAddress removes every cache entry for an address
func (c *CacheService) InvalidateAddress(ctx context.Context, address string) error {
	return c.Invalidate(ctx,
		c.GenerateCacheKey(CacheKeyClassification, address),
		c.GenerateCacheKey(CacheKeySummary, address),
	)
}
