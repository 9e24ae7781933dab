package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adc-ontology-enricher/internal/domain"
)

const cacheKeyPrefix = "adc-enrich"

// CacheClient wraps a Redis client holding registry responses across runs
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: ttl,
	}, nil
}

// CachedLookup represents a cached registry lookup with metadata
type CachedLookup struct {
	Data      *LookupResult `json:"data"`
	CachedAt  time.Time     `json:"cached_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// GetLookup retrieves a cached lookup. A cached miss is returned as a
// result with a nil molecule.
func (c *CacheClient) GetLookup(ctx context.Context, query string, opts LookupOptions) (*LookupResult, bool, error) {
	key := c.lookupKey(query, opts)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get lookup cache: %w", err)
	}

	var cached CachedLookup
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Data == nil {
		// corrupted entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetLookup caches a lookup result
func (c *CacheClient) SetLookup(ctx context.Context, query string, opts LookupOptions, data *LookupResult, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := CachedLookup{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal lookup cache data: %w", err)
	}

	return c.redis.Set(ctx, c.lookupKey(query, opts), jsonData, ttl).Err()
}

// InvalidatePattern removes every key matching pattern
func (c *CacheClient) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// FlushLookups removes every cached registry lookup
func (c *CacheClient) FlushLookups(ctx context.Context) error {
	return c.InvalidatePattern(ctx, cacheKeyPrefix+":lookup:*")
}

// Ping checks the connection
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func (c *CacheClient) lookupKey(query string, opts LookupOptions) string {
	data := fmt.Sprintf("%s:%s:%t", strings.ToUpper(strings.TrimSpace(query)), opts.MoleculeType, opts.WithMechanisms)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s:lookup:%x", cacheKeyPrefix, hash[:8])
}
