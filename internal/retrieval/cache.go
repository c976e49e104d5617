package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// ContextCache caches pipeline results per query. Entries are dropped as a
// whole when the catalog is re-synced.
type ContextCache struct {
	client cache.Client
	logger *observability.Logger
	config ContextCacheConfig
}

// ContextCacheConfig configures the context cache.
type ContextCacheConfig struct {
	// TTL is how long a result stays cached
	TTL time.Duration
	// KeyPrefix is the cache key prefix
	KeyPrefix string
	// Enabled controls whether caching is active
	Enabled bool
}

// DefaultContextCacheConfig returns default cache configuration.
func DefaultContextCacheConfig() ContextCacheConfig {
	return ContextCacheConfig{
		TTL:       5 * time.Minute,
		KeyPrefix: "ctx:",
		Enabled:   true,
	}
}

// NewContextCache creates a new context cache.
func NewContextCache(client cache.Client, logger *observability.Logger, config ContextCacheConfig) *ContextCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ctx:"
	}
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &ContextCache{
		client: client,
		logger: logger,
		config: config,
	}
}

// CacheKey generates a cache key for a query and result size.
func (c *ContextCache) CacheKey(query string, topK int) string {
	return c.config.KeyPrefix + cache.HashKey("q", query, strconv.Itoa(topK))
}

type cachedResult struct {
	Result   *Result   `json:"result"`
	CachedAt time.Time `json:"cached_at"`
}

// Get retrieves a cached result if available.
func (c *ContextCache) Get(ctx context.Context, query string, topK int) (*Result, bool) {
	if !c.config.Enabled || c.client == nil {
		return nil, false
	}

	key := c.CacheKey(query, topK)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		return nil, false
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil || cached.Result == nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached result")
		return nil, false
	}

	c.logger.Debug().Str("key", key).Msg("Cache hit")
	return cached.Result, true
}

// Set caches a pipeline result.
func (c *ContextCache) Set(ctx context.Context, query string, topK int, result *Result) error {
	if !c.config.Enabled || c.client == nil || result == nil {
		return nil
	}

	key := c.CacheKey(query, topK)
	data, err := json.Marshal(cachedResult{Result: result, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.TTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache result")
		return err
	}

	c.logger.Debug().Str("key", key).Dur("ttl", c.config.TTL).Msg("Cached result")
	return nil
}

// Invalidate drops every cached result.
func (c *ContextCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	c.logger.Info().Msg("Invalidating context cache")
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}

// WatchCatalogSync invalidates the cache whenever a catalog-synced
// notification arrives, until ctx is done.
func (c *ContextCache) WatchCatalogSync(ctx context.Context, notifier cache.Notifier) error {
	ch, unsubscribe, err := notifier.Subscribe(ctx, cache.ChannelCatalogSynced)
	if err != nil {
		return err
	}

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := c.Invalidate(ctx); err != nil {
					c.logger.Error().Err(err).Msg("Failed to invalidate cache on catalog sync")
				}
			}
		}
	}()

	return nil
}
