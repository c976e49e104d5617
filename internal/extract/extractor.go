// Package extract turns a free-text Vietnamese shopping query into a
// catalog.FilterSpec using a language model. Extraction never fails outward:
// any error degrades to the identity filter so retrieval still proceeds.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/llm"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// SystemPrompt instructs the model to emit the filter schema as bare JSON.
const SystemPrompt = `You are a Vietnamese query analyzer and translator.

Input: a Vietnamese sentence describing phone search criteria.
Output: a JSON object in English containing fields:
- price_min (number, unit: VND, null if not mentioned)
- price_max (number, unit: VND, null if not mentioned)
- colors (array of English color strings, e.g. ["black", "white"], [] if none)
- memories (array of storage strings like "128GB", "256GB", [] if none)
- ram (array of RAM strings like "8GB", "12GB", [] if none)
- status (string, e.g. "AVAILABLE" or null if not mentioned)
- attributes (array of keywords/features like "OLED", "5G", [] if none)

All values must be translated to English if originally in Vietnamese.
Only return valid JSON. Do NOT add explanations or comments.

Example:
Input: "Điện thoại từ 10 đến 20 triệu, màu đen, RAM 8GB và 12GB, hàng mới, hỗ trợ 5G"
Output:
{
  "price_min": 10000000,
  "price_max": 20000000,
  "colors": ["black"],
  "memories": [],
  "ram": ["8GB", "12GB"],
  "status": "AVAILABLE",
  "attributes": ["5G"]
}`

// Extractor wraps the filter-extraction model call.
type Extractor struct {
	completer llm.Completer
	cache     cache.Client
	logger    *observability.Logger
	config    Config
}

// Config configures an Extractor.
type Config struct {
	// Timeout bounds one model round trip. On expiry the identity filter is used.
	Timeout time.Duration
	// CacheTTL is how long parsed filters are kept per query. Zero disables caching.
	CacheTTL time.Duration
	// Model names the extraction model; it is part of the cache key.
	Model string
}

// DefaultConfig returns the default extractor configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:  8 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}

// NewExtractor creates an Extractor. cacheClient may be nil.
func NewExtractor(completer llm.Completer, cacheClient cache.Client, logger *observability.Logger, cfg Config) *Extractor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Extractor{
		completer: completer,
		cache:     cacheClient,
		logger:    logger,
		config:    cfg,
	}
}

// Extract returns the filters stated in query and whether they are
// authoritative. It never returns an error: model, transport, timeout and
// parse failures, and a panicking completer, all yield the identity filter
// with ok set to false. Callers must not cache anything derived from a
// degraded result.
func (e *Extractor) Extract(ctx context.Context, query string) (spec catalog.FilterSpec, ok bool) {
	log := e.logger.WithContext(ctx).WithOperation("extract_filters")

	query = strings.TrimSpace(query)
	if query == "" || e.completer == nil {
		return catalog.IdentityFilter(), true
	}

	key := cache.HashKey("filters", e.config.Model, query)
	if cached, hit := e.cached(ctx, key); hit {
		log.Debug().Strs("filters", cached.Summary()).Msg("Filter cache hit")
		return cached, true
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("Filter extraction panicked, using identity filter")
			spec, ok = catalog.IdentityFilter(), false
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.completer.Complete(callCtx, SystemPrompt, query)
	if err != nil {
		evt := log.Warn().Err(err).Dur("latency", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			evt = evt.Bool("timeout", true)
		}
		evt.Msg("Filter extraction failed, using identity filter")
		return catalog.IdentityFilter(), false
	}

	spec, err = ParseFilterSpec(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw_output", raw).Msg("Unparsable filter output, using identity filter")
		return catalog.IdentityFilter(), false
	}

	log.Debug().
		Strs("filters", spec.Summary()).
		Dur("latency", time.Since(start)).
		Msg("Filters extracted")

	e.store(ctx, key, spec)
	return spec, true
}

func (e *Extractor) cached(ctx context.Context, key string) (catalog.FilterSpec, bool) {
	if e.cache == nil || e.config.CacheTTL <= 0 {
		return catalog.FilterSpec{}, false
	}

	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Debug().Err(err).Str("key", key).Msg("Cache get error")
		}
		return catalog.FilterSpec{}, false
	}

	var spec catalog.FilterSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached filters")
		return catalog.FilterSpec{}, false
	}
	return spec.Normalize(), true
}

func (e *Extractor) store(ctx context.Context, key string, spec catalog.FilterSpec) {
	if e.cache == nil || e.config.CacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.config.CacheTTL); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache filters")
	}
}
