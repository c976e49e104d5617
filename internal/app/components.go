// Package app wires configuration into the shop assistant's runtime components.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/extract"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/llm"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/monitoring"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/retrieval"
)

// ErrAnswerModelUnavailable is returned when answering is requested without an LLM API key.
var ErrAnswerModelUnavailable = errors.New("answer model unavailable: set LLM_API_KEY or GROQ_API_KEY")

// Components holds the constructed services shared by the API, CLI and MCP server.
type Components struct {
	Config       *config.Config
	Logger       *observability.Logger
	Cache        cache.Client
	Notifier     cache.Notifier
	Embedder     embedding.Embedder
	Vectors      retrieval.VectorAdapter
	Guard        *monitoring.EmbeddingGuard
	Retriever    *retrieval.Retriever
	Extractor    *extract.Extractor
	ContextCache *retrieval.ContextCache
	Pipeline     *retrieval.Pipeline
	// Assistant is nil when no LLM API key is configured.
	Assistant *assistant.Assistant

	pinger  func(ctx context.Context) error
	closers []func() error
}

// New builds all components from cfg. Missing LLM credentials are not an
// error: extraction falls back to the identity filter and Assistant stays nil.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Components, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	c := &Components{Config: cfg, Logger: logger}

	if err := c.initCache(); err != nil {
		return nil, err
	}

	if err := c.initEmbedder(); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.initVectors(ctx); err != nil {
		c.Close()
		return nil, err
	}

	var filterModel, answerModel llm.Completer
	if cfg.LLM.APIKey != "" {
		filterClient, err := llm.NewClient(c.llmConfig(cfg.LLM.FilterModel), logger.WithComponent("llm"))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("create filter model client: %w", err)
		}
		answerClient, err := llm.NewClient(c.llmConfig(cfg.LLM.AnswerModel), logger.WithComponent("llm"))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("create answer model client: %w", err)
		}
		filterModel, answerModel = filterClient, answerClient
	} else {
		logger.Warn().Msg("No LLM API key configured; filters disabled and answers unavailable")
	}

	extractCfg := extract.DefaultConfig()
	extractCfg.Timeout = cfg.Retrieval.FilterTimeout
	extractCfg.Model = cfg.LLM.FilterModel
	if !cfg.Retrieval.CacheFilters {
		extractCfg.CacheTTL = 0
	}
	c.Extractor = extract.NewExtractor(filterModel, c.Cache, logger.WithComponent("extract"), extractCfg)

	retrievalLog := logger.WithComponent("retrieval")
	c.Guard = monitoring.NewEmbeddingGuard(logger.WithComponent("monitoring"), c.Vectors, c.Embedder.Model())
	c.Retriever = retrieval.NewRetriever(c.Embedder, c.Vectors, retrievalLog)

	ctxCacheCfg := retrieval.DefaultContextCacheConfig()
	ctxCacheCfg.Enabled = cfg.Retrieval.CacheContext
	if cfg.Cache.TTL > 0 {
		ctxCacheCfg.TTL = cfg.Cache.TTL
	}
	c.ContextCache = retrieval.NewContextCache(c.Cache, retrievalLog, ctxCacheCfg)

	c.Pipeline = retrieval.NewPipeline(c.Extractor, c.Retriever, c.ContextCache, retrievalLog, retrieval.PipelineConfig{
		TopK: cfg.Retrieval.TopK,
	})

	if answerModel != nil {
		c.Assistant = assistant.New(c.Pipeline, answerModel, logger.WithComponent("assistant"))
	}

	logger.Info().
		Str("cache", cfg.Cache.Driver).
		Str("vector", cfg.Vector.Adapter).
		Str("embedding_provider", cfg.Embedding.Provider).
		Str("embedding_model", c.Embedder.Model()).
		Int("top_k", cfg.Retrieval.TopK).
		Bool("answers", c.Assistant != nil).
		Msg("Components initialized")

	return c, nil
}

// Answer answers query, or returns ErrAnswerModelUnavailable.
func (c *Components) Answer(ctx context.Context, query string) (*assistant.Answer, error) {
	if c.Assistant == nil {
		return nil, ErrAnswerModelUnavailable
	}
	return c.Assistant.Answer(ctx, query)
}

// Syncer returns a catalog syncer writing to the configured index.
func (c *Components) Syncer(reset bool) *ingest.Syncer {
	return ingest.NewSyncer(c.Embedder, c.Vectors, c.Notifier, c.Logger.WithComponent("ingest"), ingest.SyncConfig{
		BatchSize: c.Config.Embedding.BatchSize,
		Workers:   c.Config.Embedding.Workers,
		Reset:     reset,
	})
}

// Ready reports whether the cache and vector index are reachable.
func (c *Components) Ready(ctx context.Context) error {
	if c.pinger != nil {
		if err := c.pinger(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	if _, err := c.Vectors.Count(ctx); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	return nil
}

// Close releases every component in reverse construction order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Components) initCache() error {
	cfg := c.Config.Cache
	switch cfg.Driver {
	case "redis":
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		c.Cache, c.Notifier, c.pinger = client, client, client.Ping
		c.closers = append(c.closers, client.Close)
	default:
		client := cache.NewMemoryClient(cfg.MaxEntries)
		c.Cache, c.Notifier = client, client
		c.closers = append(c.closers, client.Close)
	}
	return nil
}

func (c *Components) initEmbedder() error {
	cfg := c.Config.Embedding
	if cfg.Provider == "mock" {
		c.Embedder = embedding.NewMockClient(cfg.Dimension)
		return nil
	}

	client, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}
	c.Embedder = client
	return nil
}

func (c *Components) initVectors(ctx context.Context) error {
	cfg := c.Config.Vector
	switch cfg.Adapter {
	case "sqlite":
		adapter, err := retrieval.NewSQLiteAdapter(ctx, retrieval.SQLiteConfig{
			Path:      cfg.SQLitePath,
			Dimension: cfg.Dimension,
		})
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}
		c.Vectors = adapter
		c.closers = append(c.closers, adapter.Close)
	default:
		adapter := retrieval.NewMemoryAdapter(retrieval.MemoryConfig{Dimension: cfg.Dimension})
		c.Vectors = adapter
		c.closers = append(c.closers, adapter.Close)
	}
	return nil
}

func (c *Components) llmConfig(model string) llm.Config {
	cfg := c.Config.LLM
	return llm.Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Model:             model,
		Temperature:       cfg.Temperature,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           cfg.Timeout,
	}
}
