// Package config provides unified configuration loading for the shop assistant.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the shop assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Vector        VectorConfig        `yaml:"vector"`
	Cache         CacheConfig         `yaml:"cache"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	LLM           LLMConfig           `yaml:"llm"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// CatalogConfig holds the relational product source and its CSV export location.
type CatalogConfig struct {
	Driver  string `yaml:"driver"` // sqlite or postgres
	DSN     string `yaml:"dsn"`
	CSVPath string `yaml:"csv_path"`
}

// VectorConfig holds vector index settings.
type VectorConfig struct {
	Adapter    string `yaml:"adapter"` // memory or sqlite
	SQLitePath string `yaml:"sqlite_path"`
	Dimension  int    `yaml:"dimension"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // openai or mock
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LLMConfig holds chat model settings for filter extraction and answer generation.
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	FilterModel       string        `yaml:"filter_model"`
	AnswerModel       string        `yaml:"answer_model"`
	Temperature       float64       `yaml:"temperature"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK          int           `yaml:"top_k"`
	FilterTimeout time.Duration `yaml:"filter_timeout"`
	CacheFilters  bool          `yaml:"cache_filters"`
	CacheContext  bool          `yaml:"cache_context"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Catalog: CatalogConfig{
			Driver:  "sqlite",
			DSN:     "/tmp/shop-assistant-catalog.db",
			CSVPath: "product_data.csv",
		},
		Vector: VectorConfig{
			Adapter:    "sqlite",
			SQLitePath: "/tmp/shop-assistant-vectors.db",
			Dimension:  384,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "sentence-transformers/paraphrase-multilingual-minilm-l12-v2",
			Dimension: 384,
			BatchSize: 64,
			Workers:   4,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:           "https://api.groq.com/openai/v1",
			FilterModel:       "llama3-70b-8192",
			AnswerModel:       "llama3-70b-8192",
			Temperature:       0.0,
			MaxRetries:        2,
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:          10,
			FilterTimeout: 8 * time.Second,
			CacheFilters:  true,
			CacheContext:  false,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "shop-assistant",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Catalog.Driver != "sqlite" && c.Catalog.Driver != "postgres" {
		return fmt.Errorf("invalid catalog driver: %s", c.Catalog.Driver)
	}

	if c.Vector.Adapter != "memory" && c.Vector.Adapter != "sqlite" {
		return fmt.Errorf("invalid vector adapter: %s", c.Vector.Adapter)
	}

	if c.Vector.Adapter == "sqlite" && c.Vector.SQLitePath == "" {
		return fmt.Errorf("vector sqlite_path is required for the sqlite adapter")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Embedding.Provider != "openai" && c.Embedding.Provider != "mock" {
		return fmt.Errorf("invalid embedding provider: %s", c.Embedding.Provider)
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("top_k must be between 1 and 50")
	}

	if c.Retrieval.FilterTimeout <= 0 {
		return fmt.Errorf("filter_timeout must be positive")
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Catalog.Driver = "sqlite"
			cfg.Catalog.DSN = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Catalog.Driver = "postgres"
			cfg.Catalog.DSN = v
		}
	}

	if v := os.Getenv("CATALOG_CSV_PATH"); v != "" {
		cfg.Catalog.CSVPath = v
	}

	if v := os.Getenv("VECTOR_ADAPTER"); v != "" {
		cfg.Vector.Adapter = v
	}

	if v := os.Getenv("VECTOR_SQLITE_PATH"); v != "" {
		cfg.Vector.SQLitePath = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_FILTER_MODEL"); v != "" {
		cfg.LLM.FilterModel = v
	}

	if v := os.Getenv("LLM_ANSWER_MODEL"); v != "" {
		cfg.LLM.AnswerModel = v
	}

	if v := os.Getenv("RETRIEVAL_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = k
		}
	}

	if v := os.Getenv("RETRIEVAL_FILTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retrieval.FilterTimeout = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) || configPath == "" {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
