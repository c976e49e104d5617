// Package llm provides the chat-completion client used for filter extraction
// and answer generation. Any OpenAI-compatible endpoint works (Groq, OpenRouter).
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("llm: API key is required")
	// ErrEmptyCompletion is returned when the model answers with no choices or blank content.
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// Completer turns a system and user message into a single completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Config holds chat client configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float64
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client calls a chat-completion endpoint with client-side rate limiting.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	limiter     *rate.Limiter
	logger      *observability.Logger
}

// NewClient creates a new chat client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "llama3-70b-8192"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithHeader("HTTP-Referer", "https://spherical.ai"),
		option.WithHeader("X-Title", "Shop Assistant"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Complete sends one system+user exchange and returns the trimmed reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.WithContext(ctx).Debug().
		Str("model", c.model).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("chat completion")

	return content, nil
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

var _ Completer = (*Client)(nil)
