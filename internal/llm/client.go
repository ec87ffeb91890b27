// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/observability"
)

// ChatClient sends one system+user exchange and returns the reply text.
type ChatClient interface {
	Chat(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Client handles communication with the chat completion API. Requests are
// never retried automatically.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *observability.Logger
}

// NewClient creates a client from cfg. An empty BaseURL targets OpenAI.
func NewClient(cfg config.LLMConfig, logger *observability.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.ConfigError("API key is not set (API_KEY, OPENAI_API_KEY or OPENROUTER_API_KEY)", nil)
	}
	if cfg.Model == "" {
		return nil, domain.ConfigError("llm.model is required", nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.RequestTimeout,
		logger:  logger.WithOperation("llm"),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Chat implements ChatClient.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", domain.APIError("rate limiter wait", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", domain.APIError("chat completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.APIError("chat completion returned no choices", nil)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("prompt_chars", len(user)).
		Int("completion_tokens", int(resp.Usage.CompletionTokens)).
		Dur("duration", time.Since(start)).
		Msg("Chat completion")

	return resp.Choices[0].Message.Content, nil
}

// String implements fmt.Stringer for logging.
func (c *Client) String() string {
	return fmt.Sprintf("llm.Client{model=%s}", c.model)
}
