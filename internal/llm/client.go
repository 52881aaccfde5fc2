// Package llm wraps the external completion model behind a small interface
// so pipeline stages can be tested without a live endpoint.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
)

// Completer issues one completion call. Implementations must honor the
// context deadline and return the raw model text.
type Completer interface {
	Complete(ctx context.Context, prompt string, spec CallSpec) (string, error)
}

// CallSpec carries the per-call generation parameters. Different pipeline
// stages use different temperatures, token budgets, and timeouts.
type CallSpec struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	model  llms.Model
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a completion client from provider configuration.
func NewClient(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible servers accept any token but the SDK
		// requires one.
		token = "not-needed"
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	c := &Client{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends the prompt and returns the raw model reply.
func (c *Client) Complete(ctx context.Context, prompt string, spec CallSpec) (string, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(spec.Temperature),
		llms.WithMaxTokens(spec.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}

	c.logger.Debug("completion call",
		zap.Int("prompt_len", len(prompt)),
		zap.Int("reply_len", len(reply)),
		zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// Probe issues a minimal completion to verify the endpoint is reachable.
// Used at startup and by the status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Complete(ctx, "Reply with OK.", CallSpec{
		Temperature: 0,
		MaxTokens:   5,
		Timeout:     10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("provider probe failed: %w", err)
	}
	return nil
}
