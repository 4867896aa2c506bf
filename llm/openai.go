package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quarrylabs/quarry/schema"
)

// DefaultTimeout bounds a single model call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the model name.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// NewOpenAIClient creates a client for the given endpoint. An empty apiKey
// falls back to OPENAI_API_KEY; an empty baseURL targets the public API,
// which also makes self-hosted OpenAI-compatible servers reachable by
// overriding it.
func NewOpenAIClient(baseURL, apiKey string, opts ...OpenAIOption) *OpenAIClient {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var client *openai.Client
	if baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		client = openai.NewClientWithConfig(cfg)
	} else {
		client = openai.NewClient(apiKey)
	}

	c := &OpenAIClient{
		client:  client,
		model:   openai.GPT4oMini,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete generates a completion for the given prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Warn("completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("openai completion failed: %w: %w", schema.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// StructuredComplete generates a completion constrained to JSON output and
// parses it into out.
func (c *OpenAIClient) StructuredComplete(ctx context.Context, prompt string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Warn("structured completion failed", "model", c.model, "error", err)
		return fmt.Errorf("openai structured completion failed: %w: %w", schema.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openai returned no choices")
	}

	raw := ExtractJSON(resp.Choices[0].Message.Content)
	if raw == "" {
		return fmt.Errorf("%w: no JSON in reply", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return nil
}

// Ensure OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)
