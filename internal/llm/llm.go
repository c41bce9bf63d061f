package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"pricelens/internal/config"
)

// ErrNoChoices is returned when the completion API answers without any choice.
var ErrNoChoices = errors.New("chat completion returned no choices")

// Completer is the abstraction used by the extract layer: one prompt in,
// the model's raw text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Client implements Completer against an OpenAI-compatible Chat
// Completions endpoint (Groq by default). It is created once at startup
// and shared read-only across requests.
type Client struct {
	api   openai.Client
	model string
}

// NewClientFromConfig constructs the process-wide client. The API key is
// passed through as-is; an empty key is only rejected by the upstream.
func NewClientFromConfig(cfg config.LLMConfig) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.TimeoutMs > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutMs)*time.Millisecond))
	}

	return &Client{
		api:   openai.NewClient(opts...),
		model: cfg.Model,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as the single user message and returns the
// content of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with model %s failed: %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}
