package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// errorPrefix marks a failed completion. The adapter never returns an error
// value: callers always get text, and check IsErrorReply to detect failure.
const errorPrefix = "Error:"

const (
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// Request describes one completion call.
type Request struct {
	Prompt        string
	SystemMessage string
	MaxTokens     int
	Temperature   float32
}

// Completer produces text for a prompt. Implementations signal failure by
// returning an "Error:"-prefixed string instead of an error value.
type Completer interface {
	Complete(ctx context.Context, req Request) string
}

// Client calls an OpenAI-compatible completion endpoint (Groq by default).
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewClient builds a client from config. A missing API key is tolerated:
// every completion then degrades to the error marker.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	c := &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.temperature <= 0 {
		c.temperature = defaultTemperature
	}
	if cfg.APIKey == "" {
		logger.Warn("LLM API key not configured; completions will be degraded")
		return c
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

// Complete performs a synchronous chat completion and returns the trimmed
// generated text, or an "Error:"-prefixed description on failure.
func (c *Client) Complete(ctx context.Context, req Request) string {
	if c.api == nil {
		return errorPrefix + " LLM API key not configured."
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		c.logger.Error("LLM completion failed", zap.String("model", c.model), zap.Error(err))
		return errorPrefix + " could not get response from LLM: " + err.Error()
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("LLM returned no choices", zap.String("model", c.model))
		return errorPrefix + " LLM returned an empty response."
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// IsErrorReply reports whether a completion result is the failure marker.
func IsErrorReply(reply string) bool {
	return strings.HasPrefix(reply, errorPrefix)
}
