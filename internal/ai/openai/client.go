package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
)

// 少于该长度的回复视为失败
const minContentLength = 10

var ErrEmptyResponse = errors.New("empty response from openai")

var _ ai.Completer = (*Client)(nil)

// Client talks to any OpenAI compatible chat endpoint
type Client struct {
	client *openai.Client
	opts   ai.Options
}

// NewClient uses baseURL when set, e.g. https://api.deepseek.com/v1.
func NewClient(apiKey, baseURL string, opts ai.Options) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4o // 默认使用GPT-4o
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// Complete implements ai.Completer
func (c *Client) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            c.opts.Model,
		Messages:         msgs,
		Temperature:      c.opts.Temperature,
		MaxTokens:        c.opts.MaxTokens,
		FrequencyPenalty: c.opts.FrequencyPenalty,
	})
	if err != nil {
		metrics.LLMRequests.WithLabelValues("openai", "error").Inc()
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequests.WithLabelValues("openai", "error").Inc()
		return "", fmt.Errorf("no response from openai")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if len(content) < minContentLength {
		metrics.LLMRequests.WithLabelValues("openai", "error").Inc()
		return "", fmt.Errorf("api response content too short: %w", ErrEmptyResponse)
	}

	metrics.LLMRequests.WithLabelValues("openai", "ok").Inc()
	return content, nil
}
