package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/utils/request"
)

const (
	defaultAPIEndpoint = "https://api.deepseek.com"
	requestTimeout     = 30 * time.Second
	minContentLength   = 10
)

var ErrEmptyResponse = errors.New("empty response from deepseek")

var _ ai.Completer = (*Client)(nil)

// Client calls the DeepSeek chat/completions API
type Client struct {
	apiKey     string
	endpoint   string
	opts       ai.Options
	httpClient *resty.Client
}

func NewClient(apiKey, endpoint string, opts ai.Options) *Client {
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	def := ai.DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}

	return &Client{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		opts:       opts,
		httpClient: request.New().SetTimeout(requestTimeout),
	}
}

type chatRequest struct {
	Model            string       `json:"model"`
	Messages         []ai.Message `json:"messages"`
	Temperature      float32      `json:"temperature"`
	MaxTokens        int          `json:"max_tokens"`
	FrequencyPenalty float32      `json:"frequency_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements ai.Completer
func (c *Client) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	content, err := c.complete(ctx, messages)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequests.WithLabelValues("deepseek", status).Inc()
	return content, err
}

func (c *Client) complete(ctx context.Context, messages []ai.Message) (string, error) {
	reqBody := chatRequest{
		Model:            c.opts.Model,
		Messages:         messages,
		Temperature:      c.opts.Temperature,
		MaxTokens:        c.opts.MaxTokens,
		FrequencyPenalty: c.opts.FrequencyPenalty,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(c.endpoint + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("api error: status=%d, body=%s", resp.StatusCode(), resp.String())
	}

	var chatResp chatResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("api error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if len(content) < minContentLength {
		return "", fmt.Errorf("api response content too short: %w", ErrEmptyResponse)
	}

	return content, nil
}
