package ai

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a chat completion and returns the first choice.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Options 生成参数
type Options struct {
	Model            string
	Temperature      float32
	MaxTokens        int
	FrequencyPenalty float32
}

// DefaultOptions matches the deepseek-chat settings used for thread writing.
func DefaultOptions() Options {
	return Options{
		Model:            "deepseek-chat",
		Temperature:      0.7,
		MaxTokens:        2000,
		FrequencyPenalty: 0.5,
	}
}
