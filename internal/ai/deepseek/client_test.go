package deepseek

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
)

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  a complete answer  "}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, ai.DefaultOptions())
	content, err := client.Complete(context.Background(), []ai.Message{
		{Role: ai.RoleSystem, Content: "system"},
		{Role: ai.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a complete answer", content)

	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, float32(0.7), got.Temperature)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, float32(0.5), got.FrequencyPenalty)
	assert.Len(t, got.Messages, 2)
}

func TestClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"quota"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "too short", status: http.StatusOK, body: `{"choices":[{"message":{"content":"ok"}}]}`},
		{name: "invalid json", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("test-key", server.URL, ai.Options{})
			_, err := client.Complete(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
			assert.Error(t, err)
		})
	}
}

func TestClient_Live(t *testing.T) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if testing.Short() || apiKey == "" {
		t.Skip("DEEPSEEK_API_KEY not set")
	}

	client := NewClient(apiKey, "", ai.DefaultOptions())
	content, err := client.Complete(context.Background(), []ai.Message{
		{Role: ai.RoleUser, Content: "Reply with one sentence about Solana."},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}
