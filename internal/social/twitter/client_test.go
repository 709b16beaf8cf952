package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func TestClient_PostThread(t *testing.T) {
	var (
		mu       sync.Mutex
		received []createRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		received = append(received, req)
		id := len(received)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"id":"%d","text":%q}}`, 100+id, req.Text)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BearerToken: "user-token", Interval: time.Millisecond}, testLogger)
	ids, err := client.PostThread(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "103"}, ids)

	require.Len(t, received, 3)
	assert.Nil(t, received[0].Reply)
	require.NotNil(t, received[1].Reply)
	assert.Equal(t, "101", received[1].Reply.InReplyToTweetID)
	assert.Equal(t, "102", received[2].Reply.InReplyToTweetID)
	assert.Equal(t, "three", received[2].Text)
}

func TestClient_PostErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"title":"Forbidden","detail":"duplicate content"}`},
		{name: "errors array", status: http.StatusCreated, body: `{"errors":[{"message":"bad"}]}`},
		{name: "missing id", status: http.StatusCreated, body: `{"data":{}}`},
		{name: "invalid json", status: http.StatusCreated, body: `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Options{BaseURL: server.URL, BearerToken: "token"}, testLogger)
			_, err := client.Post(context.Background(), "hello", "")
			assert.Error(t, err)
		})
	}
}

func TestClient_PostThreadStopsOnError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"title":"Forbidden"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BearerToken: "token", Interval: time.Millisecond}, testLogger)
	ids, err := client.PostThread(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2/3")
	assert.Equal(t, []string{"1"}, ids)
	assert.Equal(t, 2, calls)
}

func TestClient_DryRun(t *testing.T) {
	client := NewClient(Options{DryRun: true, Interval: time.Millisecond}, testLogger)
	ids, err := client.PostThread(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dry-run-1", "dry-run-2"}, ids)
}

func TestClient_MissingToken(t *testing.T) {
	client := NewClient(Options{}, testLogger)
	_, err := client.Post(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestClient_PostServerErrorNotRepeated(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"title":"Service Unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BearerToken: "token"}, testLogger)
	client.httpClient.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(time.Millisecond)

	_, err := client.Post(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_PostRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"title":"Too Many Requests"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"7"}}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BearerToken: "token"}, testLogger)
	client.httpClient.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(time.Millisecond)

	id, err := client.Post(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, int32(2), calls.Load())
}
