package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, statusCode int, response interface{}) (*httptest.Server, *BinanceDataSource) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		err := json.NewEncoder(w).Encode(response)
		require.NoError(t, err)
	}))

	binanceDS := NewBinanceDataSource()
	binanceDS.client.BaseURL = server.URL
	binanceDS.client.HTTPClient = server.Client()

	return server, binanceDS
}

func TestBinanceDataSource_Name(t *testing.T) {
	ds := NewBinanceDataSource()
	assert.Equal(t, "binance", ds.Name())
}

func TestBinanceDataSource_SolPrice(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		response    interface{}
		expected    float64
		expectError bool
	}{
		{
			name:       "valid response",
			statusCode: http.StatusOK,
			response:   map[string]string{"symbol": "SOLUSDT", "price": "187.42000000"},
			expected:   187.42,
		},
		{
			name:        "invalid number format",
			statusCode:  http.StatusOK,
			response:    map[string]string{"symbol": "SOLUSDT", "price": "invalid"},
			expectError: true,
		},
		{
			name:        "other symbol",
			statusCode:  http.StatusOK,
			response:    map[string]string{"symbol": "BTCUSDT", "price": "1"},
			expectError: true,
		},
		{
			name:        "http 429 rate limit",
			statusCode:  http.StatusTooManyRequests,
			response:    map[string]interface{}{"code": -1003, "msg": "Too many requests"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, ds := setupTestServer(t, tt.statusCode, tt.response)
			defer server.Close()

			price, err := ds.SolPrice(context.Background())
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, price)
		})
	}
}

func TestBinanceDataSource_TokenPrice(t *testing.T) {
	_, err := NewBinanceDataSource().TokenPrice(context.Background(), "Mint111")
	assert.ErrorIs(t, err, ErrUnsupported)
}
