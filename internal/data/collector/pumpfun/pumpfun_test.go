package pumpfun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinJSON = `{
	"mint": "Mint111",
	"name": "Test Coin",
	"symbol": "TEST",
	"creator": "Creator111",
	"created_timestamp": 1700000000000,
	"raydium_pool": null,
	"total_supply": 1000000000000000,
	"usd_market_cap": 25000,
	"complete": false
}`

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *PumpFunDataSource) {
	server := httptest.NewServer(handler)

	ds := NewPumpFunDataSource(server.URL, server.URL)
	ds.httpClient = resty.NewWithClient(server.Client())

	return server, ds
}

func TestPumpFunDataSource_Name(t *testing.T) {
	assert.Equal(t, "pumpfun", NewPumpFunDataSource("", "").Name())
}

func TestPumpFunDataSource_Coin(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectError error
	}{
		{name: "valid response", status: http.StatusOK, body: coinJSON},
		{name: "not found", status: http.StatusNotFound, body: `{}`, expectError: ErrCoinNotFound},
		{name: "empty coin", status: http.StatusOK, body: `{}`, expectError: ErrCoinNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/coins/Mint111", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			defer server.Close()

			coin, err := ds.Coin(context.Background(), "Mint111")
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Test Coin", coin.Name)
			assert.Equal(t, "Creator111", coin.Creator)
			assert.Nil(t, coin.RaydiumPool)
			assert.Equal(t, int64(1700000000), coin.CreatedAt().Unix())
		})
	}
}

func TestPumpFunDataSource_TokenPrice(t *testing.T) {
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(coinJSON))
	})
	defer server.Close()

	price, err := ds.TokenPrice(context.Background(), "Mint111")
	require.NoError(t, err)
	assert.InDelta(t, 0.000025, price, 1e-12)

	mcap, err := ds.MarketCap(context.Background(), "Mint111")
	require.NoError(t, err)
	assert.Equal(t, 25000.0, mcap)

	_, err = ds.SolPrice(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPumpFunDataSource_IsPumpToken(t *testing.T) {
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/coin/Mint111" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	ok, err := ds.IsPumpToken(context.Background(), "Mint111")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ds.IsPumpToken(context.Background(), "Other")
	require.NoError(t, err)
	assert.False(t, ok)
}
