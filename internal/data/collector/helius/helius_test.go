package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HeliusDataSource) {
	server := httptest.NewServer(handler)

	ds := NewHeliusDataSource(Options{BaseURL: server.URL, RPCURL: server.URL + "/rpc", APIKey: "key", MaxPages: 5})
	ds.httpClient = resty.NewWithClient(server.Client())
	ds.pageDelay = 0
	ds.holderPageDelay = 0
	ds.refetchDelay = 0
	ds.policy = retry.Policy{Attempts: 1}

	return server, ds
}

func TestHeliusDataSource_WalletAge(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		pages     map[string]string // before -> body
		wantNew   bool
		wantHours float64
	}{
		{
			name: "old wallet across pages",
			pages: map[string]string{
				"":     fmt.Sprintf(`[{"signature":"s1","timestamp":%d},{"signature":"s2","timestamp":%d}]`, now.Add(-time.Hour).Unix(), now.Add(-10*time.Hour).Unix()),
				"s2":   fmt.Sprintf(`[{"signature":"s3","timestamp":%d}]`, now.Add(-48*time.Hour).Unix()),
				"s3":   `[]`,
				"else": `[]`,
			},
			wantNew:   false,
			wantHours: 48,
		},
		{
			name:      "fresh wallet",
			pages:     map[string]string{"": fmt.Sprintf(`[{"signature":"s1","timestamp":%d}]`, now.Add(-2*time.Hour).Unix()), "s1": `[]`},
			wantNew:   true,
			wantHours: 2,
		},
		{
			name:    "no history",
			pages:   map[string]string{"": `[]`},
			wantNew: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v0/addresses/Creator111/transactions", r.URL.Path)
				assert.Equal(t, "SYSTEM_PROGRAM", r.URL.Query().Get("source"))
				assert.Equal(t, "key", r.URL.Query().Get("api-key"))
				body, ok := tt.pages[r.URL.Query().Get("before")]
				if !ok {
					body = `[]`
				}
				_, _ = w.Write([]byte(body))
			})
			defer server.Close()
			ds.now = func() time.Time { return now }

			age, err := ds.WalletAge(context.Background(), "Creator111")
			require.NoError(t, err)
			assert.Equal(t, tt.wantNew, age.IsNewWallet)
			assert.InDelta(t, tt.wantHours, age.AgeInHours, 1e-9)
		})
	}
}

func TestHeliusDataSource_WalletAgeError(t *testing.T) {
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	defer server.Close()

	age, err := ds.WalletAge(context.Background(), "Creator111")
	assert.Error(t, err)
	assert.True(t, age.IsNewWallet)
	assert.Zero(t, age.AgeInHours)
}

func TestHeliusDataSource_CreatedMints(t *testing.T) {
	var calls atomic.Int32
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CREATE", r.URL.Query().Get("type"))
		assert.Equal(t, "PUMP_FUN", r.URL.Query().Get("source"))
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`[{"signature":"a","timestamp":100,"tokenTransfers":[{"mint":"MintA"}]}]`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"signature":"c","timestamp":300,"tokenTransfers":[{"mint":"MintB"}]},
			{"signature":"b","timestamp":200,"tokenTransfers":[]},
			{"signature":"a","timestamp":100,"tokenTransfers":[{"mint":"MintA"}]},
			{"signature":"d","timestamp":50,"tokenTransfers":[{"mint":"MintA"}]}]`))
	})
	defer server.Close()

	mints, err := ds.CreatedMints(context.Background(), "Creator111")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, mints, 2)
	assert.Equal(t, "MintB", mints[0].Mint)
	assert.Equal(t, "MintA", mints[1].Mint)
	assert.Equal(t, int64(100), mints[1].Timestamp.Unix())
}

func TestHeliusDataSource_TotalHolders(t *testing.T) {
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req dasRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenAccounts", req.Method)
		assert.Equal(t, "Mint111", req.Params["mint"])

		switch req.Params["cursor"] {
		case nil:
			_, _ = w.Write([]byte(`{"result":{"cursor":"next","token_accounts":[{"address":"a"},{"address":"b"}]}}`))
		case "next":
			_, _ = w.Write([]byte(`{"result":{"cursor":"","token_accounts":[{"address":"c"}]}}`))
		default:
			t.Fatalf("unexpected cursor %v", req.Params["cursor"])
		}
	})
	defer server.Close()

	total, err := ds.TotalHolders(context.Background(), "Mint111")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestHeliusDataSource_TotalHoldersError(t *testing.T) {
	server, ds := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":-32602,"message":"invalid mint"}}`))
	})
	defer server.Close()

	_, err := ds.TotalHolders(context.Background(), "Mint111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mint")
}
