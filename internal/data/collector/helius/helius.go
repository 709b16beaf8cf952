package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/request"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

// 新钱包判定阈值
const newWalletAge = 24 * time.Hour

// EnhancedTransaction Helius 解析后的交易
type EnhancedTransaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"` // 秒
	Type           string          `json:"type"`
	Source         string          `json:"source"`
	FeePayer       string          `json:"feePayer"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
}

type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// CreatedMint 创建者在 pump.fun 发行的代币
type CreatedMint struct {
	Mint      string
	Timestamp time.Time
}

type Options struct {
	BaseURL           string
	RPCURL            string
	APIKey            string
	RequestsPerSecond float64
	MaxPages          int
}

type HeliusDataSource struct {
	baseURL    string
	rpcURL     string
	apiKey     string
	maxPages   int
	httpClient *resty.Client
	limiter    *rate.Limiter
	now        func() time.Time

	pageDelay       time.Duration
	holderPageDelay time.Duration
	refetchDelay    time.Duration
	policy          retry.Policy
}

func NewHeliusDataSource(opts Options) *HeliusDataSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.helius.xyz"
	}
	if opts.RPCURL == "" {
		opts.RPCURL = "https://mainnet.helius-rpc.com"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &HeliusDataSource{
		baseURL:         opts.BaseURL,
		rpcURL:          opts.RPCURL,
		apiKey:          opts.APIKey,
		maxPages:        opts.MaxPages,
		httpClient:      request.Request,
		limiter:         rate.NewLimiter(limit, 1),
		now:             time.Now,
		pageDelay:       500 * time.Millisecond,
		holderPageDelay: 300 * time.Millisecond,
		refetchDelay:    3 * time.Second,
		policy:          retry.Policy{Attempts: 3, Base: time.Second},
	}
}

func (h *HeliusDataSource) Name() string {
	return "helius"
}

// Transactions fetches one page of enhanced transactions for address.
func (h *HeliusDataSource) Transactions(ctx context.Context, address string, params map[string]string) ([]EnhancedTransaction, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := h.httpClient.R().
		SetContext(ctx).
		SetQueryParam("api-key", h.apiKey).
		SetQueryParams(params).
		Get(fmt.Sprintf("%s/v0/addresses/%s/transactions", h.baseURL, address))
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var txs []EnhancedTransaction
	if err := json.Unmarshal(resp.Body(), &txs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return txs, nil
}

// WalletAge walks SYSTEM_PROGRAM history back to the oldest transaction.
func (h *HeliusDataSource) WalletAge(ctx context.Context, address string) (models.WalletAge, error) {
	var oldest *EnhancedTransaction

	err := retry.Do(ctx, h.policy, func(ctx context.Context) error {
		oldest = nil
		params := map[string]string{"source": "SYSTEM_PROGRAM"}
		for page := 0; page < h.maxPages; page++ {
			txs, err := h.Transactions(ctx, address, params)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				return nil
			}
			last := txs[len(txs)-1]
			oldest = &last
			params["before"] = last.Signature

			if err := retry.Sleep(ctx, h.pageDelay); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.WalletAge{IsNewWallet: true}, fmt.Errorf("failed to get wallet age: %w", err)
	}
	if oldest == nil {
		return models.WalletAge{IsNewWallet: true}, nil
	}

	createdAt := time.Unix(oldest.Timestamp, 0)
	age := h.now().Sub(createdAt)
	return models.WalletAge{
		CreatedAt:   createdAt,
		AgeInHours:  age.Hours(),
		IsNewWallet: age < newWalletAge,
	}, nil
}

// CreatedMints lists pump.fun CREATE transactions. The index is eventually consistent,
// so the history is read twice and the longer answer wins.
func (h *HeliusDataSource) CreatedMints(ctx context.Context, creator string) ([]CreatedMint, error) {
	params := map[string]string{"type": "CREATE", "source": "PUMP_FUN"}

	var first, second []EnhancedTransaction
	err := retry.Do(ctx, h.policy, func(ctx context.Context) error {
		var err error
		if first, err = h.Transactions(ctx, creator, params); err != nil {
			return err
		}
		if err = retry.Sleep(ctx, h.refetchDelay); err != nil {
			return err
		}
		second, err = h.Transactions(ctx, creator, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get created tokens: %w", err)
	}

	txs := first
	if len(second) > len(first) {
		txs = second
	}

	seen := make(map[string]struct{}, len(txs))
	mints := make([]CreatedMint, 0, len(txs))
	for _, tx := range txs {
		if len(tx.TokenTransfers) == 0 || tx.TokenTransfers[0].Mint == "" {
			continue
		}
		mint := tx.TokenTransfers[0].Mint
		if _, ok := seen[mint]; ok {
			continue
		}
		seen[mint] = struct{}{}
		mints = append(mints, CreatedMint{Mint: mint, Timestamp: time.Unix(tx.Timestamp, 0)})
	}

	sort.SliceStable(mints, func(i, j int) bool { return mints[i].Timestamp.After(mints[j].Timestamp) })
	return mints, nil
}

type dasRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type dasTokenAccountsResponse struct {
	Result *struct {
		Total         int    `json:"total"`
		Cursor        string `json:"cursor"`
		TokenAccounts []struct {
			Address string `json:"address"`
			Owner   string `json:"owner"`
		} `json:"token_accounts"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TotalHolders counts token accounts through the DAS getTokenAccounts cursor.
func (h *HeliusDataSource) TotalHolders(ctx context.Context, mint string) (int, error) {
	total := 0
	cursor := ""

	for {
		if err := h.limiter.Wait(ctx); err != nil {
			return total, err
		}

		params := map[string]any{"mint": mint, "limit": 1000}
		if cursor != "" {
			params["cursor"] = cursor
		}

		resp, err := h.httpClient.R().
			SetContext(ctx).
			SetQueryParam("api-key", h.apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(dasRequest{JSONRPC: "2.0", ID: "holders", Method: "getTokenAccounts", Params: params}).
			Post(h.rpcURL)
		if err != nil {
			return total, fmt.Errorf("failed to execute request: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return total, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
		}

		var out dasTokenAccountsResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return total, fmt.Errorf("failed to decode response: %w", err)
		}
		if out.Error != nil {
			return total, fmt.Errorf("das error %d: %s", out.Error.Code, out.Error.Message)
		}
		if out.Result == nil || len(out.Result.TokenAccounts) == 0 {
			return total, nil
		}

		total += len(out.Result.TokenAccounts)
		cursor = out.Result.Cursor
		if cursor == "" {
			return total, nil
		}

		if err := retry.Sleep(ctx, h.holderPageDelay); err != nil {
			return total, err
		}
	}
}
