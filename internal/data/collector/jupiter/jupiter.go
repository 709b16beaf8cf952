package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/utils/request"
)

var ErrPriceNotFound = errors.New("price not found")

type JupiterDataSource struct {
	baseURL    string
	httpClient *resty.Client
}

func NewJupiterDataSource(priceURL string) *JupiterDataSource {
	if priceURL == "" {
		priceURL = "https://api.jup.ag/price/v2"
	}
	return &JupiterDataSource{
		baseURL:    priceURL,
		httpClient: request.Request,
	}
}

func (j *JupiterDataSource) Name() string {
	return "jupiter"
}

type priceResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Price string `json:"price"`
	} `json:"data"`
}

// TokenPrice queries the price v2 endpoint; an absent entry is ErrPriceNotFound.
func (j *JupiterDataSource) TokenPrice(ctx context.Context, mint string) (float64, error) {
	resp, err := j.httpClient.R().
		SetContext(ctx).
		SetQueryParam("ids", mint).
		Get(j.baseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result priceResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	entry, ok := result.Data[mint]
	if !ok || entry == nil || entry.Price == "" {
		return 0, ErrPriceNotFound
	}

	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price: %w", err)
	}

	return price, nil
}

// SolPrice is the wrapped SOL price.
func (j *JupiterDataSource) SolPrice(ctx context.Context) (float64, error) {
	return j.TokenPrice(ctx, chain.WrappedSolMint)
}
