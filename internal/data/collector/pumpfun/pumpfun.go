package pumpfun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/request"
)

// pump.fun 代币总量固定为 10 亿
const totalSupply = 1_000_000_000

var (
	ErrCoinNotFound = errors.New("coin not found on pump.fun")
	ErrUnsupported  = errors.New("not supported by pump.fun")
)

type PumpFunDataSource struct {
	baseURL    string
	siteURL    string
	httpClient *resty.Client
}

func NewPumpFunDataSource(apiURL, siteURL string) *PumpFunDataSource {
	if apiURL == "" {
		apiURL = "https://frontend-api.pump.fun"
	}
	if siteURL == "" {
		siteURL = "https://pump.fun"
	}
	return &PumpFunDataSource{
		baseURL:    apiURL,
		siteURL:    siteURL,
		httpClient: request.Request,
	}
}

func (p *PumpFunDataSource) Name() string {
	return "pumpfun"
}

// Coin fetches /coins/{mint}.
func (p *PumpFunDataSource) Coin(ctx context.Context, mint string) (*models.PumpFunCoin, error) {
	resp, err := p.httpClient.R().SetContext(ctx).Get(fmt.Sprintf("%s/coins/%s", p.baseURL, mint))
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrCoinNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var coin models.PumpFunCoin
	if err := json.Unmarshal(resp.Body(), &coin); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if coin.Mint == "" && coin.Creator == "" {
		return nil, ErrCoinNotFound
	}

	return &coin, nil
}

// IsPumpToken reports whether the coin page on pump.fun exists.
func (p *PumpFunDataSource) IsPumpToken(ctx context.Context, mint string) (bool, error) {
	resp, err := p.httpClient.R().SetContext(ctx).Get(fmt.Sprintf("%s/coin/%s", p.siteURL, mint))
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp.StatusCode() == http.StatusOK, nil
}

// TokenPrice derives the price from usd_market_cap over the fixed supply.
func (p *PumpFunDataSource) TokenPrice(ctx context.Context, mint string) (float64, error) {
	coin, err := p.Coin(ctx, mint)
	if err != nil {
		return 0, err
	}
	if coin.USDMarketCap <= 0 {
		return 0, fmt.Errorf("no market cap for %s", mint)
	}
	return decimal.NewFromFloat(coin.USDMarketCap).Div(decimal.NewFromInt(totalSupply)).InexactFloat64(), nil
}

// MarketCap returns usd_market_cap.
func (p *PumpFunDataSource) MarketCap(ctx context.Context, mint string) (float64, error) {
	coin, err := p.Coin(ctx, mint)
	if err != nil {
		return 0, err
	}
	return coin.USDMarketCap, nil
}

func (p *PumpFunDataSource) SolPrice(ctx context.Context) (float64, error) {
	return 0, ErrUnsupported
}
