package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

const solSymbol = "SOLUSDT"

var ErrUnsupported = errors.New("not supported by binance")

// BinanceDataSource reads spot prices, used as the SOL/USD fallback.
type BinanceDataSource struct {
	client *binance.Client
}

func NewBinanceDataSource() *BinanceDataSource {
	// 行情接口无需密钥
	return &BinanceDataSource{client: binance.NewClient("", "")}
}

func (b *BinanceDataSource) Name() string {
	return "binance"
}

// SymbolPrice returns the last traded price of a spot symbol.
func (b *BinanceDataSource) SymbolPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list prices: %w", err)
	}

	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse price: %w", err)
		}
		return price, nil
	}

	return 0, fmt.Errorf("symbol not found: %s", symbol)
}

func (b *BinanceDataSource) SolPrice(ctx context.Context) (float64, error) {
	return b.SymbolPrice(ctx, solSymbol)
}

// TokenPrice is not available: pump.fun tokens are not listed.
func (b *BinanceDataSource) TokenPrice(ctx context.Context, mint string) (float64, error) {
	return 0, ErrUnsupported
}
