package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/jupiter"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

// PriceLiquidityService answers price, supply and holder distribution questions for a mint.
type PriceLiquidityService struct {
	client  chain.Client
	prices  PriceSource
	holders HolderCounter
	sol     data.PriceCollector
	log     *slog.Logger
}

func NewPriceLiquidityService(client chain.Client, prices PriceSource, holders HolderCounter, sol data.PriceCollector, log *slog.Logger) *PriceLiquidityService {
	return &PriceLiquidityService{
		client:  client,
		prices:  prices,
		holders: holders,
		sol:     sol,
		log:     log,
	}
}

// TokenPrice returns nil when the price source has no entry for mint.
func (s *PriceLiquidityService) TokenPrice(ctx context.Context, mint string) (*float64, error) {
	price, err := s.prices.TokenPrice(ctx, mint)
	if errors.Is(err, jupiter.ErrPriceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token price: %w", err)
	}
	return &price, nil
}

// DetailedPriceInfo returns nil when no price is known.
func (s *PriceLiquidityService) DetailedPriceInfo(ctx context.Context, mint string) (*models.PriceInfo, error) {
	price, err := s.TokenPrice(ctx, mint)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, nil
	}

	supply, err := s.client.TokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get token supply: %w", err)
	}

	marketCap := decimal.NewFromFloat(supply.Amount).Mul(decimal.NewFromFloat(*price))
	return &models.PriceInfo{
		Price:     *price,
		MarketCap: marketCap.InexactFloat64(),
		Supply:    supply.Amount,
	}, nil
}

func (s *PriceLiquidityService) TotalHolders(ctx context.Context, mint string) (int, error) {
	return s.holders.TotalHolders(ctx, mint)
}

// HoldingInfo ranks the largest holders by share of supply.
func (s *PriceLiquidityService) HoldingInfo(ctx context.Context, mint string) (*models.TokenHoldingInfo, error) {
	supply, err := s.client.TokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get token supply: %w", err)
	}

	accounts, err := s.client.LargestHolders(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get largest holders: %w", err)
	}

	total, err := s.holders.TotalHolders(ctx, mint)
	if err != nil {
		s.log.Warn("failed to count holders, using largest accounts", "mint", mint, "err", err)
		total = len(accounts)
	}

	supplyDec := decimal.NewFromFloat(supply.Amount)
	holdings := make([]models.TokenHolding, 0, len(accounts))
	for _, acc := range accounts {
		owner := acc.Owner
		if owner == "" {
			owner = acc.TokenAccount
		}

		var pct float64
		if supplyDec.IsPositive() {
			pct = decimal.NewFromFloat(acc.Amount).Div(supplyDec).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}

		holdings = append(holdings, models.TokenHolding{
			Address:      owner,
			Amount:       acc.Amount,
			Percentage:   pct,
			IsDex:        chain.IsDex(owner),
			TotalHolders: total,
		})
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].Percentage > holdings[j].Percentage
	})

	info := &models.TokenHoldingInfo{Holdings: holdings}
	n := 0
	for _, h := range holdings {
		if h.IsDex {
			continue
		}
		info.Top5NonDexPercentage += h.Percentage
		n++
		if n == 5 {
			break
		}
	}

	s.log.Debug("holding info collected", "mint", mint, "holders", total, "top5", info.Top5NonDexPercentage)
	return info, nil
}

// SolPrice uses the collector chain (Jupiter wSOL, then Binance SOLUSDT).
func (s *PriceLiquidityService) SolPrice(ctx context.Context) (float64, error) {
	return s.sol.SolPrice(ctx)
}
