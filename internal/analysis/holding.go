package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/cache"
)

const holdingCacheTTL = 30 * time.Second

// HoldingTracker reads how much of a token a wallet still holds.
type HoldingTracker struct {
	client chain.Client
	price  PriceFunc
	cache  *cache.TTL[models.CreatorHolding]
	log    *slog.Logger
}

// NewHoldingTracker caches balances for 30s. price may be nil.
func NewHoldingTracker(client chain.Client, price PriceFunc, cacheSize int, log *slog.Logger) *HoldingTracker {
	return &HoldingTracker{
		client: client,
		price:  price,
		cache:  cache.New[models.CreatorHolding](cacheSize, holdingCacheTTL),
		log:    log,
	}
}

// CreatorHolding returns a zero balance on any failure.
func (t *HoldingTracker) CreatorHolding(ctx context.Context, wallet, mint string) models.CreatorHolding {
	key := "holding-" + wallet + "-" + mint
	if h, ok := t.cache.Get(key); ok {
		return h
	}

	balance, err := t.client.TokenBalance(ctx, wallet, mint)
	if err != nil {
		t.log.Warn("failed to get creator holding", "wallet", wallet, "mint", mint, "err", err)
		return models.CreatorHolding{}
	}

	holding := models.CreatorHolding{Balance: balance}
	if balance > 0 && t.price != nil {
		if price, err := t.price(ctx, mint); err == nil && price != nil {
			holding.BalanceUSD = decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(*price)).Round(2).InexactFloat64()
		}
	}

	t.cache.Add(key, holding)
	return holding
}
