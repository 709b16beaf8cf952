package analysis

import (
	"context"

	"github.com/songzhibin97/pumpsentinel/internal/data/collector/helius"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

// SuccessfulMarketCapUSD 历史代币被视为成功的市值门槛
const SuccessfulMarketCapUSD = 100_000

// CoinSource pump.fun 代币信息
type CoinSource interface {
	Coin(ctx context.Context, mint string) (*models.PumpFunCoin, error)
}

// PriceSource returns a USD spot price
type PriceSource interface {
	TokenPrice(ctx context.Context, mint string) (float64, error)
}

// HistorySource 创建者链上历史（Helius）
type HistorySource interface {
	WalletAge(ctx context.Context, address string) (models.WalletAge, error)
	CreatedMints(ctx context.Context, creator string) ([]helius.CreatedMint, error)
}

type HolderCounter interface {
	TotalHolders(ctx context.Context, mint string) (int, error)
}

// PriceFunc resolves a token price; nil means no price is known.
type PriceFunc func(ctx context.Context, mint string) (*float64, error)
