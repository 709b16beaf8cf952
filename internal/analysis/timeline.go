package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

// pump.fun 代币固定供应量
const pumpFunSupply = 1_000_000_000

// PumpFunPrice prices a token as usd_market_cap / 1e9 from pump.fun, then asks fallback.
// fallback may be nil.
func PumpFunPrice(coins CoinSource, fallback PriceSource) PriceFunc {
	return func(ctx context.Context, mint string) (*float64, error) {
		coin, err := coins.Coin(ctx, mint)
		if err == nil && coin.USDMarketCap > 0 {
			price := decimal.NewFromFloat(coin.USDMarketCap).Div(decimal.NewFromInt(pumpFunSupply)).InexactFloat64()
			return &price, nil
		}
		if fallback == nil {
			return nil, nil
		}
		price, err := fallback.TokenPrice(ctx, mint)
		if err != nil {
			return nil, nil
		}
		return &price, nil
	}
}

// TimelineAnalyzer gathers the creator picture the monitor thread is written from.
type TimelineAnalyzer struct {
	coins    CoinSource
	history  HistorySource
	creators *CreatorInfoService
	price    PriceFunc
	policy   retry.Policy
	now      func() time.Time
	log      *slog.Logger
}

func NewTimelineAnalyzer(coins CoinSource, history HistorySource, creators *CreatorInfoService, price PriceFunc, log *slog.Logger) *TimelineAnalyzer {
	return &TimelineAnalyzer{
		coins:    coins,
		history:  history,
		creators: creators,
		price:    price,
		policy:   retry.Policy{Attempts: 3, Base: time.Second},
		now:      time.Now,
		log:      log,
	}
}

// TokenPrice returns nil when neither pump.fun nor the fallback knows the token.
func (a *TimelineAnalyzer) TokenPrice(ctx context.Context, mint string) (*float64, error) {
	return a.price(ctx, mint)
}

// CollectData builds the timeline for mint; launchedAt is the pool initialisation time.
func (a *TimelineAnalyzer) CollectData(ctx context.Context, mint string, launchedAt time.Time) (*models.TokenTimeline, error) {
	var coin *models.PumpFunCoin
	err := retry.Do(ctx, a.policy, func(ctx context.Context) error {
		var err error
		coin, err = a.coins.Coin(ctx, mint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect data for token %s: %w", mint, err)
	}

	if launchedAt.IsZero() {
		launchedAt = a.now()
	}

	timeline := &models.TokenTimeline{
		TokenName:     coin.Name,
		TokenAddress:  mint,
		CreatedAt:     coin.CreatedAt(),
		LaunchTime:    launchedAt,
		Creator:       coin.Creator,
		CreatorTokens: []models.CreatorToken{},
	}
	if coin.Creator == "" {
		return timeline, nil
	}

	timeline.CreatorTokens = a.creators.CreatorTokens(ctx, coin.Creator)

	age, err := a.history.WalletAge(ctx, coin.Creator)
	if err != nil {
		a.log.Warn("failed to get wallet age", "creator", coin.Creator, "err", err)
		age = models.WalletAge{IsNewWallet: true}
	}
	timeline.CreatorWalletAge = age

	timeline.SuccessfulTokens = CountSuccessful(timeline.CreatorTokens)
	return timeline, nil
}

// CountSuccessful counts tokens above SuccessfulMarketCapUSD.
func CountSuccessful(tokens []models.CreatorToken) int {
	n := 0
	for _, t := range tokens {
		if t.MarketCapValue() > SuccessfulMarketCapUSD {
			n++
		}
	}
	return n
}
