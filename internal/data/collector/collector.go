package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/data"
)

var _ data.PriceCollector = (*MultiSourceCollector)(nil)

// MultiSourceCollector implements data.PriceCollector by trying sources in order
type MultiSourceCollector struct {
	sources []DataSource
	logger  Logger
}

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

type DataSource interface {
	Name() string
	TokenPrice(ctx context.Context, mint string) (float64, error)
	SolPrice(ctx context.Context) (float64, error)
}

func NewMultiSourceCollector(sources []DataSource, logger Logger) *MultiSourceCollector {
	return &MultiSourceCollector{
		sources: sources,
		logger:  logger,
	}
}

// TokenPrice implements data.PriceCollector
func (c *MultiSourceCollector) TokenPrice(ctx context.Context, mint string) (float64, error) {
	for _, source := range c.sources {
		price, err := source.TokenPrice(ctx, mint)
		if err == nil && price > 0 {
			c.logger.Info("collected token price", "source", source.Name(), "mint", mint, "price", price)
			return price, nil
		}
		c.logger.Error("failed to collect token price", "source", source.Name(), "mint", mint, "error", err)
	}

	return 0, fmt.Errorf("failed to collect token price from all sources")
}

// SolPrice implements data.PriceCollector
func (c *MultiSourceCollector) SolPrice(ctx context.Context) (float64, error) {
	for _, source := range c.sources {
		price, err := source.SolPrice(ctx)
		if err == nil && price > 0 {
			c.logger.Info("collected sol price", "source", source.Name(), "price", price)
			return price, nil
		}
		c.logger.Error("failed to collect sol price", "source", source.Name(), "error", err)
	}

	return 0, fmt.Errorf("failed to collect sol price from all sources")
}

// SubscribeToPrices polls the price of each mint every refreshInterval.
func (c *MultiSourceCollector) SubscribeToPrices(ctx context.Context, mints []string, refreshInterval time.Duration) <-chan PriceUpdate {
	out := make(chan PriceUpdate, 100)

	go func() {
		defer close(out)

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, mint := range mints {
					price, err := c.TokenPrice(ctx, mint)
					if err != nil {
						continue
					}

					select {
					case out <- PriceUpdate{Mint: mint, Price: price, Timestamp: time.Now()}:
					default:
						c.logger.Error("channel full, dropping price update", "mint", mint)
					}
				}
			}
		}
	}()

	return out
}

// PriceUpdate 价格轮询结果
type PriceUpdate struct {
	Mint      string    `json:"mint"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
