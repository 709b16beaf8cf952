package data

import (
	"context"
	"errors"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

var ErrNotFound = errors.New("not found")

// PriceCollector 价格数据来源
type PriceCollector interface {
	// TokenPrice returns the USD price of a mint
	TokenPrice(ctx context.Context, mint string) (float64, error)

	// SolPrice returns the SOL/USD price
	SolPrice(ctx context.Context) (float64, error)
}

// DataStorage 处理数据的持久化
type DataStorage interface {
	// SaveLaunchedEvent stores a processed monitor event
	SaveLaunchedEvent(ctx context.Context, event *models.TokenLaunchedEvent) error

	// GetLaunchedEvents returns monitor events created in [start, end]
	GetLaunchedEvents(ctx context.Context, start, end time.Time) ([]models.TokenLaunchedEvent, error)

	// SaveSecurityReport upserts the latest report of a token
	SaveSecurityReport(ctx context.Context, report *models.SecurityReport) error

	// GetSecurityReport returns ErrNotFound when no report exists
	GetSecurityReport(ctx context.Context, tokenAddress string) (*models.SecurityReport, error)

	Close() error
}
