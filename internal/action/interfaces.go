package action

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

const (
	NotPumpReply = "Sry i only can analyze pumpfun token on solana"
	ConfigReply  = "System configuration is incomplete, please set the required environment variables."
	ErrorReply   = "I encountered an issue while analyzing this token. Please try again later. 🔧"
)

var (
	ErrNoAddress        = errors.New("no token address found")
	ErrNotPumpToken     = errors.New("not a pump.fun token")
	ErrIncompleteConfig = errors.New("configuration is incomplete")
)

var addressPattern = regexp.MustCompile(`[A-Za-z0-9]{32,44}`)

// Request 一次分析请求
type Request struct {
	TokenAddress string `json:"token_address,omitempty"` // 显式指定的地址优先
	Text         string `json:"text,omitempty"`
	User         string `json:"user,omitempty"`
}

// ExtractTokenAddress prefers the explicit address, then the first 32-44 character
// alphanumeric run in the text. The result must decode as a base58 public key.
func ExtractTokenAddress(req Request) (string, error) {
	candidate := strings.TrimSpace(req.TokenAddress)
	if candidate == "" {
		candidate = addressPattern.FindString(req.Text)
	}
	if candidate == "" {
		return "", ErrNoAddress
	}
	if _, err := solana.PublicKeyFromBase58(candidate); err != nil {
		return "", ErrNoAddress
	}
	return candidate, nil
}

// PumpChecker pump.fun 接口
type PumpChecker interface {
	IsPumpToken(ctx context.Context, mint string) (bool, error)
	Coin(ctx context.Context, mint string) (*models.PumpFunCoin, error)
}

// MarketReader 价格与持仓，见 analysis.PriceLiquidityService
type MarketReader interface {
	DetailedPriceInfo(ctx context.Context, mint string) (*models.PriceInfo, error)
	HoldingInfo(ctx context.Context, mint string) (*models.TokenHoldingInfo, error)
	SolPrice(ctx context.Context) (float64, error)
}

type CreatorReader interface {
	GetCreatorInfo(ctx context.Context, mint string) (*models.TokenCreator, error)
}

type RiskAnalyzer interface {
	AnalyzeTokenRisk(ctx context.Context, in ai.AnalysisInput) (*ai.AnalysisResult, error)
}
