package risk

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

type BasicRiskManager struct {
	params   RiskParameters
	paramsMu sync.RWMutex
}

func NewBasicRiskManager(initialParams RiskParameters) *BasicRiskManager {
	return &BasicRiskManager{params: initialParams}
}

func (rm *BasicRiskManager) AssessRisk(ctx context.Context, data *TokenData) (*RiskAssessment, error) {
	if data == nil {
		return nil, fmt.Errorf("no token data provided")
	}

	rm.paramsMu.RLock()
	params := rm.params
	rm.paramsMu.RUnlock()

	assessment := &RiskAssessment{
		DetailedAnalysis: make([]string, 0),
	}
	add := func(score int, reason string) {
		assessment.RiskScore += score
		assessment.DetailedAnalysis = append(assessment.DetailedAnalysis, reason)
	}

	// 持仓集中度
	top20 := Top20NonDexPercentage(data.Holdings)
	switch {
	case top20 > params.HighConcentration:
		add(5, fmt.Sprintf("High concentration: top 20 holders own more than %.0f%%", params.HighConcentration))
	case top20 > params.MediumConcentration:
		add(3, fmt.Sprintf("Moderate concentration: top 20 holders own more than %.0f%%", params.MediumConcentration))
	}

	// 合约权限
	if data.Contract.MintAuthority != "" {
		add(4, "Mint authority is still enabled")
	}
	if data.Contract.FreezeAuthority != "" {
		add(3, "Freeze authority is still enabled")
	}

	// DEX 流动性
	dexLiquidity := DexPercentage(data.Holdings)
	switch {
	case dexLiquidity < params.VeryLowDexLiquidity:
		add(3, fmt.Sprintf("Very low liquidity: DEX holds less than %.0f%%", params.VeryLowDexLiquidity))
	case dexLiquidity < params.LowDexLiquidity:
		add(2, fmt.Sprintf("Low liquidity: DEX holds less than %.0f%%", params.LowDexLiquidity))
	}

	// 开发者历史
	created := len(data.Creator.OtherTokens)
	switch {
	case created > params.SerialCreatorTokens:
		add(3, fmt.Sprintf("High risk developer: created more than %d tokens", params.SerialCreatorTokens))
	case created > params.ActiveCreatorTokens:
		add(2, fmt.Sprintf("Suspicious developer: created more than %d tokens", params.ActiveCreatorTokens))
	}

	// 市值
	if data.MarketCap > 0 && data.MarketCap < params.MicroMarketCapUSD {
		add(2, fmt.Sprintf("Tiny market cap: below $%.0f", params.MicroMarketCapUSD))
	}

	switch {
	case assessment.RiskScore >= params.HighRiskScore:
		assessment.RiskLevel = RiskHigh
	case assessment.RiskScore >= params.MediumRiskScore:
		assessment.RiskLevel = RiskMedium
	default:
		assessment.RiskLevel = RiskLow
	}

	return assessment, nil
}

func (rm *BasicRiskManager) SetRiskParameters(ctx context.Context, params *RiskParameters) error {
	if params.HighConcentration <= 0 || params.MediumConcentration <= 0 ||
		params.VeryLowDexLiquidity <= 0 || params.LowDexLiquidity <= 0 ||
		params.SerialCreatorTokens <= 0 || params.ActiveCreatorTokens <= 0 ||
		params.MicroMarketCapUSD <= 0 || params.HighRiskScore <= 0 || params.MediumRiskScore <= 0 {
		return fmt.Errorf("invalid risk parameters: all values must be positive")
	}
	if params.MediumConcentration > params.HighConcentration || params.MediumRiskScore > params.HighRiskScore {
		return fmt.Errorf("invalid risk parameters: medium thresholds must not exceed high thresholds")
	}

	rm.paramsMu.Lock()
	rm.params = *params
	rm.paramsMu.Unlock()

	return nil
}

// Top20NonDexPercentage sums the twenty largest regular holders.
func Top20NonDexPercentage(holdings []models.TokenHolding) float64 {
	pcts := make([]float64, 0, len(holdings))
	for _, h := range holdings {
		if !h.IsDex {
			pcts = append(pcts, h.Percentage)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(pcts)))

	var sum float64
	for i := 0; i < len(pcts) && i < 20; i++ {
		sum += pcts[i]
	}
	return sum
}

// DexPercentage sums the share held by allowlisted exchange wallets.
func DexPercentage(holdings []models.TokenHolding) float64 {
	var sum float64
	for _, h := range holdings {
		if h.IsDex {
			sum += h.Percentage
		}
	}
	return sum
}
