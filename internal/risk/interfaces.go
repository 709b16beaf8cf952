package risk

import (
	"context"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

// RiskManager scores a token from its holdings, contract and creator history.
type RiskManager interface {
	// AssessRisk computes the additive risk score
	AssessRisk(ctx context.Context, data *TokenData) (*RiskAssessment, error)

	// SetRiskParameters replaces the scoring thresholds
	SetRiskParameters(ctx context.Context, params *RiskParameters) error
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// MarketTier 市值分层（以 SOL 计价）
type MarketTier string

const (
	TierMicro  MarketTier = "MICRO"
	TierSmall  MarketTier = "SMALL"
	TierMedium MarketTier = "MEDIUM"
	TierLarge  MarketTier = "LARGE"
)

// 市值分层阈值，单位 SOL
const (
	MicroTierMaxSol  = 100.0
	SmallTierMaxSol  = 500.0
	MediumTierMaxSol = 2500.0
)

// MaturityStage 代币成熟度阶段
type MaturityStage string

const (
	StageLaunch    MaturityStage = "LAUNCH"
	StageStability MaturityStage = "STABILITY"
	StageMaturity  MaturityStage = "MATURITY"
)

// 健康度阈值
const (
	HealthyConcentrationMax = 20.0 // 前五大非 DEX 持仓百分比
	HealthyLiquidityMin     = 5.0
	HealthyLiquidityMax     = 15.0
	HealthyVolumeMin        = 0.1
	HealthyVolumeMax        = 0.5
)

// TierOf buckets a SOL denominated market cap.
func TierOf(marketCapSol float64) MarketTier {
	switch {
	case marketCapSol < MicroTierMaxSol:
		return TierMicro
	case marketCapSol < SmallTierMaxSol:
		return TierSmall
	case marketCapSol < MediumTierMaxSol:
		return TierMedium
	default:
		return TierLarge
	}
}

// RiskParameters 风险评分阈值
type RiskParameters struct {
	HighConcentration   float64 `json:"high_concentration" yaml:"high_concentration"`     // 前20大非DEX占比，+5
	MediumConcentration float64 `json:"medium_concentration" yaml:"medium_concentration"` // +3
	VeryLowDexLiquidity float64 `json:"very_low_dex_liquidity" yaml:"very_low_dex_liquidity"`
	LowDexLiquidity     float64 `json:"low_dex_liquidity" yaml:"low_dex_liquidity"`
	SerialCreatorTokens int     `json:"serial_creator_tokens" yaml:"serial_creator_tokens"`
	ActiveCreatorTokens int     `json:"active_creator_tokens" yaml:"active_creator_tokens"`
	MicroMarketCapUSD   float64 `json:"micro_market_cap_usd" yaml:"micro_market_cap_usd"`
	HighRiskScore       int     `json:"high_risk_score" yaml:"high_risk_score"`
	MediumRiskScore     int     `json:"medium_risk_score" yaml:"medium_risk_score"`
}

// DefaultRiskParameters returns the stock thresholds.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		HighConcentration:   50,
		MediumConcentration: 30,
		VeryLowDexLiquidity: 5,
		LowDexLiquidity:     10,
		SerialCreatorTokens: 10,
		ActiveCreatorTokens: 5,
		MicroMarketCapUSD:   10000,
		HighRiskScore:       7,
		MediumRiskScore:     4,
	}
}

// TokenData 风险评估输入
type TokenData struct {
	Holdings  []models.TokenHolding `json:"holdings"`
	Contract  models.TokenContract  `json:"contract"`
	Creator   models.TokenCreator   `json:"creator"`
	MarketCap float64               `json:"market_cap"`
}

// RiskAssessment 风险评估结果
type RiskAssessment struct {
	RiskLevel        RiskLevel `json:"risk_level"`
	RiskScore        int       `json:"risk_score"`
	DetailedAnalysis []string  `json:"detailed_analysis"`
}

// HolderRank 非 DEX 持仓排名
type HolderRank struct {
	Address    string  `json:"address"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

// CleanedHoldingData 清洗后的持仓数据
type CleanedHoldingData struct {
	TotalHolders         int          `json:"total_holders"`
	NonDexHolders        int          `json:"non_dex_holders"`
	DexHoldingPercentage float64      `json:"dex_holding_percentage"`
	Top5Percentage       float64      `json:"top5_percentage"`
	Top10Percentage      float64      `json:"top10_percentage"`
	Details              []HolderRank `json:"details"`
}

// QualityCounts 各分层项目数量
type QualityCounts struct {
	Micro  int `json:"micro"`
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
}

// QualityDistribution 各分层项目占比
type QualityDistribution struct {
	Micro  float64 `json:"micro"`
	Small  float64 `json:"small"`
	Medium float64 `json:"medium"`
	Large  float64 `json:"large"`
}

// Project 创建者的一个历史项目
type Project struct {
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	MarketCapSol float64    `json:"market_cap_sol"`
	MarketCapUSD float64    `json:"market_cap_usd"`
	Quality      MarketTier `json:"quality"`
	Timestamp    time.Time  `json:"timestamp"`
}

// CleanedCreatorData 清洗后的创建者数据
type CleanedCreatorData struct {
	Address             string              `json:"address"`
	TotalProjects       int                 `json:"total_projects"`
	ProjectsByQuality   QualityCounts       `json:"projects_by_quality"`
	QualityDistribution QualityDistribution `json:"quality_distribution"`
	MoonProjects        []Project           `json:"moon_projects"`
	RecentProjects      []Project           `json:"recent_projects"`
	AvgMarketCap        float64             `json:"avg_market_cap"` // SOL
	SuccessRate         float64             `json:"success_rate"`   // 非 MICRO 项目占比
	MoonRate            float64             `json:"moon_rate"`
	MarketCapTier       MarketTier          `json:"market_cap_tier"`
	MaturityStage       MaturityStage       `json:"maturity_stage"`
	AgeInHours          float64             `json:"age_in_hours"`
}

// USDMetrics 美元计价的市场数据
type USDMetrics struct {
	USDPrice     float64 `json:"usd_price"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
}

// PriceMetrics SOL 计价的市场数据
type PriceMetrics struct {
	USDPrice       float64 `json:"usd_price"`
	SolPrice       float64 `json:"sol_price"`
	SolUSDPrice    float64 `json:"sol_usd_price"`
	MarketCapInSol float64 `json:"market_cap_in_sol"`
	Volume24hInSol float64 `json:"volume_24h_in_sol"`
	LiquidityInSol float64 `json:"liquidity_in_sol"`
}

type HolderMetrics struct {
	Count        int     `json:"count"`
	Distribution float64 `json:"distribution"`
	IsHealthy    bool    `json:"is_healthy"`
}

type LiquidityMetrics struct {
	Ratio     float64 `json:"ratio"`
	Depth     float64 `json:"depth"`
	IsHealthy bool    `json:"is_healthy"`
}

type VolumeMetrics struct {
	Daily      float64 `json:"daily"`
	Volatility float64 `json:"volatility"`
	IsHealthy  bool    `json:"is_healthy"`
}

// HealthMetrics 健康度指标
type HealthMetrics struct {
	Holder    HolderMetrics    `json:"holder"`
	Liquidity LiquidityMetrics `json:"liquidity"`
	Volume    VolumeMetrics    `json:"volume"`
}

// TimeAdjustment 按代币年龄调整的预期
type TimeAdjustment struct {
	Phase               MaturityStage `json:"phase"`
	ExpectedGrowth      float64       `json:"expected_growth"`
	VolatilityTolerance float64       `json:"volatility_tolerance"`
}

// TierRecommendations 分层建议
type TierRecommendations struct {
	RiskLevel    RiskLevel `json:"risk_level"`
	Suggestions  []string  `json:"suggestions"`
	WarningFlags []string  `json:"warning_flags"`
}

// MarketTierInput 市值分层评估输入
type MarketTierInput struct {
	Price        USDMetrics
	Holdings     models.TokenHoldingInfo
	CreationTime time.Time
	RaydiumPool  *string
}

// MarketTierAnalysis 市值分层评估
type MarketTierAnalysis struct {
	Tier            MarketTier          `json:"tier"`
	SolMetrics      PriceMetrics        `json:"sol_metrics"`
	HealthMetrics   HealthMetrics       `json:"health_metrics"`
	TimeAdjustment  TimeAdjustment      `json:"time_adjustment"`
	TokenStage      MaturityStage       `json:"token_stage"`
	Recommendations TierRecommendations `json:"recommendations"`
}
