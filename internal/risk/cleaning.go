package risk

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

var ErrInvalidSolPrice = errors.New("invalid SOL price")

const currentProjectName = "Current Project"

// DataCleaner turns raw holdings and creator history into tiered summaries.
type DataCleaner struct {
	now func() time.Time
}

func NewDataCleaner() *DataCleaner {
	return &DataCleaner{now: time.Now}
}

// ToSol converts a USD amount using the SOL/USD price.
func ToSol(usd, solPrice float64) float64 {
	if solPrice <= 0 {
		return 0
	}
	return decimal.NewFromFloat(usd).Div(decimal.NewFromFloat(solPrice)).InexactFloat64()
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).Div(decimal.NewFromInt(int64(total))).InexactFloat64()
}

// CleanHoldingData separates exchange wallets from regular holders.
func (c *DataCleaner) CleanHoldingData(info models.TokenHoldingInfo) CleanedHoldingData {
	out := CleanedHoldingData{Details: make([]HolderRank, 0, 10)}
	if len(info.Holdings) > 0 {
		out.TotalHolders = info.Holdings[0].TotalHolders
	}

	nonDex := make([]models.TokenHolding, 0, len(info.Holdings))
	for _, h := range info.Holdings {
		if h.IsDex {
			out.DexHoldingPercentage += h.Percentage
			continue
		}
		nonDex = append(nonDex, h)
	}
	out.NonDexHolders = len(nonDex)

	sort.SliceStable(nonDex, func(i, j int) bool {
		return nonDex[i].Percentage > nonDex[j].Percentage
	})

	for i, h := range nonDex {
		if i < 5 {
			out.Top5Percentage += h.Percentage
		}
		if i < 10 {
			out.Top10Percentage += h.Percentage
			out.Details = append(out.Details, HolderRank{Address: h.Address, Percentage: h.Percentage, Rank: i + 1})
		}
	}

	return out
}

// CleanCreatorData buckets the creator's projects by tier. price may be nil.
func (c *DataCleaner) CleanCreatorData(creator models.TokenCreator, tokenAddress string, price *models.PriceInfo, solPrice float64) (*CleanedCreatorData, error) {
	if solPrice <= 0 {
		return nil, ErrInvalidSolPrice
	}

	now := c.now()
	projects := make([]Project, 0, len(creator.OtherTokens)+1)
	for _, t := range creator.OtherTokens {
		mcapUSD := t.MarketCapValue()
		mcapSol := ToSol(mcapUSD, solPrice)
		ts := t.Timestamp
		if ts.IsZero() {
			ts = now
		}
		projects = append(projects, Project{
			Name:         t.Name,
			Address:      t.TokenAddress,
			MarketCapSol: mcapSol,
			MarketCapUSD: mcapUSD,
			Quality:      TierOf(mcapSol),
			Timestamp:    ts,
		})
	}

	var currentMcapSol float64
	if price != nil && price.MarketCap > 0 {
		currentMcapSol = ToSol(price.MarketCap, solPrice)
		if creator.CurrentToken != nil && !containsProject(projects, tokenAddress) {
			projects = append(projects, Project{
				Name:         currentProjectName,
				Address:      tokenAddress,
				MarketCapSol: currentMcapSol,
				MarketCapUSD: price.MarketCap,
				Quality:      TierOf(currentMcapSol),
				Timestamp:    creator.CurrentToken.CreationTime,
			})
		}
	}

	out := &CleanedCreatorData{
		Address:        creator.Address,
		TotalProjects:  len(projects),
		MoonProjects:   make([]Project, 0),
		MarketCapTier:  TierOf(currentMcapSol),
		RecentProjects: make([]Project, 0, 5),
	}

	var totalSol decimal.Decimal
	for _, p := range projects {
		totalSol = totalSol.Add(decimal.NewFromFloat(p.MarketCapSol))
		switch p.Quality {
		case TierMicro:
			out.ProjectsByQuality.Micro++
		case TierSmall:
			out.ProjectsByQuality.Small++
		case TierMedium:
			out.ProjectsByQuality.Medium++
		case TierLarge:
			out.ProjectsByQuality.Large++
			out.MoonProjects = append(out.MoonProjects, p)
		}
	}

	n := out.TotalProjects
	out.QualityDistribution = QualityDistribution{
		Micro:  ratio(out.ProjectsByQuality.Micro, n),
		Small:  ratio(out.ProjectsByQuality.Small, n),
		Medium: ratio(out.ProjectsByQuality.Medium, n),
		Large:  ratio(out.ProjectsByQuality.Large, n),
	}
	if n > 0 {
		out.AvgMarketCap = totalSol.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
		out.SuccessRate = ratio(n-out.ProjectsByQuality.Micro, n)
		out.MoonRate = ratio(out.ProjectsByQuality.Large, n)
	}

	sorted := append([]Project(nil), projects...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	out.RecentProjects = append(out.RecentProjects, sorted...)

	current := creator.CurrentToken
	if current != nil && !current.CreationTime.IsZero() {
		out.AgeInHours = now.Sub(current.CreationTime).Hours()
	}
	// 只有确认未迁移到 Raydium 才算 LAUNCH，缺少当前代币信息时按年龄判断
	switch {
	case current != nil && current.RaydiumPool == nil:
		out.MaturityStage = StageLaunch
	case out.AgeInHours <= 72:
		out.MaturityStage = StageStability
	default:
		out.MaturityStage = StageMaturity
	}

	return out, nil
}

func containsProject(projects []Project, address string) bool {
	for _, p := range projects {
		if p.Address == address {
			return true
		}
	}
	return false
}

// ConvertToSolMetrics re-denominates USD metrics in SOL.
func (c *DataCleaner) ConvertToSolMetrics(m USDMetrics, solPrice float64) (PriceMetrics, error) {
	if solPrice <= 0 {
		return PriceMetrics{}, ErrInvalidSolPrice
	}
	return PriceMetrics{
		USDPrice:       m.USDPrice,
		SolPrice:       ToSol(m.USDPrice, solPrice),
		SolUSDPrice:    solPrice,
		MarketCapInSol: ToSol(m.MarketCapUSD, solPrice),
		Volume24hInSol: ToSol(m.Volume24hUSD, solPrice),
		LiquidityInSol: ToSol(m.LiquidityUSD, solPrice),
	}, nil
}

func (c *DataCleaner) evaluateHealthMetrics(sol PriceMetrics, holding CleanedHoldingData) HealthMetrics {
	var liquidityRatio, volumeRatio float64
	if sol.LiquidityInSol > 0 {
		liquidityRatio = sol.MarketCapInSol / sol.LiquidityInSol
		volumeRatio = sol.Volume24hInSol / sol.LiquidityInSol
	}

	return HealthMetrics{
		Holder: HolderMetrics{
			Count:        holding.TotalHolders,
			Distribution: holding.Top5Percentage,
			IsHealthy:    holding.Top5Percentage <= HealthyConcentrationMax,
		},
		Liquidity: LiquidityMetrics{
			Ratio:     liquidityRatio,
			Depth:     sol.LiquidityInSol,
			IsHealthy: liquidityRatio >= HealthyLiquidityMin && liquidityRatio <= HealthyLiquidityMax,
		},
		Volume: VolumeMetrics{
			Daily:      sol.Volume24hInSol,
			Volatility: volumeRatio,
			IsHealthy:  volumeRatio >= HealthyVolumeMin && volumeRatio <= HealthyVolumeMax,
		},
	}
}

// TimeAdjustmentFor maps token age to a phase and its thresholds.
func (c *DataCleaner) TimeAdjustmentFor(creationTime time.Time) TimeAdjustment {
	if creationTime.IsZero() {
		return TimeAdjustment{Phase: StageMaturity, ExpectedGrowth: 0.01, VolatilityTolerance: 0.1}
	}

	age := c.now().Sub(creationTime).Hours()
	switch {
	case age <= 24:
		return TimeAdjustment{Phase: StageLaunch, ExpectedGrowth: 0.1, VolatilityTolerance: 0.3}
	case age <= 72:
		return TimeAdjustment{Phase: StageStability, ExpectedGrowth: 0.05, VolatilityTolerance: 0.2}
	default:
		return TimeAdjustment{Phase: StageMaturity, ExpectedGrowth: 0.01, VolatilityTolerance: 0.1}
	}
}

func tierRecommendations(health HealthMetrics) TierRecommendations {
	rec := TierRecommendations{RiskLevel: RiskLow, Suggestions: []string{}, WarningFlags: []string{}}

	if !health.Holder.IsHealthy {
		rec.WarningFlags = append(rec.WarningFlags, "Holdings are too concentrated")
		rec.RiskLevel = RiskHigh
	}
	if !health.Liquidity.IsHealthy {
		rec.WarningFlags = append(rec.WarningFlags, "Insufficient liquidity or abnormal market cap to liquidity ratio")
		rec.Suggestions = append(rec.Suggestions, "Watch for liquidity changes")
		rec.RiskLevel = RiskHigh
	}
	if !health.Volume.IsHealthy {
		rec.WarningFlags = append(rec.WarningFlags, "Abnormal trading volume")
		rec.Suggestions = append(rec.Suggestions, "Observe the trading volume trend")
		if rec.RiskLevel != RiskHigh {
			rec.RiskLevel = RiskMedium
		}
	}

	return rec
}

// EvaluateMarketTier combines tier, health and age into one analysis.
func (c *DataCleaner) EvaluateMarketTier(in MarketTierInput, solPrice float64) (*MarketTierAnalysis, error) {
	sol, err := c.ConvertToSolMetrics(in.Price, solPrice)
	if err != nil {
		return nil, err
	}

	holding := c.CleanHoldingData(in.Holdings)
	health := c.evaluateHealthMetrics(sol, holding)
	adj := c.TimeAdjustmentFor(in.CreationTime)

	stage := StageMaturity
	switch {
	case in.RaydiumPool == nil:
		stage = StageLaunch
	case adj.Phase == StageLaunch:
		stage = StageStability
	}

	return &MarketTierAnalysis{
		Tier:            TierOf(sol.MarketCapInSol),
		SolMetrics:      sol,
		HealthMetrics:   health,
		TimeAdjustment:  adj,
		TokenStage:      stage,
		Recommendations: tierRecommendations(health),
	}, nil
}
