package risk

import (
	"math"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

// PatternCategory 风险模式类别
type PatternCategory string

const (
	CategoryCreator   PatternCategory = "CREATOR"
	CategoryPrice     PatternCategory = "PRICE"
	CategoryHolding   PatternCategory = "HOLDING"
	CategoryContract  PatternCategory = "CONTRACT"
	CategoryMarket    PatternCategory = "MARKET"
	CategoryTechnical PatternCategory = "TECHNICAL"
	CategorySocial    PatternCategory = "SOCIAL"
)

// RiskPattern 已知的风险模式
type RiskPattern struct {
	ID          string          `json:"id"`
	Category    PatternCategory `json:"category"`
	Pattern     string          `json:"pattern"`
	Description string          `json:"description"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	Indicators  []string        `json:"indicators"`
	Mitigations []string        `json:"mitigations"`
}

// PriceSpikeThreshold is the relative move between samples treated as a spike.
const PriceSpikeThreshold = 0.3

// TokenRiskPatterns 风险模式知识库
var TokenRiskPatterns = []RiskPattern{
	{
		ID:          "CREATOR-001",
		Category:    CategoryCreator,
		Pattern:     "Multiple failed projects",
		Description: "The creator has a history of tokens that collapsed in value or were abandoned",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"several tokens down more than 90%", "short token lifetimes", "abandoned social accounts"},
		Mitigations: []string{"verify the creator's public identity", "research previous projects", "check community feedback"},
	},
	{
		ID:          "CREATOR-002",
		Category:    CategoryCreator,
		Pattern:     "Anonymous team",
		Description: "The team is fully anonymous or identity information is opaque",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"no verifiable team information", "freshly created social accounts"},
		Mitigations: []string{"look for trusted endorsements", "check historical contributions"},
	},
	{
		ID:          "CONTRACT-002",
		Category:    CategoryContract,
		Pattern:     "Suspicious authority settings",
		Description: "The owner keeps excessive powers over the token",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"mint authority not revoked", "freeze authority not revoked", "transfers can be paused"},
		Mitigations: []string{"require revoked authorities", "use multisig and timelocks"},
	},
	{
		ID:          "MARKET-002",
		Category:    CategoryMarket,
		Pattern:     "Liquidity risk",
		Description: "Liquidity is thin or highly concentrated",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"small DEX pool", "single trading pair dominates"},
		Mitigations: []string{"track pool depth", "size positions to available liquidity"},
	},
	{
		ID:          "HOLDING-001",
		Category:    CategoryHolding,
		Pattern:     "Highly concentrated holdings",
		Description: "A handful of wallets control most of the supply",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"top 5 wallets above 50%", "team wallets unlocked"},
		Mitigations: []string{"monitor large wallet movements", "check vesting"},
	},
	{
		ID:          "HOLDING-002",
		Category:    CategoryHolding,
		Pattern:     "Unfair token distribution",
		Description: "The initial allocation favours insiders",
		RiskLevel:   RiskMedium,
		Indicators:  []string{"large insider allocation", "no public sale"},
		Mitigations: []string{"review the allocation", "compare with similar launches"},
	},
	{
		ID:          "PRICE-001",
		Category:    CategoryPrice,
		Pattern:     "Abnormal price action",
		Description: "Sudden price spikes or crashes without news",
		RiskLevel:   RiskHigh,
		Indicators:  []string{"moves above 30% between samples", "volume spikes without news"},
		Mitigations: []string{"wait for price to stabilise", "set tight risk limits"},
	},
}

// PricePoint 价格采样
type PricePoint struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// KnowledgeBase matches observed data to known risk patterns.
type KnowledgeBase struct {
	patterns []RiskPattern
}

func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{patterns: TokenRiskPatterns}
}

func (kb *KnowledgeBase) byID(id string) (RiskPattern, bool) {
	for _, p := range kb.patterns {
		if p.ID == id {
			return p, true
		}
	}
	return RiskPattern{}, false
}

// PatternsByCategory returns every pattern of the category.
func (kb *KnowledgeBase) PatternsByCategory(category PatternCategory) []RiskPattern {
	out := make([]RiskPattern, 0)
	for _, p := range kb.patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// PatternsByRiskLevel returns every pattern with the given level.
func (kb *KnowledgeBase) PatternsByRiskLevel(level RiskLevel) []RiskPattern {
	out := make([]RiskPattern, 0)
	for _, p := range kb.patterns {
		if p.RiskLevel == level {
			out = append(out, p)
		}
	}
	return out
}

// MatchCreatorPatterns flags creators whose launches mostly stayed in the MICRO tier.
func (kb *KnowledgeBase) MatchCreatorPatterns(creator *CleanedCreatorData) []RiskPattern {
	if creator == nil || creator.TotalProjects < 2 {
		return nil
	}
	if float64(creator.ProjectsByQuality.Micro) > float64(creator.TotalProjects)/2 {
		if p, ok := kb.byID("CREATOR-001"); ok {
			return []RiskPattern{p}
		}
	}
	return nil
}

// MatchHoldingPatterns flags top-5 concentration above 50%.
func (kb *KnowledgeBase) MatchHoldingPatterns(holding CleanedHoldingData) []RiskPattern {
	if holding.Top5Percentage > 50 {
		if p, ok := kb.byID("HOLDING-001"); ok {
			return []RiskPattern{p}
		}
	}
	return nil
}

// MatchContractPatterns flags retained mint or freeze authority.
func (kb *KnowledgeBase) MatchContractPatterns(contract models.TokenContract) []RiskPattern {
	if contract.MintAuthority == "" && contract.FreezeAuthority == "" {
		return nil
	}
	if p, ok := kb.byID("CONTRACT-002"); ok {
		return []RiskPattern{p}
	}
	return nil
}

// MatchPricePatterns flags spikes in the sampled price history.
func (kb *KnowledgeBase) MatchPricePatterns(history []PricePoint) []RiskPattern {
	if !HasSuddenSpike(history) {
		return nil
	}
	if p, ok := kb.byID("PRICE-001"); ok {
		return []RiskPattern{p}
	}
	return nil
}

// HasSuddenSpike reports a relative move above PriceSpikeThreshold between consecutive samples.
func HasSuddenSpike(history []PricePoint) bool {
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Price
		if prev == 0 {
			continue
		}
		if math.Abs((history[i].Price-prev)/prev) > PriceSpikeThreshold {
			return true
		}
	}
	return false
}
