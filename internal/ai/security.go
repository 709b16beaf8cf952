package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
)

const securitySystemPrompt = "You are a professional Solana token security analyst. " +
	"Evaluate both the token and its creator from the data provided and answer strictly in the requested JSON format."

// PriceSummary 当前代币价格与分层
type PriceSummary struct {
	Price         float64            `json:"price"`
	MarketCap     *float64           `json:"market_cap,omitempty"`
	MarketCapTier risk.MarketTier    `json:"market_cap_tier"`
	MaturityStage risk.MaturityStage `json:"maturity_stage"`
}

// AnalysisInput 安全分析的全部输入
type AnalysisInput struct {
	TokenAddress   string                   `json:"token_address"`
	Creator        *risk.CleanedCreatorData `json:"creator"`
	CreatorHistory []models.CreatorToken    `json:"creator_history"`
	Price          PriceSummary             `json:"price"`
	AgeInHours     float64                  `json:"age_in_hours"`
	Holding        risk.CleanedHoldingData  `json:"holding"`
	Contract       models.TokenContract     `json:"contract"`
	PriceHistory   []risk.PricePoint        `json:"price_history,omitempty"`
}

type TokenAnalysis struct {
	RiskLevel               risk.RiskLevel `json:"riskLevel"`
	RiskFactors             []string       `json:"riskFactors"`
	PositiveFactors         []string       `json:"positiveFactors"`
	LiquidityAssessment     string         `json:"liquidityAssessment"`
	HoldingAssessment       string         `json:"holdingAssessment"`
	MaturityAssessment      string         `json:"maturityAssessment"`
	MarketCapTierAssessment string         `json:"marketCapTierAssessment"`
}

type CreatorAnalysis struct {
	TrustLevel             risk.RiskLevel `json:"trustLevel"`
	SuccessRate            string         `json:"successRate"`
	RiskPatterns           []string       `json:"riskPatterns"`
	TrackRecord            string         `json:"trackRecord"`
	MoonProjectsAssessment string         `json:"moonProjectsAssessment,omitempty"`
}

// AnalysisResult LLM 结构化分析结果
type AnalysisResult struct {
	RiskLevel       risk.RiskLevel     `json:"riskLevel"`
	RiskFactors     []string           `json:"riskFactors"`
	Recommendation  string             `json:"recommendation"`
	MatchedPatterns []risk.RiskPattern `json:"matchedPatterns"`
	TokenAnalysis   TokenAnalysis      `json:"tokenAnalysis"`
	CreatorAnalysis CreatorAnalysis    `json:"creatorAnalysis"`
}

// SecurityAnalyzer combines knowledge base matches with an LLM review.
type SecurityAnalyzer struct {
	llm Completer
	kb  *risk.KnowledgeBase
	log *slog.Logger
}

func NewSecurityAnalyzer(llm Completer, kb *risk.KnowledgeBase, log *slog.Logger) *SecurityAnalyzer {
	return &SecurityAnalyzer{llm: llm, kb: kb, log: log}
}

// AnalyzeTokenRisk fails only when the LLM call fails; an unreadable reply yields ConservativeResult.
func (a *SecurityAnalyzer) AnalyzeTokenRisk(ctx context.Context, in AnalysisInput) (*AnalysisResult, error) {
	patterns := a.MatchPatterns(in)
	prompt := BuildSecurityPrompt(in, patterns)

	resp, err := a.llm.Complete(ctx, []Message{
		{Role: RoleSystem, Content: securitySystemPrompt},
		{Role: RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze token risk: %w", err)
	}

	result, err := ParseAnalysis(resp)
	if err != nil {
		a.log.Error("failed to parse analysis response", "token", in.TokenAddress, "err", err, "response", resp)
		result = ConservativeResult()
	}
	result.MatchedPatterns = patterns
	return result, nil
}

// MatchPatterns collects knowledge base hits, one per pattern id.
func (a *SecurityAnalyzer) MatchPatterns(in AnalysisInput) []risk.RiskPattern {
	var all []risk.RiskPattern
	all = append(all, a.kb.MatchCreatorPatterns(in.Creator)...)
	all = append(all, a.kb.MatchHoldingPatterns(in.Holding)...)
	all = append(all, a.kb.MatchContractPatterns(in.Contract)...)
	all = append(all, a.kb.MatchPricePatterns(in.PriceHistory)...)

	seen := make(map[string]bool, len(all))
	out := make([]risk.RiskPattern, 0, len(all))
	for _, p := range all {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

type rawAnalysis struct {
	TokenAnalysis   *TokenAnalysis   `json:"tokenAnalysis"`
	CreatorAnalysis *CreatorAnalysis `json:"creatorAnalysis"`
	RiskLevel       string           `json:"riskLevel"`
	Recommendation  string           `json:"recommendation"`
}

// ParseAnalysis decodes the JSON reply, tolerating markdown fences.
func ParseAnalysis(resp string) (*AnalysisResult, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripFences(resp)), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	result := &AnalysisResult{
		RiskLevel:      NormalizeRiskLevel(raw.RiskLevel),
		Recommendation: raw.Recommendation,
		RiskFactors:    []string{},
	}
	result.CreatorAnalysis.TrustLevel = risk.RiskLow
	if raw.TokenAnalysis != nil {
		result.TokenAnalysis = *raw.TokenAnalysis
		result.TokenAnalysis.RiskLevel = NormalizeRiskLevel(string(raw.TokenAnalysis.RiskLevel))
		result.RiskFactors = append(result.RiskFactors, raw.TokenAnalysis.RiskFactors...)
	}
	if raw.CreatorAnalysis != nil {
		result.CreatorAnalysis = *raw.CreatorAnalysis
		result.CreatorAnalysis.TrustLevel = NormalizeTrustLevel(string(raw.CreatorAnalysis.TrustLevel))
		result.RiskFactors = append(result.RiskFactors, raw.CreatorAnalysis.RiskPatterns...)
	}
	return result, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

// NormalizeRiskLevel maps free form levels to HIGH/MEDIUM/LOW; unknown is HIGH.
func NormalizeRiskLevel(level string) risk.RiskLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "LOW", "低":
		return risk.RiskLow
	case "MEDIUM", "中":
		return risk.RiskMedium
	default:
		return risk.RiskHigh
	}
}

// NormalizeTrustLevel maps free form trust levels to HIGH/MEDIUM/LOW; unknown is LOW.
func NormalizeTrustLevel(level string) risk.RiskLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "HIGH", "高":
		return risk.RiskHigh
	case "MEDIUM", "中":
		return risk.RiskMedium
	default:
		return risk.RiskLow
	}
}

// ConservativeResult is returned when the reply cannot be parsed.
func ConservativeResult() *AnalysisResult {
	return &AnalysisResult{
		RiskLevel:       risk.RiskHigh,
		RiskFactors:     []string{"Error parsing response"},
		Recommendation:  "Due to analysis error, please proceed with caution",
		MatchedPatterns: []risk.RiskPattern{},
		TokenAnalysis: TokenAnalysis{
			RiskLevel:               risk.RiskHigh,
			RiskFactors:             []string{"Parse error"},
			PositiveFactors:         []string{},
			LiquidityAssessment:     "Unable to assess",
			HoldingAssessment:       "Unable to assess",
			MaturityAssessment:      "Unable to assess",
			MarketCapTierAssessment: "Unable to assess",
		},
		CreatorAnalysis: CreatorAnalysis{
			TrustLevel:             risk.RiskLow,
			SuccessRate:            "Unable to assess",
			RiskPatterns:           []string{"Data parsing failed"},
			TrackRecord:            "Unable to assess",
			MoonProjectsAssessment: "Unable to assess",
		},
	}
}

// BuildSecurityPrompt embeds the cleaned data and matched patterns into the JSON contract prompt.
func BuildSecurityPrompt(in AnalysisInput, patterns []risk.RiskPattern) string {
	creator := in.Creator
	if creator == nil {
		creator = &risk.CleanedCreatorData{}
	}

	var b strings.Builder
	b.WriteString("Please perform a comprehensive risk analysis for the following token, evaluating both the token itself and its creator:\n\n")

	marketCap := "Unknown"
	if in.Price.MarketCap != nil {
		marketCap = fmt.Sprintf("%.2f", *in.Price.MarketCap)
	}
	tier := string(in.Price.MarketCapTier)
	if tier == "" {
		tier = "Unknown"
	}

	fmt.Fprintf(&b, `1. Current Token Basic Information:
- Contract Address: %s
- Current Price: $%g
- Market Cap: $%s
- Market Cap Tier: %s (MICRO: <100 SOL, SMALL: 100-500 SOL, MEDIUM: 500-2500 SOL, LARGE: >2500 SOL)
- Token Age: %.2f hours
- Maturity Stage: %s (LAUNCH: ≤24h, STABILITY: 24-72h, MATURITY: >72h)
- Mint Authority: %s
- Freeze Authority: %s

`, in.TokenAddress, in.Price.Price, marketCap, tier, in.AgeInHours, in.Price.MaturityStage,
		authority(in.Contract.MintAuthority), authority(in.Contract.FreezeAuthority))

	fmt.Fprintf(&b, `2. Current Token Holding Distribution:
- Total Holders: %d
- Non-DEX Holders: %d
- Top 5 Holdings Percentage: %.2f%%
`, in.Holding.TotalHolders, in.Holding.NonDexHolders, in.Holding.Top5Percentage)
	for i, h := range in.Holding.Details {
		fmt.Fprintf(&b, "- Top %d Holder: %.2f%%\n", i+1, h.Percentage)
	}

	q := creator.ProjectsByQuality
	fmt.Fprintf(&b, `
3. Creator History Analysis:
- Creator Wallet Address: %s
- Total Historical Tokens: %d
- Project Quality Distribution:
  - Failed Projects: %d
  - Low Quality Projects: %d
  - Medium Quality Projects: %d
  - High Quality Projects: %d
  - Moon Projects: %d
- Success Rate: %.2f%%
- Moon Rate: %.2f%%

`, creator.Address, len(in.CreatorHistory), q.Micro, q.Small, q.Medium, q.Large,
		len(creator.MoonProjects), creator.SuccessRate*100, creator.MoonRate*100)

	if len(creator.MoonProjects) > 0 {
		b.WriteString("Moon Projects List:\n")
		for _, p := range creator.MoonProjects {
			fmt.Fprintf(&b, "- %s: Market Cap %.2f SOL ($%.2f)\n", p.Name, p.MarketCapSol, p.MarketCapUSD)
		}
	} else {
		b.WriteString("No moon projects yet\n")
	}

	b.WriteString("\n4. Identified Risk Patterns:\n")
	if len(patterns) == 0 {
		b.WriteString("- None\n")
	}
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s: %s\n  Risk Indicators: %s\n", p.Pattern, p.Description, strings.Join(p.Indicators, ", "))
	}

	b.WriteString(`
Please analyze in detail from the following dimensions:

1. Token Security Analysis:
- Token Age and Maturity Assessment
  * New tokens (<24h) require special attention to initial price volatility and holding distribution changes
  * Stability period (24-72h) focus on market acceptance and holding distribution
  * Maturity period (>72h) evaluate long-term potential and market recognition
- Market Cap Tier Assessment
  * MICRO (<100 SOL): Extremely high risk, focus on liquidity and price manipulation risks
  * SMALL (100-500 SOL): High risk, monitor holding concentration and market depth
  * MEDIUM (500-2500 SOL): Medium risk, evaluate growth potential and market stability
  * LARGE (>2500 SOL): Relatively low risk, focus on long-term value and market impact
- Holding Distribution Concentration Analysis
- Liquidity Risk Assessment
- Potential Market Manipulation Risk Analysis
- Contract Security Assessment (if relevant risk patterns exist)

2. Creator Reputation Analysis:
- Historical Project Success Rate Assessment
- Token Issuance Frequency Analysis
- Historical Token Market Cap Performance Analysis
- Moon Project Ratio and Performance
- Overall Creator Credibility Assessment

Please return the analysis result in JSON format with the following fields:
{
    "tokenAnalysis": {
        "riskLevel": "HIGH/MEDIUM/LOW",
        "riskFactors": ["risk1", "risk2"],
        "positiveFactors": ["advantage1", "advantage2"],
        "liquidityAssessment": "liquidity status description",
        "holdingAssessment": "holding distribution status description",
        "maturityAssessment": "assessment based on token age",
        "marketCapTierAssessment": "assessment based on market cap tier"
    },
    "creatorAnalysis": {
        "trustLevel": "HIGH/MEDIUM/LOW",
        "successRate": "success rate assessment description",
        "riskPatterns": ["risk behavior1", "risk behavior2"],
        "trackRecord": "historical record assessment description",
        "moonProjectsAssessment": "moon projects performance description"
    },
    "riskLevel": "HIGH/MEDIUM/LOW",
    "recommendation": "specific investment recommendation"
}`)

	return b.String()
}

func authority(a string) string {
	if a == "" {
		return "revoked"
	}
	return a
}
