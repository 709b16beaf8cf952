package risk

import "math"

// MinTransactions is the signature count below which a token is treated as barely traded.
const MinTransactions = 50

const (
	riskFewTransactions = "Short transaction history, possible liquidity risk"
	riskLowLiquidity    = "Low liquidity score, trading may be inactive"
	riskLowCredibility  = "Low creator credibility, investigate further"
	riskJustCreated     = "Token was just created and lacks market validation"
)

var recommendationFor = map[string]string{
	riskFewTransactions: "Wait for more transaction history before deciding",
	riskLowLiquidity:    "Watch how market activity develops",
	riskLowCredibility:  "Research the creator's other projects",
	riskJustCreated:     "Wait for the market to validate the token before participating",
}

// CredibilityInput 链上活跃度输入
type CredibilityInput struct {
	TokenAddress          string `json:"token_address"`
	CreatorAddress        string `json:"creator_address"`
	SignatureCount        int    `json:"signature_count"`
	CreatorSignatureCount int    `json:"creator_signature_count"`
}

// CredibilityReport 可信度评分结果
type CredibilityReport struct {
	TokenAddress       string   `json:"token_address"`
	CreatorAddress     string   `json:"creator_address,omitempty"`
	TransactionCount   int      `json:"transaction_count"`
	LiquidityScore     int      `json:"liquidity_score"`
	CreatorCredibility int      `json:"creator_credibility"`
	OverallScore       int      `json:"overall_score"`
	RiskFactors        []string `json:"risk_factors"`
	Recommendations    []string `json:"recommendations"`
}

// LiquidityScore buckets the token's signature count.
func LiquidityScore(signatures int) int {
	switch {
	case signatures > 1000:
		return 100
	case signatures > 500:
		return 80
	case signatures > 100:
		return 60
	case signatures > MinTransactions:
		return 40
	default:
		return 20
	}
}

// CreatorCredibility buckets the creator's signature count. No creator scores zero.
func CreatorCredibility(creator string, signatures int) int {
	if creator == "" {
		return 0
	}
	switch {
	case signatures > 1000:
		return 100
	case signatures > 500:
		return 80
	case signatures > 100:
		return 60
	case signatures > 50:
		return 40
	default:
		return 20
	}
}

// OverallScore weights liquidity 0.4, creator 0.3 and activity 0.3.
func OverallScore(liquidity, credibility, transactions int) int {
	txScore := 100.0
	if transactions <= 100 {
		txScore = float64(transactions)
	}
	return int(math.Round(float64(liquidity)*0.4 + float64(credibility)*0.3 + txScore*0.3))
}

func identifyRiskFactors(signatures, liquidity, credibility int) []string {
	risks := make([]string, 0, 4)
	if signatures < 50 {
		risks = append(risks, riskFewTransactions)
	}
	if liquidity < 40 {
		risks = append(risks, riskLowLiquidity)
	}
	if credibility < 40 {
		risks = append(risks, riskLowCredibility)
	}
	if signatures < 10 {
		risks = append(risks, riskJustCreated)
	}
	return risks
}

func recommendations(risks []string) []string {
	out := make([]string, 0, len(risks))
	for _, r := range risks {
		if rec, ok := recommendationFor[r]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// ScoreCredibility produces the pump.fun credibility report.
func ScoreCredibility(in CredibilityInput) *CredibilityReport {
	liquidity := LiquidityScore(in.SignatureCount)
	credibility := CreatorCredibility(in.CreatorAddress, in.CreatorSignatureCount)
	risks := identifyRiskFactors(in.SignatureCount, liquidity, credibility)

	return &CredibilityReport{
		TokenAddress:       in.TokenAddress,
		CreatorAddress:     in.CreatorAddress,
		TransactionCount:   in.SignatureCount,
		LiquidityScore:     liquidity,
		CreatorCredibility: credibility,
		OverallScore:       OverallScore(liquidity, credibility, in.SignatureCount),
		RiskFactors:        risks,
		Recommendations:    recommendations(risks),
	}
}
