package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubCompleter struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	messages [][]Message
}

func (s *stubCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.messages = append(s.messages, messages)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

const fourPartReply = `🚨 Token Monitor Alert (1/9)
Token Name: $TEST

👨‍💻 Creator Information (2/9)
new wallet with small holdings

📜 Creator History Record (3/9)
No history

💡 Nyx Risk Analysis (4/9)
high risk, watch liquidity`

func TestSplitThread(t *testing.T) {
	parts, err := SplitThread(fourPartReply)
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.True(t, strings.HasPrefix(parts[1], "👨‍💻"))
	assert.Contains(t, parts[0], "Token Name: $TEST")

	_, err = SplitThread("🚨 only one part\n💡 and two")
	assert.Error(t, err)
}

func TestDecorateThread(t *testing.T) {
	parts, err := SplitThread(fourPartReply)
	require.NoError(t, err)

	out := DecorateThread(parts)
	assert.Contains(t, out[0], "(1/4)")
	assert.Contains(t, out[3], "(4/4)")
	assert.NotContains(t, out[3], "/9)")
	assert.Contains(t, out[1], "new wallet👤")
	assert.Contains(t, out[1], "holdings💰")
	assert.Contains(t, out[3], "liquidity💧")
	assert.Contains(t, out[3], "high risk🔴⚠️")
}

func testTimeline() models.TokenTimeline {
	created := time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC)
	mcap := 250_000.0
	return models.TokenTimeline{
		TokenName:        "TEST",
		TokenAddress:     "Mint111",
		CreatedAt:        created,
		LaunchTime:       created.Add(3 * time.Hour),
		Creator:          "Creator111",
		CreatorWalletAge: models.WalletAge{AgeInHours: 48.3},
		CreatorTokens: []models.CreatorToken{
			{Name: "Older", TokenAddress: "old", Timestamp: created.Add(-48 * time.Hour)},
			{Name: "Newer", TokenAddress: "new", Timestamp: created.Add(-2 * time.Hour), MarketCap: &mcap},
		},
		SuccessfulTokens: 1,
	}
}

func TestBuildThreadPrompt(t *testing.T) {
	prompt := BuildThreadPrompt(testTimeline(), models.CreatorHolding{Balance: 1500, BalanceUSD: 12.5}, time.Now())

	assert.Contains(t, prompt, "Time Difference: 3.00 hours")
	assert.Contains(t, prompt, "Mature Wallet (48.3 hours)")
	assert.Contains(t, prompt, "Current Holdings: 1,500 tokens")
	assert.Contains(t, prompt, "≈ $12.50")
	assert.Contains(t, prompt, "Historical Tokens: 2")
	assert.Contains(t, prompt, "Success Cases: 1")
	assert.Contains(t, prompt, "Market Cap: $250,000.00")
	assert.Less(t, strings.Index(prompt, "1. Newer"), strings.Index(prompt, "2. Older"))

	empty := BuildThreadPrompt(models.TokenTimeline{CreatorWalletAge: models.WalletAge{IsNewWallet: true}}, models.CreatorHolding{}, time.Now())
	assert.Contains(t, empty, "New Wallet (<24h)")
	assert.Contains(t, empty, "No historical token records")
}

func TestThreadWriter_AnalyzeTokenRisk(t *testing.T) {
	llm := &stubCompleter{
		replies: []string{"🚨 truncated (1/4)", fourPartReply},
	}
	w := NewThreadWriter(llm, testLogger)
	w.policy = retry.Policy{Attempts: 3, Base: time.Millisecond}

	thread := w.AnalyzeTokenRisk(context.Background(), testTimeline(), models.CreatorHolding{})
	assert.False(t, IsFailedAnalysis(thread))
	assert.Equal(t, 2, llm.calls)
	assert.True(t, strings.HasPrefix(thread, "🚨"))
	assert.Contains(t, thread, "(4/4)")
	assert.Equal(t, RoleSystem, llm.messages[0][0].Role)
}

func TestThreadWriter_Failure(t *testing.T) {
	boom := errors.New("upstream down")
	llm := &stubCompleter{errs: []error{boom, boom, boom}, replies: []string{""}}
	w := NewThreadWriter(llm, testLogger)
	w.policy = retry.Policy{Attempts: 3, Base: time.Millisecond}

	thread := w.AnalyzeTokenRisk(context.Background(), testTimeline(), models.CreatorHolding{})
	assert.True(t, IsFailedAnalysis(thread))
	assert.True(t, strings.HasSuffix(thread, ". Please try again later."))
	assert.Contains(t, thread, "upstream down")
	assert.Equal(t, 3, llm.calls)
}

func securityInput() AnalysisInput {
	return AnalysisInput{
		TokenAddress: "Mint111",
		Creator: &risk.CleanedCreatorData{
			Address:           "Creator111",
			TotalProjects:     3,
			ProjectsByQuality: risk.QualityCounts{Micro: 2, Large: 1},
			MoonProjects:      []risk.Project{{Name: "Moon", MarketCapSol: 3000, MarketCapUSD: 600000}},
			SuccessRate:       1.0 / 3,
			MoonRate:          1.0 / 3,
		},
		Holding:  risk.CleanedHoldingData{TotalHolders: 100, NonDexHolders: 90, Top5Percentage: 62},
		Contract: models.TokenContract{MintAuthority: "auth"},
		Price:    PriceSummary{Price: 0.0001, MarketCapTier: risk.TierMicro, MaturityStage: risk.StageLaunch},
	}
}

func TestSecurityAnalyzer_MatchPatterns(t *testing.T) {
	a := NewSecurityAnalyzer(&stubCompleter{}, risk.NewKnowledgeBase(), testLogger)
	in := securityInput()
	in.PriceHistory = []risk.PricePoint{{Price: 1}, {Price: 2}}

	ids := make([]string, 0)
	for _, p := range a.MatchPatterns(in) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"CREATOR-001", "HOLDING-001", "CONTRACT-002", "PRICE-001"}, ids)
}

func TestSecurityAnalyzer_AnalyzeTokenRisk(t *testing.T) {
	reply := "```json\n" + `{
		"tokenAnalysis": {"riskLevel": "medium", "riskFactors": ["thin liquidity"], "positiveFactors": ["active"]},
		"creatorAnalysis": {"trustLevel": "LOW", "riskPatterns": ["serial launches"], "trackRecord": "poor"},
		"riskLevel": "MEDIUM",
		"recommendation": "small position only"
	}` + "\n```"
	llm := &stubCompleter{replies: []string{reply}}
	a := NewSecurityAnalyzer(llm, risk.NewKnowledgeBase(), testLogger)

	result, err := a.AnalyzeTokenRisk(context.Background(), securityInput())
	require.NoError(t, err)
	assert.Equal(t, risk.RiskMedium, result.RiskLevel)
	assert.Equal(t, risk.RiskMedium, result.TokenAnalysis.RiskLevel)
	assert.Equal(t, risk.RiskLow, result.CreatorAnalysis.TrustLevel)
	assert.Equal(t, []string{"thin liquidity", "serial launches"}, result.RiskFactors)
	assert.Equal(t, "small position only", result.Recommendation)
	assert.Len(t, result.MatchedPatterns, 3)

	prompt := llm.messages[0][1].Content
	assert.Contains(t, prompt, "Failed Projects: 2")
	assert.Contains(t, prompt, "- Moon: Market Cap 3000.00 SOL ($600000.00)")
	assert.Contains(t, prompt, "Highly concentrated holdings")
	assert.Contains(t, prompt, "Mint Authority: auth")
}

func TestSecurityAnalyzer_Fallbacks(t *testing.T) {
	a := NewSecurityAnalyzer(&stubCompleter{replies: []string{"I cannot answer that"}}, risk.NewKnowledgeBase(), testLogger)
	result, err := a.AnalyzeTokenRisk(context.Background(), securityInput())
	require.NoError(t, err)
	assert.Equal(t, risk.RiskHigh, result.RiskLevel)
	assert.Equal(t, []string{"Error parsing response"}, result.RiskFactors)
	assert.NotEmpty(t, result.MatchedPatterns)

	failing := NewSecurityAnalyzer(&stubCompleter{errs: []error{errors.New("down")}, replies: []string{""}}, risk.NewKnowledgeBase(), testLogger)
	_, err = failing.AnalyzeTokenRisk(context.Background(), securityInput())
	assert.Error(t, err)
}

func TestNormalizeRiskLevel(t *testing.T) {
	tests := map[string]risk.RiskLevel{
		"LOW":    risk.RiskLow,
		" low ":  risk.RiskLow,
		"Medium": risk.RiskMedium,
		"中":      risk.RiskMedium,
		"HIGH":   risk.RiskHigh,
		"":       risk.RiskHigh,
		"weird":  risk.RiskHigh,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRiskLevel(in), in)
	}
}

func TestNormalizeTrustLevel(t *testing.T) {
	tests := map[string]risk.RiskLevel{
		"HIGH":   risk.RiskHigh,
		" high ": risk.RiskHigh,
		"Medium": risk.RiskMedium,
		"LOW":    risk.RiskLow,
		"":       risk.RiskLow,
		"weird":  risk.RiskLow,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTrustLevel(in), in)
	}
}

func TestParseAnalysis_TrustLevelDefaultsLow(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty creator analysis", reply: `{"creatorAnalysis":{},"riskLevel":"MEDIUM"}`},
		{name: "garbled trust level", reply: `{"creatorAnalysis":{"trustLevel":"very trustworthy"}}`},
		{name: "missing creator analysis", reply: `{"riskLevel":"LOW"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseAnalysis(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, risk.RiskLow, result.CreatorAnalysis.TrustLevel)
		})
	}
}
