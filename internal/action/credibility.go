package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
)

// RPC 单页签名上限
const signatureLimit = 1000

// CredibilityResult 可信度分析结果
type CredibilityResult struct {
	risk.CredibilityReport
	TokenName    string    `json:"token_name,omitempty"`
	TokenSymbol  string    `json:"token_symbol,omitempty"`
	CreationDate time.Time `json:"creation_date"`
}

// Text renders the chat reply.
func (r *CredibilityResult) Text() string {
	return fmt.Sprintf("Token analysis complete\n\nOverall credibility score: %d/100\n\nRisk factors:\n%s\n\nRecommendations:\n%s",
		r.OverallScore, strings.Join(r.RiskFactors, "\n"), strings.Join(r.Recommendations, "\n"))
}

// CredibilityAction scores a pump.fun token from its on-chain activity.
type CredibilityAction struct {
	client chain.Client
	pump   PumpChecker
	log    *slog.Logger
}

// NewCredibilityAction builds the action. pump may be nil.
func NewCredibilityAction(client chain.Client, pump PumpChecker, log *slog.Logger) *CredibilityAction {
	return &CredibilityAction{client: client, pump: pump, log: log}
}

// AnalyzePumpfunToken treats the mint authority as the creator and the oldest of the
// latest 1000 signatures as the creation time.
func (a *CredibilityAction) AnalyzePumpfunToken(ctx context.Context, address string) (*CredibilityResult, error) {
	start := time.Now()
	defer metrics.ObserveSince("credibility", start)

	address, err := ExtractTokenAddress(Request{TokenAddress: address})
	if err != nil {
		return nil, err
	}

	// 1. 基本信息
	contract, err := a.client.MintInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("token analysis failed: %w", err)
	}
	creator := contract.MintAuthority

	// 2. 交易历史
	sigs, err := a.client.Signatures(ctx, address, signatureLimit, "")
	if err != nil {
		return nil, fmt.Errorf("token analysis failed: %w", err)
	}

	// 3. 创建时间
	var created time.Time
	if len(sigs) > 0 {
		created = sigs[len(sigs)-1].BlockTime
	}

	// 4. 创建者活跃度，查询失败按无创建者计分
	scoredCreator := creator
	creatorSigs := 0
	if creator != "" {
		cs, err := a.client.Signatures(ctx, creator, signatureLimit, "")
		if err != nil {
			a.log.Warn("failed to get creator signatures", "creator", creator, "err", err)
			scoredCreator = ""
		} else {
			creatorSigs = len(cs)
		}
	}

	report := risk.ScoreCredibility(risk.CredibilityInput{
		TokenAddress:          address,
		CreatorAddress:        scoredCreator,
		SignatureCount:        len(sigs),
		CreatorSignatureCount: creatorSigs,
	})
	report.CreatorAddress = creator

	result := &CredibilityResult{CredibilityReport: *report, CreationDate: created}
	if a.pump != nil {
		if coin, err := a.pump.Coin(ctx, address); err == nil {
			result.TokenName = coin.Name
			result.TokenSymbol = coin.Symbol
		}
	}

	a.log.Info("credibility analysis complete", "token", address, "score", result.OverallScore, "risks", len(result.RiskFactors))
	return result, nil
}
