package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
	"github.com/songzhibin97/pumpsentinel/internal/tweet"
)

const unknownName = "Unknown"

// Response 分析结果：回复文本与线程
type Response struct {
	Text       string               `json:"text"`
	Tweets     []string             `json:"tweets"`
	Result     *ai.AnalysisResult   `json:"result,omitempty"`
	Assessment *risk.RiskAssessment `json:"assessment,omitempty"`
}

// SecurityAction answers "is this pump.fun token safe" requests.
type SecurityAction struct {
	client   chain.Client
	pump     PumpChecker
	market   MarketReader
	creators CreatorReader
	cleaner  *risk.DataCleaner
	risk     risk.RiskManager
	analyzer RiskAnalyzer
	storage  data.DataStorage
	checkCfg func() error
	log      *slog.Logger
}

// NewSecurityAction wires the handler. storage and checkCfg may be nil.
func NewSecurityAction(
	client chain.Client,
	pump PumpChecker,
	market MarketReader,
	creators CreatorReader,
	riskMgr risk.RiskManager,
	analyzer RiskAnalyzer,
	storage data.DataStorage,
	checkCfg func() error,
	log *slog.Logger,
) *SecurityAction {
	return &SecurityAction{
		client:   client,
		pump:     pump,
		market:   market,
		creators: creators,
		cleaner:  risk.NewDataCleaner(),
		risk:     riskMgr,
		analyzer: analyzer,
		storage:  storage,
		checkCfg: checkCfg,
		log:      log,
	}
}

// Validate resolves the token address and checks it can be analysed. On failure the
// returned reply is what the requester should see; it is empty when nothing should be said.
func (a *SecurityAction) Validate(ctx context.Context, req Request) (string, string, error) {
	address, err := ExtractTokenAddress(req)
	if err != nil {
		return "", "", err
	}

	ok, err := a.pump.IsPumpToken(ctx, address)
	if err != nil {
		a.log.Error("failed to check pump token", "token", address, "err", err)
	}
	if !ok {
		return address, NotPumpReply, fmt.Errorf("%w: %s", ErrNotPumpToken, address)
	}

	if a.checkCfg != nil {
		if err := a.checkCfg(); err != nil {
			return address, ConfigReply, fmt.Errorf("%w: %w", ErrIncompleteConfig, err)
		}
	}
	return address, "", nil
}

type collected struct {
	token   models.TokenInfo
	price   *models.PriceInfo
	holding *models.TokenHoldingInfo
	creator *models.TokenCreator
	sol     float64
}

// Handle runs the full analysis for a validated address. Any failure yields ErrorReply.
func (a *SecurityAction) Handle(ctx context.Context, address string, req Request) (*Response, error) {
	start := time.Now()
	defer metrics.ObserveSince("security", start)

	resp, err := a.handle(ctx, address, req)
	if err != nil {
		a.log.Error("token analysis failed", "token", address, "err", err)
		return &Response{Text: ErrorReply, Tweets: []string{}}, err
	}
	return resp, nil
}

func (a *SecurityAction) handle(ctx context.Context, address string, req Request) (*Response, error) {
	// 1. 并发拉取基础数据
	c, err := a.collect(ctx, address)
	if err != nil {
		return nil, err
	}

	// 2. 数据清洗
	holding := a.cleaner.CleanHoldingData(*c.holding)
	creator, err := a.cleaner.CleanCreatorData(*c.creator, address, c.price, c.sol)
	if err != nil {
		return nil, fmt.Errorf("failed to clean creator data: %w", err)
	}

	// 3. 规则评分
	var marketCap float64
	if c.price != nil {
		marketCap = c.price.MarketCap
	}
	assessment, err := a.risk.AssessRisk(ctx, &risk.TokenData{
		Holdings:  c.holding.Holdings,
		Contract:  c.token.Contract,
		Creator:   *c.creator,
		MarketCap: marketCap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assess risk: %w", err)
	}

	// 4. LLM 分析
	summary := ai.PriceSummary{
		MarketCapTier: creator.MarketCapTier,
		MaturityStage: creator.MaturityStage,
	}
	if c.price != nil {
		summary.Price = c.price.Price
		mc := c.price.MarketCap
		summary.MarketCap = &mc
	}
	result, err := a.analyzer.AnalyzeTokenRisk(ctx, ai.AnalysisInput{
		TokenAddress:   address,
		Creator:        creator,
		CreatorHistory: c.creator.OtherTokens,
		Price:          summary,
		AgeInHours:     creator.AgeInHours,
		Holding:        holding,
		Contract:       c.token.Contract,
	})
	if err != nil {
		return nil, err
	}
	metrics.RiskLevels.WithLabelValues(string(result.RiskLevel)).Inc()

	// 5. 构建线程
	factors := result.RiskFactors
	if len(factors) == 0 {
		factors = assessment.DetailedAnalysis
	}
	thread := tweet.SecurityThread(tweet.SecurityInput{
		Token:          c.token,
		RequestedBy:    req.User,
		TotalHolders:   holding.TotalHolders,
		CreatorTokens:  c.creator.OtherTokens,
		RiskLevel:      result.RiskLevel,
		RiskFactors:    factors,
		Recommendation: result.Recommendation,
	})

	// 6. 保存报告
	a.saveReport(ctx, address, c, result, assessment, thread)

	return &Response{
		Text:       tweet.Response(thread),
		Tweets:     thread,
		Result:     result,
		Assessment: assessment,
	}, nil
}

func (a *SecurityAction) collect(ctx context.Context, address string) (*collected, error) {
	c := &collected{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		token, err := a.tokenInfo(gctx, address)
		if err != nil {
			return err
		}
		c.token = *token
		return nil
	})
	g.Go(func() error {
		price, err := a.market.DetailedPriceInfo(gctx, address)
		if err != nil {
			return fmt.Errorf("failed to get price info: %w", err)
		}
		c.price = price
		return nil
	})
	g.Go(func() error {
		holding, err := a.market.HoldingInfo(gctx, address)
		if err != nil {
			return fmt.Errorf("failed to get holding info: %w", err)
		}
		c.holding = holding
		return nil
	})
	g.Go(func() error {
		creator, err := a.creators.GetCreatorInfo(gctx, address)
		if err != nil {
			return fmt.Errorf("failed to get creator info: %w", err)
		}
		c.creator = creator
		return nil
	})
	g.Go(func() error {
		sol, err := a.market.SolPrice(gctx)
		if err != nil {
			return fmt.Errorf("failed to get sol price: %w", err)
		}
		c.sol = sol
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

// tokenInfo decodes the mint account and takes name and symbol from pump.fun.
func (a *SecurityAction) tokenInfo(ctx context.Context, address string) (*models.TokenInfo, error) {
	contract, err := a.client.MintInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get token info: %w", err)
	}

	info := &models.TokenInfo{Name: unknownName, Symbol: unknownName, Contract: *contract}
	coin, err := a.pump.Coin(ctx, address)
	if err != nil {
		a.log.Warn("token metadata unavailable", "token", address, "err", err)
		return info, nil
	}
	if coin.Name != "" {
		info.Name = coin.Name
	}
	if coin.Symbol != "" {
		info.Symbol = coin.Symbol
	}
	return info, nil
}

func (a *SecurityAction) saveReport(ctx context.Context, address string, c *collected, result *ai.AnalysisResult, assessment *risk.RiskAssessment, thread []string) {
	if a.storage == nil {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		a.log.Error("failed to encode analysis", "token", address, "err", err)
		return
	}

	report := &models.SecurityReport{
		TokenAddress:  address,
		TokenName:     c.token.Name,
		Symbol:        c.token.Symbol,
		Creator:       c.creator.Address,
		RiskLevel:     string(result.RiskLevel),
		RiskScore:     assessment.RiskScore,
		SecurityScore: tweet.SecurityScore(result.RiskLevel),
		Analysis:      string(raw),
		Tweets:        thread,
		CreatedAt:     time.Now(),
	}
	if err := a.storage.SaveSecurityReport(ctx, report); err != nil {
		a.log.Error("failed to save security report", "token", address, "err", err)
	}
}

// Report returns the last stored report for address.
func (a *SecurityAction) Report(ctx context.Context, address string) (*models.SecurityReport, error) {
	if a.storage == nil {
		return nil, data.ErrNotFound
	}
	report, err := a.storage.GetSecurityReport(ctx, address)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return report, err
}
