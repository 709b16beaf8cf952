package action

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

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	samoMint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	creator  = "So11111111111111111111111111111111111111112"
)

type fakeClient struct {
	chain.Client
	contract *models.TokenContract
	sigs     map[string][]chain.Signature
	sigErrs  map[string]error
}

func (c *fakeClient) MintInfo(ctx context.Context, mint string) (*models.TokenContract, error) {
	if c.contract == nil {
		return nil, chain.ErrAccountNotFound
	}
	return c.contract, nil
}

func (c *fakeClient) Signatures(ctx context.Context, address string, limit int, before string) ([]chain.Signature, error) {
	if err := c.sigErrs[address]; err != nil {
		return nil, err
	}
	return c.sigs[address], nil
}

type fakePump struct {
	pump  bool
	err   error
	coins map[string]*models.PumpFunCoin
}

func (f *fakePump) IsPumpToken(ctx context.Context, mint string) (bool, error) {
	return f.pump, f.err
}

func (f *fakePump) Coin(ctx context.Context, mint string) (*models.PumpFunCoin, error) {
	coin, ok := f.coins[mint]
	if !ok {
		return nil, errors.New("coin not found")
	}
	return coin, nil
}

type fakeMarket struct {
	price      *models.PriceInfo
	holding    *models.TokenHoldingInfo
	holdingErr error
	sol        float64
}

func (f *fakeMarket) DetailedPriceInfo(ctx context.Context, mint string) (*models.PriceInfo, error) {
	return f.price, nil
}

func (f *fakeMarket) HoldingInfo(ctx context.Context, mint string) (*models.TokenHoldingInfo, error) {
	return f.holding, f.holdingErr
}

func (f *fakeMarket) SolPrice(ctx context.Context) (float64, error) { return f.sol, nil }

type fakeCreators struct {
	creator *models.TokenCreator
}

func (f fakeCreators) GetCreatorInfo(ctx context.Context, mint string) (*models.TokenCreator, error) {
	return f.creator, nil
}

type fakeAnalyzer struct {
	result *ai.AnalysisResult
	got    ai.AnalysisInput
}

func (f *fakeAnalyzer) AnalyzeTokenRisk(ctx context.Context, in ai.AnalysisInput) (*ai.AnalysisResult, error) {
	f.got = in
	return f.result, nil
}

type fakeStorage struct {
	data.DataStorage
	mu      sync.Mutex
	reports map[string]*models.SecurityReport
}

func (s *fakeStorage) SaveSecurityReport(ctx context.Context, report *models.SecurityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reports == nil {
		s.reports = map[string]*models.SecurityReport{}
	}
	s.reports[report.TokenAddress] = report
	return nil
}

func (s *fakeStorage) GetSecurityReport(ctx context.Context, tokenAddress string) (*models.SecurityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[tokenAddress]
	if !ok {
		return nil, data.ErrNotFound
	}
	return r, nil
}

func TestExtractTokenAddress(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    string
		wantErr bool
	}{
		{name: "explicit", req: Request{TokenAddress: samoMint, Text: "ignored " + creator}, want: samoMint},
		{name: "from text", req: Request{Text: "is this safe? " + samoMint + " thanks"}, want: samoMint},
		{name: "no address", req: Request{Text: "hello there"}, wantErr: true},
		{name: "not base58", req: Request{Text: strings.Repeat("O", 40)}, wantErr: true},
		{name: "explicit invalid", req: Request{TokenAddress: "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTokenAddress(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurityAction_Validate(t *testing.T) {
	tests := []struct {
		name      string
		pump      *fakePump
		cfgErr    error
		req       Request
		wantReply string
		wantErr   error
	}{
		{name: "ok", pump: &fakePump{pump: true}, req: Request{Text: samoMint}},
		{name: "no address", pump: &fakePump{pump: true}, req: Request{Text: "hi"}, wantErr: ErrNoAddress},
		{name: "not pump", pump: &fakePump{pump: false}, req: Request{Text: samoMint}, wantReply: NotPumpReply, wantErr: ErrNotPumpToken},
		{name: "pump check fails", pump: &fakePump{err: errors.New("timeout")}, req: Request{Text: samoMint}, wantReply: NotPumpReply, wantErr: ErrNotPumpToken},
		{name: "missing config", pump: &fakePump{pump: true}, cfgErr: errors.New("missing DEEPSEEK_API_KEY"), req: Request{Text: samoMint}, wantReply: ConfigReply, wantErr: ErrIncompleteConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSecurityAction(nil, tt.pump, nil, nil, nil, nil, nil, func() error { return tt.cfgErr }, testLogger)
			address, reply, err := a.Validate(context.Background(), tt.req)
			assert.Equal(t, tt.wantReply, reply)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, samoMint, address)
		})
	}
}

func newSecurityFixture() (*SecurityAction, *fakeMarket, *fakeAnalyzer, *fakeStorage) {
	mc := 250_000.0
	client := &fakeClient{contract: &models.TokenContract{Supply: 1_000_000_000, Decimals: 6, HasMetadata: true}}
	pump := &fakePump{pump: true, coins: map[string]*models.PumpFunCoin{
		samoMint: {Mint: samoMint, Name: "Samoyed", Symbol: "SAMO", Creator: creator},
	}}
	market := &fakeMarket{
		price: &models.PriceInfo{Price: 0.0002, MarketCap: 200_000, Supply: 1_000_000_000},
		holding: &models.TokenHoldingInfo{Holdings: []models.TokenHolding{
			{Address: "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", Percentage: 40, IsDex: true, TotalHolders: 150},
			{Address: "walletA", Percentage: 10, TotalHolders: 150},
			{Address: "walletB", Percentage: 5, TotalHolders: 150},
		}},
		sol: 200,
	}
	creators := fakeCreators{creator: &models.TokenCreator{
		Address: creator,
		OtherTokens: []models.CreatorToken{
			{Name: "Old", TokenAddress: "mintOld", Timestamp: time.Now().Add(-48 * time.Hour), MarketCap: &mc},
		},
		CurrentToken: &models.CurrentToken{CreationTime: time.Now().Add(-2 * time.Hour)},
	}}
	analyzer := &fakeAnalyzer{result: &ai.AnalysisResult{
		RiskLevel:      risk.RiskMedium,
		RiskFactors:    []string{"- concentrated holders"},
		Recommendation: "Size positions carefully.",
	}}
	storage := &fakeStorage{}

	a := NewSecurityAction(client, pump, market, creators,
		risk.NewBasicRiskManager(risk.DefaultRiskParameters()), analyzer, storage, nil, testLogger)
	return a, market, analyzer, storage
}

func TestSecurityAction_Handle(t *testing.T) {
	a, _, analyzer, storage := newSecurityFixture()

	resp, err := a.Handle(context.Background(), samoMint, Request{User: "bob"})
	require.NoError(t, err)

	require.Len(t, resp.Tweets, 6)
	assert.True(t, strings.HasPrefix(resp.Text, "🔍 I've analyzed this token. Here's my detailed analysis:\n\n"))
	assert.Contains(t, resp.Tweets[0], "Security Analysis for Samoyed ($SAMO)")
	assert.Contains(t, resp.Tweets[0], "Requested by @bob")
	assert.Contains(t, resp.Tweets[1], "- Holders: 150")
	assert.Contains(t, resp.Tweets[2], "1. Old")
	assert.Equal(t, "⚠️ Risk Analysis:\n- concentrated holders", resp.Tweets[3])
	assert.Contains(t, resp.Tweets[5], "Security Score: 50/100")
	require.NotNil(t, resp.Assessment)

	// LLM 输入
	assert.Equal(t, samoMint, analyzer.got.TokenAddress)
	require.NotNil(t, analyzer.got.Creator)
	assert.Equal(t, creator, analyzer.got.Creator.Address)
	require.NotNil(t, analyzer.got.Price.MarketCap)
	assert.Equal(t, 200_000.0, *analyzer.got.Price.MarketCap)
	assert.Equal(t, 150, analyzer.got.Holding.TotalHolders)
	assert.True(t, analyzer.got.Contract.HasMetadata)

	report, err := a.Report(context.Background(), samoMint)
	require.NoError(t, err)
	assert.Equal(t, "Samoyed", report.TokenName)
	assert.Equal(t, "SAMO", report.Symbol)
	assert.Equal(t, creator, report.Creator)
	assert.Equal(t, "MEDIUM", report.RiskLevel)
	assert.Equal(t, 50, report.SecurityScore)
	assert.Equal(t, resp.Assessment.RiskScore, report.RiskScore)
	assert.Contains(t, report.Analysis, `"riskLevel":"MEDIUM"`)
	assert.Equal(t, resp.Tweets, report.Tweets)
	assert.Len(t, storage.reports, 1)
}

func TestSecurityAction_HandleFallsBackToRuleFactors(t *testing.T) {
	a, _, analyzer, _ := newSecurityFixture()
	analyzer.result.RiskFactors = nil

	resp, err := a.Handle(context.Background(), samoMint, Request{})
	require.NoError(t, err)
	assert.Equal(t, "⚠️ Risk Analysis:\n"+strings.Join(resp.Assessment.DetailedAnalysis, "\n"), resp.Tweets[3])
	assert.Contains(t, resp.Tweets[0], "Requested by @anonymous")
}

func TestSecurityAction_HandleError(t *testing.T) {
	a, market, _, storage := newSecurityFixture()
	market.holdingErr = errors.New("rpc unavailable")

	resp, err := a.Handle(context.Background(), samoMint, Request{})
	require.Error(t, err)
	assert.Equal(t, ErrorReply, resp.Text)
	assert.Empty(t, resp.Tweets)
	assert.Empty(t, storage.reports)

	_, err = a.Report(context.Background(), samoMint)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestSecurityAction_HandleInvalidSolPrice(t *testing.T) {
	a, market, _, _ := newSecurityFixture()
	market.sol = 0

	resp, err := a.Handle(context.Background(), samoMint, Request{})
	assert.ErrorIs(t, err, risk.ErrInvalidSolPrice)
	assert.Equal(t, ErrorReply, resp.Text)
}

func TestCredibilityAction_AnalyzePumpfunToken(t *testing.T) {
	created := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)

	t.Run("active token", func(t *testing.T) {
		mintSigs := make([]chain.Signature, 120)
		mintSigs[119] = chain.Signature{Signature: "first", BlockTime: created}
		client := &fakeClient{
			contract: &models.TokenContract{MintAuthority: creator},
			sigs: map[string][]chain.Signature{
				samoMint: mintSigs,
				creator:  make([]chain.Signature, 600),
			},
		}
		pump := &fakePump{coins: map[string]*models.PumpFunCoin{samoMint: {Name: "Samoyed", Symbol: "SAMO"}}}

		res, err := NewCredibilityAction(client, pump, testLogger).AnalyzePumpfunToken(context.Background(), samoMint)
		require.NoError(t, err)
		assert.Equal(t, creator, res.CreatorAddress)
		assert.Equal(t, created, res.CreationDate)
		assert.Equal(t, 120, res.TransactionCount)
		assert.Equal(t, 60, res.LiquidityScore)
		assert.Equal(t, 80, res.CreatorCredibility)
		assert.Equal(t, 78, res.OverallScore)
		assert.Empty(t, res.RiskFactors)
		assert.Equal(t, "Samoyed", res.TokenName)
		assert.Equal(t, "SAMO", res.TokenSymbol)
	})

	t.Run("creator lookup fails", func(t *testing.T) {
		client := &fakeClient{
			contract: &models.TokenContract{MintAuthority: creator},
			sigs:     map[string][]chain.Signature{samoMint: make([]chain.Signature, 4)},
			sigErrs:  map[string]error{creator: errors.New("rate limited")},
		}

		res, err := NewCredibilityAction(client, nil, testLogger).AnalyzePumpfunToken(context.Background(), samoMint)
		require.NoError(t, err)
		assert.Equal(t, creator, res.CreatorAddress)
		assert.Equal(t, 0, res.CreatorCredibility)
		assert.Equal(t, 20, res.LiquidityScore)
		assert.Equal(t, 9, res.OverallScore)
		assert.Len(t, res.RiskFactors, 4)
		assert.Len(t, res.Recommendations, 4)
		assert.Contains(t, res.Text(), "Overall credibility score: 9/100")
	})

	t.Run("revoked mint authority", func(t *testing.T) {
		client := &fakeClient{
			contract: &models.TokenContract{},
			sigs:     map[string][]chain.Signature{samoMint: make([]chain.Signature, 200)},
		}

		res, err := NewCredibilityAction(client, nil, testLogger).AnalyzePumpfunToken(context.Background(), samoMint)
		require.NoError(t, err)
		assert.Empty(t, res.CreatorAddress)
		assert.Equal(t, 0, res.CreatorCredibility)
		assert.True(t, res.CreationDate.IsZero())
	})

	t.Run("missing mint", func(t *testing.T) {
		_, err := NewCredibilityAction(&fakeClient{}, nil, testLogger).AnalyzePumpfunToken(context.Background(), samoMint)
		assert.ErrorIs(t, err, chain.ErrAccountNotFound)
	})

	t.Run("bad address", func(t *testing.T) {
		_, err := NewCredibilityAction(&fakeClient{}, nil, testLogger).AnalyzePumpfunToken(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNoAddress)
	})
}
