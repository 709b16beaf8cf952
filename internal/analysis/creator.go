package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/pumpfun"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

const (
	signaturePageSize   = 1000
	maxSignaturePages   = 50
	creatorTokenWorkers = 4
	unknownTokenName    = "Unknown"
)

var creationMarkers = []string{
	"Instruction: Mint",
	"Instruction: Create",
	"Instruction: InitializeMint",
}

// CreatorInfoService 查找代币创建者及其历史发行
type CreatorInfoService struct {
	client  chain.Client
	coins   CoinSource
	history HistorySource
	price   PriceFunc
	log     *slog.Logger
}

func NewCreatorInfoService(client chain.Client, coins CoinSource, history HistorySource, price PriceFunc, log *slog.Logger) *CreatorInfoService {
	return &CreatorInfoService{
		client:  client,
		coins:   coins,
		history: history,
		price:   price,
		log:     log,
	}
}

// GetCreatorInfo never fails; an unknown creator has an empty Address.
func (s *CreatorInfoService) GetCreatorInfo(ctx context.Context, mint string) (*models.TokenCreator, error) {
	coin, err := s.coins.Coin(ctx, mint)
	if err == nil && coin.Creator != "" {
		s.log.Info("creator found on pump.fun", "mint", mint, "creator", coin.Creator)
		return &models.TokenCreator{
			Address:     coin.Creator,
			OtherTokens: s.CreatorTokens(ctx, coin.Creator),
			CurrentToken: &models.CurrentToken{
				CreationTime: coin.CreatedAt(),
				RaydiumPool:  coin.RaydiumPool,
			},
		}, nil
	}
	if err != nil && !errors.Is(err, pumpfun.ErrCoinNotFound) {
		s.log.Warn("pump.fun lookup failed, falling back to chain", "mint", mint, "err", err)
	}

	creator, err := s.creatorFromChain(ctx, mint)
	if err != nil {
		s.log.Error("failed to resolve creator", "mint", mint, "err", err)
		return &models.TokenCreator{OtherTokens: []models.CreatorToken{}}, nil
	}
	return creator, nil
}

func (s *CreatorInfoService) creatorFromChain(ctx context.Context, mint string) (*models.TokenCreator, error) {
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	ok, err := s.isContract(ctx, mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s is not a program owned account", mint)
	}

	sigs, err := s.allSignatures(ctx, mint)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no transactions found for %s", mint)
	}

	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Slot < sigs[j].Slot })

	if len(sigs) > 1 && sigs[0].Slot == sigs[1].Slot {
		s.orderSameSlot(ctx, sigs)
	}

	earliest := sigs[0]
	tx, err := s.client.Transaction(ctx, earliest.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to get creation transaction: %w", err)
	}
	creator := tx.FeePayer()
	if creator == "" {
		return nil, fmt.Errorf("creation transaction %s has no fee payer", earliest.Signature)
	}

	s.log.Info("creator found on chain", "mint", mint, "creator", creator, "signature", earliest.Signature)

	return &models.TokenCreator{
		Address:     creator,
		OtherTokens: s.CreatorTokens(ctx, creator),
		CurrentToken: &models.CurrentToken{
			CreationTime: earliest.BlockTime,
		},
	}, nil
}

// isContract accepts executable accounts and anything not owned by the system program.
func (s *CreatorInfoService) isContract(ctx context.Context, address string) (bool, error) {
	info, err := s.client.AccountInfo(ctx, address)
	if errors.Is(err, chain.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return info.Executable || info.Owner == chain.TokenProgramID || info.Owner != chain.SystemProgramID, nil
}

func (s *CreatorInfoService) allSignatures(ctx context.Context, address string) ([]chain.Signature, error) {
	var (
		all    []chain.Signature
		before string
	)
	for page := 0; page < maxSignaturePages; page++ {
		sigs, err := s.client.Signatures(ctx, address, signaturePageSize, before)
		if err != nil {
			return nil, fmt.Errorf("failed to get signatures: %w", err)
		}
		all = append(all, sigs...)
		if len(sigs) < signaturePageSize {
			break
		}
		before = sigs[len(sigs)-1].Signature
	}
	return all, nil
}

// orderSameSlot puts the transaction carrying a mint/create instruction first
// when the two earliest signatures share a slot and block time.
func (s *CreatorInfoService) orderSameSlot(ctx context.Context, sigs []chain.Signature) {
	var (
		g        errgroup.Group
		tx1, tx2 *chain.Transaction
	)
	g.Go(func() (err error) {
		tx1, err = s.client.Transaction(ctx, sigs[0].Signature)
		return err
	})
	g.Go(func() (err error) {
		tx2, err = s.client.Transaction(ctx, sigs[1].Signature)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("failed to compare same slot transactions", "err", err)
		return
	}

	if !tx1.BlockTime.Equal(tx2.BlockTime) {
		return
	}
	if !hasCreationLog(tx1.Logs) && hasCreationLog(tx2.Logs) {
		sigs[0], sigs[1] = sigs[1], sigs[0]
	}
}

func hasCreationLog(logs []string) bool {
	for _, line := range logs {
		for _, marker := range creationMarkers {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}

// CreatorTokens lists the creator's pump.fun launches, newest first.
// Tokens whose supply cannot be read are skipped.
func (s *CreatorInfoService) CreatorTokens(ctx context.Context, creator string) []models.CreatorToken {
	mints, err := s.history.CreatedMints(ctx, creator)
	if err != nil {
		s.log.Error("failed to get creator tokens", "creator", creator, "err", err)
		return []models.CreatorToken{}
	}

	results := make([]*models.CreatorToken, len(mints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(creatorTokenWorkers)
	for i, m := range mints {
		i, m := i, m
		g.Go(func() error {
			token, err := s.creatorToken(gctx, m.Mint)
			if err != nil {
				s.log.Warn("skipping creator token", "mint", m.Mint, "err", err)
				return nil
			}
			token.Timestamp = m.Timestamp
			results[i] = token
			return nil
		})
	}
	_ = g.Wait()

	tokens := make([]models.CreatorToken, 0, len(results))
	for _, t := range results {
		if t != nil {
			tokens = append(tokens, *t)
		}
	}
	s.log.Info("creator tokens collected", "creator", creator, "found", len(mints), "kept", len(tokens))
	return tokens
}

func (s *CreatorInfoService) creatorToken(ctx context.Context, mint string) (*models.CreatorToken, error) {
	supply, err := s.client.TokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get supply: %w", err)
	}

	token := &models.CreatorToken{
		Name:         unknownTokenName,
		TokenAddress: mint,
		Supply:       supply.Amount,
	}

	var pumpMarketCap float64
	if coin, err := s.coins.Coin(ctx, mint); err == nil {
		if coin.Name != "" {
			token.Name = coin.Name
		}
		pumpMarketCap = coin.USDMarketCap
	}

	if s.price != nil {
		price, err := s.price(ctx, mint)
		if err != nil {
			s.log.Debug("no price for creator token", "mint", mint, "err", err)
		}
		token.Price = price
	}

	switch {
	case pumpMarketCap > 0:
		token.MarketCap = &pumpMarketCap
	case token.Price != nil:
		mcap := *token.Price * supply.Amount
		token.MarketCap = &mcap
	}

	return token, nil
}
