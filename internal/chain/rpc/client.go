package rpc

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/models"
)

// Client implements chain.Client on top of solana-go.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

var _ chain.Client = (*Client)(nil)

// NewClient dials endpoint; rps <= 0 disables client side throttling.
func NewClient(endpoint string, rps float64, burst int) *Client {
	var c *rpc.Client
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		c = rpc.NewWithCustomRPCClient(rpc.NewWithLimiter(endpoint, rate.Limit(rps), burst))
	} else {
		c = rpc.New(endpoint)
	}
	return &Client{rpc: c, commitment: rpc.CommitmentConfirmed}
}

func (c *Client) Health(ctx context.Context) error {
	if _, err := c.rpc.GetHealth(ctx); err != nil {
		return fmt.Errorf("failed to check rpc health: %w", err)
	}
	return nil
}

func uiAmount(raw string, decimals uint8) float64 {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return d.Shift(-int32(decimals)).InexactFloat64()
}

func (c *Client) TokenSupply(ctx context.Context, mint string) (*chain.Supply, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	out, err := c.rpc.GetTokenSupply(ctx, mintKey, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get token supply: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("empty token supply for %s", mint)
	}

	raw, _ := strconv.ParseUint(out.Value.Amount, 10, 64)
	return &chain.Supply{
		Amount:   uiAmount(out.Value.Amount, out.Value.Decimals),
		Raw:      raw,
		Decimals: out.Value.Decimals,
	}, nil
}

// LargestHolders resolves token account owners with a single getMultipleAccounts call.
func (c *Client) LargestHolders(ctx context.Context, mint string) ([]chain.HolderAccount, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	out, err := c.rpc.GetTokenLargestAccounts(ctx, mintKey, c.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get largest accounts: %w", err)
	}
	if out == nil || len(out.Value) == 0 {
		return []chain.HolderAccount{}, nil
	}

	keys := make([]solana.PublicKey, 0, len(out.Value))
	holders := make([]chain.HolderAccount, 0, len(out.Value))
	for _, acct := range out.Value {
		if acct == nil {
			continue
		}
		keys = append(keys, acct.Address)
		holders = append(holders, chain.HolderAccount{
			TokenAccount: acct.Address.String(),
			Owner:        acct.Address.String(),
			Amount:       uiAmount(acct.Amount, acct.Decimals),
		})
	}

	accounts, err := c.rpc.GetMultipleAccounts(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to get token account owners: %w", err)
	}
	for i, acct := range accounts.Value {
		if i >= len(holders) || acct == nil || acct.Data == nil {
			continue
		}
		var ta token.Account
		if err := ta.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data.GetBinary())); err != nil {
			continue
		}
		holders[i].Owner = ta.Owner.String()
	}

	return holders, nil
}

func (c *Client) MintInfo(ctx context.Context, mint string) (*models.TokenContract, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	out, err := c.rpc.GetAccountInfo(ctx, mintKey)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, chain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get mint account: %w", err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, chain.ErrAccountNotFound
	}

	var m token.Mint
	if err := m.UnmarshalWithDecoder(bin.NewBinDecoder(out.Value.Data.GetBinary())); err != nil {
		return nil, fmt.Errorf("failed to decode mint account: %w", err)
	}

	contract := &models.TokenContract{
		Supply:   uiAmount(strconv.FormatUint(m.Supply, 10), m.Decimals),
		Decimals: m.Decimals,
	}
	if m.MintAuthority != nil {
		contract.MintAuthority = m.MintAuthority.String()
	}
	if m.FreezeAuthority != nil {
		contract.FreezeAuthority = m.FreezeAuthority.String()
	}

	if metadata, _, err := solana.FindTokenMetadataAddress(mintKey); err == nil {
		if _, err := c.rpc.GetAccountInfo(ctx, metadata); err == nil {
			contract.HasMetadata = true
		}
	}

	return contract, nil
}

// TokenBalance reads the associated token account and falls back to scanning the owner's accounts.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint address: %w", err)
	}

	if ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey); err == nil {
		out, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commitment)
		if err == nil && out != nil && out.Value != nil {
			return uiAmount(out.Value.Amount, out.Value.Decimals), nil
		}
	}

	accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, ownerKey,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: c.commitment},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts by owner: %w", err)
	}
	if accounts == nil || len(accounts.Value) == 0 {
		return 0, nil
	}

	var raw uint64
	for _, acct := range accounts.Value {
		if acct == nil || acct.Account.Data == nil {
			continue
		}
		var ta token.Account
		if err := ta.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Account.Data.GetBinary())); err != nil {
			continue
		}
		raw += ta.Amount
	}
	if raw == 0 {
		return 0, nil
	}

	supply, err := c.TokenSupply(ctx, mint)
	if err != nil {
		return 0, err
	}
	return uiAmount(strconv.FormatUint(raw, 10), supply.Decimals), nil
}

func (c *Client) AccountInfo(ctx context.Context, address string) (*chain.AccountInfo, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	out, err := c.rpc.GetAccountInfo(ctx, key)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, chain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, chain.ErrAccountNotFound
	}

	return &chain.AccountInfo{
		Address:    address,
		Owner:      out.Value.Owner.String(),
		Executable: out.Value.Executable,
		Lamports:   out.Value.Lamports,
	}, nil
}

func (c *Client) Signatures(ctx context.Context, address string, limit int, before string) ([]chain.Signature, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: c.commitment}
	if limit > 0 {
		opts.Limit = &limit
	}
	if before != "" {
		sig, err := solana.SignatureFromBase58(before)
		if err != nil {
			return nil, fmt.Errorf("invalid before signature: %w", err)
		}
		opts.Before = sig
	}

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures: %w", err)
	}

	sigs := make([]chain.Signature, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		item := chain.Signature{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			item.BlockTime = s.BlockTime.Time()
		}
		sigs = append(sigs, item)
	}
	return sigs, nil
}

func (c *Client) Transaction(ctx context.Context, signature string) (*chain.Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if out == nil || out.Transaction == nil {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	result := &chain.Transaction{
		Signature:   signature,
		Slot:        out.Slot,
		AccountKeys: make([]string, 0, len(tx.Message.AccountKeys)),
	}
	for _, key := range tx.Message.AccountKeys {
		result.AccountKeys = append(result.AccountKeys, key.String())
	}
	if out.BlockTime != nil {
		result.BlockTime = out.BlockTime.Time()
	}
	if out.Meta != nil {
		// v0 交易的地址表：先可写后只读
		for _, key := range out.Meta.LoadedAddresses.Writable {
			result.AccountKeys = append(result.AccountKeys, key.String())
		}
		for _, key := range out.Meta.LoadedAddresses.ReadOnly {
			result.AccountKeys = append(result.AccountKeys, key.String())
		}
		result.Logs = out.Meta.LogMessages
		result.Failed = out.Meta.Err != nil
	}

	return result, nil
}
