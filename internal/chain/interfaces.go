package chain

import (
	"context"
	"errors"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/models"
)

const (
	WrappedSolMint  = "So11111111111111111111111111111111111111112"
	SystemProgramID = "11111111111111111111111111111111"
	TokenProgramID  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

var ErrAccountNotFound = errors.New("account not found")

// Client 链上只读查询
type Client interface {
	// Health checks that the RPC node answers
	Health(ctx context.Context) error

	// TokenSupply returns the mint supply in UI units
	TokenSupply(ctx context.Context, mint string) (*Supply, error)

	// LargestHolders returns the largest token accounts with their owner wallets resolved
	LargestHolders(ctx context.Context, mint string) ([]HolderAccount, error)

	// MintInfo decodes the mint account
	MintInfo(ctx context.Context, mint string) (*models.TokenContract, error)

	// TokenBalance returns the UI balance a wallet holds of mint
	TokenBalance(ctx context.Context, owner, mint string) (float64, error)

	// AccountInfo returns ErrAccountNotFound for empty accounts
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// Signatures pages backwards from before, newest first
	Signatures(ctx context.Context, address string, limit int, before string) ([]Signature, error)

	// Transaction fetches a confirmed transaction
	Transaction(ctx context.Context, signature string) (*Transaction, error)
}

// Supply 代币供应量
type Supply struct {
	Amount   float64 `json:"amount"` // UI 单位
	Raw      uint64  `json:"raw"`
	Decimals uint8   `json:"decimals"`
}

// HolderAccount 大户代币账户
type HolderAccount struct {
	TokenAccount string  `json:"token_account"`
	Owner        string  `json:"owner"`
	Amount       float64 `json:"amount"`
}

type AccountInfo struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	Lamports   uint64 `json:"lamports"`
}

type Signature struct {
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`
	Failed    bool      `json:"failed"`
}

type Transaction struct {
	Signature   string    `json:"signature"`
	Slot        uint64    `json:"slot"`
	BlockTime   time.Time `json:"block_time"`
	AccountKeys []string  `json:"account_keys"`
	Logs        []string  `json:"logs"`
	Failed      bool      `json:"failed"`
}

// FeePayer is the first account key.
func (t *Transaction) FeePayer() string {
	if t == nil || len(t.AccountKeys) == 0 {
		return ""
	}
	return t.AccountKeys[0]
}

// DexAddresses 交易所与 DEX 钱包白名单，持仓统计时单独计算
var DexAddresses = map[string]string{
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1": "Raydium Pool",
	"3xgEGKwqqAVF3A3b2Xc95xJsGG8G5sCLxgAkLqoHzqXg": "Orca Pool",
	"JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB":  "Jupiter Pool",
	"MEisE1HzehtrDpAAT8PnLHjpSSkRYakotTuJRPjTpo8":  "Meteora Pool",
	"A77HErqtfN1hLLpvZ9pCtu66FEtM8BveoaKbbMoZ4RiR": "Bitget Pool",
	"u6PJ8DtQuPFnfmwHbGFULQ4u4EgjDiyYKjVEsynXq2w":  "Gate.io Pool",
	"5tzFkiKscXHK5ZXCGbXZxZY3qhK9NwEHyQZtZdF4jYQN": "Binance Hot Wallet",
	"5VqYBPm3bu9Vw5r4YEVvFZFiGGJvpGGqTHgMbphpz3SE": "OKX Hot Wallet",
	"BxhrajyEevdKyZcP1eiBPcbvxpEkfRt7TaQKSf1UXi6d": "Bybit Hot Wallet",
	"2vxcmWoLy46yEMuJhcPt2nCPUvwrW8SWkFdNzuCRJfdr": "KuCoin Hot Wallet",
	"9BVcYqEQxyccuwznvxXqDkSJFavvTyheiTYk231T1A8S": "MEXC Hot Wallet",
}

func IsDex(address string) bool {
	_, ok := DexAddresses[address]
	return ok
}
