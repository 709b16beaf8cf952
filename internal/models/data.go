package models

import "time"

// NewTokenEvent 监控到的新池子事件
type NewTokenEvent struct {
	TokenAddress string    `json:"token_address"`
	Signature    string    `json:"signature"`
	Timestamp    time.Time `json:"timestamp"`
	SolAmount    float64   `json:"sol_amount"`
	TokenAmount  float64   `json:"token_amount"`
}

// PumpFunCoin pump.fun 返回的代币信息
type PumpFunCoin struct {
	Mint                 string  `json:"mint"`
	Name                 string  `json:"name"`
	Symbol               string  `json:"symbol"`
	Creator              string  `json:"creator"`
	CreatedTimestamp     int64   `json:"created_timestamp"` // 毫秒
	RaydiumPool          *string `json:"raydium_pool"`
	TotalSupply          float64 `json:"total_supply"`
	MarketCap            float64 `json:"market_cap"`
	USDMarketCap         float64 `json:"usd_market_cap"`
	VirtualSolReserves   float64 `json:"virtual_sol_reserves"`
	VirtualTokenReserves float64 `json:"virtual_token_reserves"`
	BondingCurve         string  `json:"bonding_curve"`
	Complete             bool    `json:"complete"`
	IsCurrentlyLive      bool    `json:"is_currently_live"`
}

// CreatedAt returns the launch time reported by pump.fun.
func (c *PumpFunCoin) CreatedAt() time.Time {
	if c.CreatedTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.CreatedTimestamp)
}

// WalletAge 钱包年龄
type WalletAge struct {
	CreatedAt   time.Time `json:"created_at"`
	IsNewWallet bool      `json:"is_new_wallet"`
	AgeInHours  float64   `json:"age_in_hours"`
}

// CreatorHolding 创建者对当前代币的持仓
type CreatorHolding struct {
	Balance    float64 `json:"balance"`
	BalanceUSD float64 `json:"balance_usd"`
}

// CreatorToken 创建者历史发行的代币
type CreatorToken struct {
	Name         string    `json:"name"`
	TokenAddress string    `json:"token_address"`
	Timestamp    time.Time `json:"timestamp"`
	Price        *float64  `json:"price,omitempty"`
	Supply       float64   `json:"supply"`
	MarketCap    *float64  `json:"market_cap,omitempty"`
}

// MarketCapValue returns the market cap or zero when it is unknown.
func (t CreatorToken) MarketCapValue() float64 {
	if t.MarketCap == nil {
		return 0
	}
	return *t.MarketCap
}

// TokenTimeline 监控流程里 LLM 需要的全部数据
type TokenTimeline struct {
	TokenName        string         `json:"token_name"`
	TokenAddress     string         `json:"token_address"`
	CreatedAt        time.Time      `json:"created_at"`
	LaunchTime       time.Time      `json:"launch_time"`
	Creator          string         `json:"creator"`
	CreatorWalletAge WalletAge      `json:"creator_wallet_age"`
	CreatorHolding   CreatorHolding `json:"creator_holding"`
	CreatorTokens    []CreatorToken `json:"creator_tokens"`
	SuccessfulTokens int            `json:"successful_tokens"`
}

// CurrentToken 当前分析代币的创建信息
type CurrentToken struct {
	CreationTime time.Time `json:"creation_time"`
	RaydiumPool  *string   `json:"raydium_pool"`
}

// TokenCreator 创建者及其历史项目
type TokenCreator struct {
	Address      string         `json:"address"`
	OtherTokens  []CreatorToken `json:"other_tokens"`
	CurrentToken *CurrentToken  `json:"current_token,omitempty"`
}

// TokenHolding 单个持有人
type TokenHolding struct {
	Address      string  `json:"address"` // 所有者钱包地址，而不是代币账户
	Amount       float64 `json:"amount"`
	Percentage   float64 `json:"percentage"`
	IsDex        bool    `json:"is_dex"`
	TotalHolders int     `json:"total_holders"`
}

// TokenHoldingInfo 持仓分布
type TokenHoldingInfo struct {
	Holdings             []TokenHolding `json:"holdings"`
	Top5NonDexPercentage float64        `json:"top5_non_dex_percentage"`
}

// PriceInfo 价格与市值
type PriceInfo struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Supply    float64 `json:"supply"`
}

// TokenContract 链上 mint 账户信息
type TokenContract struct {
	HasMetadata     bool    `json:"has_metadata"`
	MintAuthority   string  `json:"mint_authority,omitempty"`
	FreezeAuthority string  `json:"freeze_authority,omitempty"`
	Supply          float64 `json:"supply"`
	Decimals        uint8   `json:"decimals"`
}

// TokenInfo 代币基本信息
type TokenInfo struct {
	Name     string        `json:"name"`
	Symbol   string        `json:"symbol"`
	Contract TokenContract `json:"contract"`
}

// TokenLaunchedEvent 监控流程处理完一个代币后的事件
type TokenLaunchedEvent struct {
	TokenAddress    string    `json:"token_address"`
	TokenName       string    `json:"token_name"`
	Creator         string    `json:"creator"`
	LaunchTimestamp time.Time `json:"launch_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
	Transaction     string    `json:"transaction"`
	Analysis        string    `json:"analysis"`
	Tweets          []string  `json:"tweets"`
}

// SecurityReport 安全分析报告，按代币地址持久化
type SecurityReport struct {
	TokenAddress  string    `json:"token_address"`
	TokenName     string    `json:"token_name"`
	Symbol        string    `json:"symbol"`
	Creator       string    `json:"creator"`
	RiskLevel     string    `json:"risk_level"`
	RiskScore     int       `json:"risk_score"`
	SecurityScore int       `json:"security_score"`
	Analysis      string    `json:"analysis"` // LLM 结构化结果 JSON
	Tweets        []string  `json:"tweets"`
	CreatedAt     time.Time `json:"created_at"`
}
