package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/songzhibin97/pumpsentinel/internal/risk"
)

// Raydium AMM authority, the program whose logs announce new pools.
const DefaultTargetAddress = "39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg"

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	// 基础配置
	Proxy       string `json:"proxy" yaml:"proxy"`               // HTTP(S) 代理
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"` // 为空则不暴露 /metrics

	Solana   Solana   `json:"solana" yaml:"solana"`
	Helius   Helius   `json:"helius" yaml:"helius"`
	PumpFun  PumpFun  `json:"pump_fun" yaml:"pump_fun"`
	Jupiter  Jupiter  `json:"jupiter" yaml:"jupiter"`
	Database Database `json:"database" yaml:"database"`

	// 风险控制参数
	RiskParams risk.RiskParameters `json:"risk_parameters" yaml:"risk_params"`

	// AI 模型参数
	AIConfig AIConfig `json:"ai_config" yaml:"ai_config"`

	Twitter Twitter `json:"twitter" yaml:"twitter"`
	Monitor Monitor `json:"monitor" yaml:"monitor"`
	Cache   Cache   `json:"cache" yaml:"cache"`
}

type Solana struct {
	RPCURL            string  `json:"rpc_url" yaml:"rpc_url"`
	WSURL             string  `json:"ws_url" yaml:"ws_url"`
	TargetAddress     string  `json:"target_address" yaml:"target_address"`           // 监听的程序地址
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"` // RPC 限速
	Burst             int     `json:"burst" yaml:"burst"`
}

type Helius struct {
	APIKey            string  `json:"api_key" yaml:"api_key"`
	BaseURL           string  `json:"base_url" yaml:"base_url"` // enhanced transactions API
	RPCURL            string  `json:"rpc_url" yaml:"rpc_url"`   // DAS 接口
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	MaxPages          int     `json:"max_pages" yaml:"max_pages"` // 钱包年龄分页上限
}

type PumpFun struct {
	APIURL  string `json:"api_url" yaml:"api_url"`
	SiteURL string `json:"site_url" yaml:"site_url"`
}

type Jupiter struct {
	PriceURL string `json:"price_url" yaml:"price_url"`
}

type AIConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`     // deepseek / openai
	APIKey      string  `json:"api_key" yaml:"api_key"`       // AI服务API密钥
	ModelType   string  `json:"model_type" yaml:"model_type"` // AI模型类型
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

type Twitter struct {
	BearerToken string `json:"bearer_token" yaml:"bearer_token"` // OAuth2 user token
	BaseURL     string `json:"base_url" yaml:"base_url"`
	DryRun      bool   `json:"dry_run" yaml:"dry_run"` // 只打日志不发推
}

type Monitor struct {
	HourlyTokenLimit int     `json:"hourly_token_limit" yaml:"hourly_token_limit"`
	TweetsPerToken   int     `json:"tweets_per_token" yaml:"tweets_per_token"`
	MinTokenPrice    float64 `json:"min_token_price" yaml:"min_token_price"`
	MaxTweetLength   int     `json:"max_tweet_length" yaml:"max_tweet_length"`
	TweetInterval    string  `json:"tweet_interval" yaml:"tweet_interval"`
}

type Database struct {
	Driver  string `json:"driver" yaml:"driver"`     // postgres / sqlite
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

type Cache struct {
	Size int    `json:"size" yaml:"size"`
	TTL  string `json:"ttl" yaml:"ttl"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Solana: Solana{
			RPCURL:            "https://api.mainnet-beta.solana.com",
			WSURL:             "wss://api.mainnet-beta.solana.com",
			TargetAddress:     DefaultTargetAddress,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Helius: Helius{
			BaseURL:           "https://api.helius.xyz",
			RPCURL:            "https://mainnet.helius-rpc.com",
			RequestsPerSecond: 5,
			MaxPages:          10,
		},
		PumpFun: PumpFun{
			APIURL:  "https://frontend-api.pump.fun",
			SiteURL: "https://pump.fun",
		},
		Jupiter:    Jupiter{PriceURL: "https://api.jup.ag/price/v2"},
		Database:   Database{Driver: "postgres"},
		RiskParams: risk.DefaultRiskParameters(),
		AIConfig: AIConfig{
			Provider:    "deepseek",
			ModelType:   "deepseek-chat",
			BaseURL:     "https://api.deepseek.com",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		Twitter: Twitter{BaseURL: "https://api.twitter.com"},
		Monitor: Monitor{
			HourlyTokenLimit: 20,
			TweetsPerToken:   4,
			MinTokenPrice:    0.0001,
			MaxTweetLength:   280,
			TweetInterval:    "1s",
		},
		Cache: Cache{Size: 1024, TTL: "30s"},
	}
}

// Load reads a JSON or YAML file on top of Default, then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(raw, config)
		default:
			err = json.Unmarshal(raw, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env 可选
	_ = godotenv.Load()
	config.ApplyEnv(os.Getenv)

	return config, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Helius.APIKey, "HELIUS_API_KEY")
	set(&c.AIConfig.APIKey, "DEEPSEEK_API_KEY")
	set(&c.Solana.RPCURL, "HELIUS_RPC_URL")
	set(&c.Solana.WSURL, "HELIUS_WS_URL")
	set(&c.Solana.TargetAddress, "TARGET_ADDRESS")
	set(&c.Twitter.BearerToken, "TWITTER_BEARER_TOKEN")
	set(&c.Database.ConnStr, "DATABASE_URL")
	set(&c.Proxy, "PROXY")
	if c.AIConfig.Provider == "openai" {
		set(&c.AIConfig.APIKey, "OPENAI_API_KEY")
	}
}

// ValidateMonitor checks what the monitor needs before it can start.
func (c *Config) ValidateMonitor() error {
	missing := make([]string, 0)
	if c.Solana.RPCURL == "" {
		missing = append(missing, "HELIUS_RPC_URL")
	}
	if c.Solana.WSURL == "" {
		missing = append(missing, "HELIUS_WS_URL")
	}
	if c.AIConfig.APIKey == "" {
		missing = append(missing, "DEEPSEEK_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateSecurity checks what the security analysis needs.
func (c *Config) ValidateSecurity() error {
	missing := make([]string, 0)
	if c.Solana.RPCURL == "" {
		missing = append(missing, "HELIUS_RPC_URL")
	}
	if c.Helius.APIKey == "" {
		missing = append(missing, "HELIUS_API_KEY")
	}
	if c.AIConfig.APIKey == "" {
		missing = append(missing, "DEEPSEEK_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Duration parses s, falling back to def when empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
