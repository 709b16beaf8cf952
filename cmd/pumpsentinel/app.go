package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/ai/deepseek"
	"github.com/songzhibin97/pumpsentinel/internal/ai/openai"
	"github.com/songzhibin97/pumpsentinel/internal/analysis"
	"github.com/songzhibin97/pumpsentinel/internal/chain/rpc"
	"github.com/songzhibin97/pumpsentinel/internal/configs"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/binance"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/helius"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/jupiter"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector/pumpfun"
	"github.com/songzhibin97/pumpsentinel/internal/data/storage"
	"github.com/songzhibin97/pumpsentinel/internal/social/twitter"
)

// app 共享组件
type app struct {
	rpc       *rpc.Client
	pump      *pumpfun.PumpFunDataSource
	jupiter   *jupiter.JupiterDataSource
	helius    *helius.HeliusDataSource
	collector *collector.MultiSourceCollector
	storage   data.DataStorage // 未配置数据库时为 nil
	llm       ai.Completer
	creators  *analysis.CreatorInfoService
	price     analysis.PriceFunc
}

func newApp(cfg *configs.Config) (*app, error) {
	a := &app{
		rpc:     rpc.NewClient(cfg.Solana.RPCURL, cfg.Solana.RequestsPerSecond, cfg.Solana.Burst),
		pump:    pumpfun.NewPumpFunDataSource(cfg.PumpFun.APIURL, cfg.PumpFun.SiteURL),
		jupiter: jupiter.NewJupiterDataSource(cfg.Jupiter.PriceURL),
		helius: helius.NewHeliusDataSource(helius.Options{
			BaseURL:           cfg.Helius.BaseURL,
			RPCURL:            cfg.Helius.RPCURL,
			APIKey:            cfg.Helius.APIKey,
			RequestsPerSecond: cfg.Helius.RequestsPerSecond,
			MaxPages:          cfg.Helius.MaxPages,
		}),
		llm: newCompleter(cfg.AIConfig),
	}

	// SOL 价格优先 Jupiter，其次 Binance 与 pump.fun
	a.collector = collector.NewMultiSourceCollector([]collector.DataSource{
		a.jupiter,
		binance.NewBinanceDataSource(),
		a.pump,
	}, log)
	log.Debug("init collector")

	if cfg.Database.ConnStr != "" {
		store, err := storage.New(cfg.Database.Driver, cfg.Database.ConnStr)
		if err != nil {
			return nil, err
		}
		a.storage = store
		log.Debug("init storage", "driver", cfg.Database.Driver)
	}

	a.price = analysis.PumpFunPrice(a.pump, a.jupiter)
	a.creators = analysis.NewCreatorInfoService(a.rpc, a.pump, a.helius, a.price, log)
	return a, nil
}

func (a *app) Close() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			log.Error("failed to close storage", "err", err)
		}
	}
}

func newCompleter(cfg configs.AIConfig) ai.Completer {
	opts := ai.DefaultOptions()
	if cfg.ModelType != "" {
		opts.Model = cfg.ModelType
	}
	if cfg.Temperature > 0 {
		opts.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		opts.MaxTokens = cfg.MaxTokens
	}

	switch cfg.Provider {
	case "openai":
		log.Debug("init analyzer", "provider", "openai", "model", opts.Model)
		return openai.NewClient(cfg.APIKey, cfg.BaseURL, opts)
	default:
		log.Debug("init analyzer", "provider", "deepseek", "model", opts.Model)
		return deepseek.NewClient(cfg.APIKey, cfg.BaseURL, opts)
	}
}

func newTwitter(cfg *configs.Config) *twitter.Client {
	return twitter.NewClient(twitter.Options{
		BaseURL:     cfg.Twitter.BaseURL,
		BearerToken: cfg.Twitter.BearerToken,
		Interval:    configs.Duration(cfg.Monitor.TweetInterval, time.Second),
		DryRun:      cfg.Twitter.DryRun,
	}, log)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
