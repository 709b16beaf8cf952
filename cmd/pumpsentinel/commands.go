package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/pumpsentinel/internal/action"
	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/analysis"
	chainmonitor "github.com/songzhibin97/pumpsentinel/internal/chain/monitor"
	"github.com/songzhibin97/pumpsentinel/internal/configs"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/data/collector"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/monitor"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
	"github.com/songzhibin97/pumpsentinel/internal/tweet"
)

func runMonitor(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateMonitor(); err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := chainmonitor.NewWSSource(cfg.Solana.WSURL, cfg.Solana.TargetAddress)
	if err != nil {
		return err
	}
	stream := chainmonitor.New(source, a.rpc, chainmonitor.DefaultConfig(), log)

	svc := monitor.NewService(
		monitorConfig(cfg.Monitor),
		a.rpc,
		stream,
		analysis.NewTimelineAnalyzer(a.pump, a.helius, a.creators, a.price, log),
		analysis.NewHoldingTracker(a.rpc, a.price, cfg.Cache.Size, log),
		ai.NewThreadWriter(a.llm, log),
		newTwitter(cfg),
		a.storage,
		log,
	)
	svc.OnTokenLaunched(func(ev models.TokenLaunchedEvent) {
		log.Info("token launched", "token", ev.TokenAddress, "creator", ev.Creator, "tweets", len(ev.Tweets))
	})

	log.Info("monitor starting", "target", cfg.Solana.TargetAddress)
	err = svc.Run(ctx)
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		log.Info("monitor stopped")
		return nil
	}
	return err
}

func monitorConfig(m configs.Monitor) monitor.Config {
	c := monitor.DefaultConfig()
	c.HourlyTokenLimit = m.HourlyTokenLimit
	c.TweetsPerToken = m.TweetsPerToken
	c.MaxTweetLength = m.MaxTweetLength
	if m.MinTokenPrice > 0 {
		c.MinTokenPrice = m.MinTokenPrice
	}
	return c
}

func newSecurityAction(ctx context.Context, a *app) (*action.SecurityAction, error) {
	riskMgr := risk.NewBasicRiskManager(risk.DefaultRiskParameters())
	if err := riskMgr.SetRiskParameters(ctx, &cfg.RiskParams); err != nil {
		return nil, err
	}
	log.Debug("set risk parameters ok")

	return action.NewSecurityAction(
		a.rpc,
		a.pump,
		analysis.NewPriceLiquidityService(a.rpc, a.jupiter, a.helius, a.collector, log),
		a.creators,
		riskMgr,
		ai.NewSecurityAnalyzer(a.llm, risk.NewKnowledgeBase(), log),
		a.storage,
		cfg.ValidateSecurity,
		log,
	), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	user, _ := cmd.Flags().GetString("user")
	post, _ := cmd.Flags().GetBool("post")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	act, err := newSecurityAction(ctx, a)
	if err != nil {
		return err
	}

	req := action.Request{Text: strings.Join(args, " "), User: user}
	address, reply, err := act.Validate(ctx, req)
	if err != nil {
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		return err
	}

	resp, err := act.Handle(ctx, address, req)
	if err != nil {
		fmt.Fprintln(out, resp.Text)
		return err
	}

	if asJSON {
		if err := printJSON(out, resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, resp.Text)
	}

	if post {
		ids, err := postThread(ctx, newTwitter(cfg), resp.Tweets, cfg.Monitor.MaxTweetLength)
		if err != nil {
			return err
		}
		log.Info("thread posted", "token", address, "tweets", len(ids))
	}
	return nil
}

// postThread splits parts that exceed the tweet limit before posting them as one thread.
func postThread(ctx context.Context, poster monitor.Poster, parts []string, max int) ([]string, error) {
	return poster.PostThread(ctx, tweet.Flatten(parts, max))
}

func runCredibility(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := action.NewCredibilityAction(a.rpc, a.pump, log).AnalyzePumpfunToken(ctx, args[0])
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	fmt.Fprintln(out, result.Text())
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	act, err := newSecurityAction(ctx, a)
	if err != nil {
		return err
	}

	report, err := act.Report(ctx, args[0])
	if errors.Is(err, data.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "no report stored for", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	raw, _ := cmd.Flags().GetString("interval")
	size, _ := cmd.Flags().GetInt("window")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	kb := risk.NewKnowledgeBase()
	window := newPriceWindow(size)
	updates := a.collector.SubscribeToPrices(ctx, args, configs.Duration(raw, 10*time.Second))

	log.Info("watching prices", "mints", len(args))
	for update := range updates {
		history := window.add(update)
		for _, p := range kb.MatchPricePatterns(history) {
			log.Warn("price pattern matched",
				"mint", update.Mint,
				"pattern", p.ID,
				"description", p.Description,
				"price", update.Price,
			)
			window.reset(update.Mint)
		}
	}
	return nil
}

// priceWindow 每个 mint 最近的价格采样
type priceWindow struct {
	size   int
	points map[string][]risk.PricePoint
}

func newPriceWindow(size int) *priceWindow {
	if size < 2 {
		size = 2
	}
	return &priceWindow{size: size, points: make(map[string][]risk.PricePoint)}
}

// add appends the update and returns the mint's history, oldest first.
func (w *priceWindow) add(u collector.PriceUpdate) []risk.PricePoint {
	history := append(w.points[u.Mint], risk.PricePoint{Price: u.Price, Timestamp: u.Timestamp.Unix()})
	if len(history) > w.size {
		history = history[len(history)-w.size:]
	}
	w.points[u.Mint] = history
	return history
}

// reset keeps only the latest sample so one spike is reported once.
func (w *priceWindow) reset(mint string) {
	history := w.points[mint]
	if len(history) > 1 {
		w.points[mint] = history[len(history)-1:]
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
