package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/pumpsentinel/internal/configs"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
)

var (
	flagconf string
	cfg      *configs.Config

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	rootCmd = &cobra.Command{
		Use:           "pumpsentinel",
		Short:         "Watch new pump.fun tokens on Solana and analyse their risk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = configs.Load(flagconf)
			if err != nil {
				return err
			}

			if cfg.Proxy != "" {
				_ = os.Setenv("HTTP_PROXY", cfg.Proxy)
				_ = os.Setenv("HTTPS_PROXY", cfg.Proxy)
				log.Debug("set proxy ok", "proxy", cfg.Proxy)
			}

			if cfg.MetricsAddr != "" {
				metrics.Serve(cmd.Context(), cfg.MetricsAddr, log)
			}
			return nil
		},
	}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Stream new pool launches and post a risk thread for each token",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [token address or text]",
		Short: "Run the security analysis for one pump.fun token",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalyze,
	}

	credibilityCmd = &cobra.Command{
		Use:   "credibility [token address]",
		Short: "Score a pump.fun token from its on-chain activity",
		Args:  cobra.ExactArgs(1),
		RunE:  runCredibility,
	}

	reportCmd = &cobra.Command{
		Use:   "report [token address]",
		Short: "Print the last stored security report of a token",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [mint...]",
		Short: "Poll token prices and flag sudden spikes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagconf, "conf", "", "config path, eg: --conf config.yaml")

	analyzeCmd.Flags().String("user", "", "requester shown in the thread")
	analyzeCmd.Flags().Bool("post", false, "post the thread to Twitter")
	analyzeCmd.Flags().Bool("json", false, "print the full result as JSON")

	credibilityCmd.Flags().Bool("json", false, "print the full result as JSON")

	watchCmd.Flags().String("interval", "10s", "polling interval")
	watchCmd.Flags().Int("window", 30, "price samples kept per mint")

	rootCmd.AddCommand(monitorCmd, analyzeCmd, credibilityCmd, reportCmd, watchCmd)
}

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}
