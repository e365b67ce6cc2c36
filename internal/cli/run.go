package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intraday-trader/internal/broker"
	"intraday-trader/internal/marketdata"
	"intraday-trader/internal/notify"
	"intraday-trader/internal/store"
	"intraday-trader/internal/trading"
	"intraday-trader/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine",
		Long: `Run the trading engine against the configured watchlist.

The engine subscribes to the market-data feed, evaluates every symbol on
each scan interval and manages positions until interrupted. On SIGINT or
SIGTERM it stops generating signals, closes open positions and exits once
the book is drained.`,
		Example: `  trader run
  trader run --watchlist AAPL,MSFT,NVDA
  TRADING_MODE=paper trader run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			if watchlist, _ := cmd.Flags().GetStringSlice("watchlist"); len(watchlist) > 0 {
				cfg.Trading.Watchlist = watchlist
			}
			if len(cfg.Trading.Watchlist) == 0 {
				output.Error("No watchlist configured. Set trading.watchlist in config.toml or pass --watchlist.")
				return fmt.Errorf("empty watchlist")
			}
			if cfg.Feed.URL == "" {
				output.Error("No feed URL configured. Set feed.url in config.toml or FEED_URL.")
				return fmt.Errorf("missing feed url")
			}
			if !cfg.IsPaperMode() {
				output.Error("Live mode requires broker credentials; only paper mode is currently supported.")
				return fmt.Errorf("unsupported trading mode %q", cfg.Trading.Mode)
			}

			equity, _ := cmd.Flags().GetFloat64("equity")
			b := broker.NewPaperBroker(equity)

			ds, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("opening decision store: %w", err)
			}
			defer ds.Close()

			retry := utils.RetryConfig{
				MaxAttempts:   cfg.Retry.MaxAttempts,
				InitialDelay:  cfg.Retry.InitialDelay,
				MaxDelay:      cfg.Retry.MaxDelay,
				BackoffFactor: cfg.Retry.BackoffFactor,
			}
			feed := marketdata.NewWSFeed(cfg.Feed.URL, retry, app.Logger)
			notifier := notify.NewTerminalNotifier(app.Logger)
			engine := trading.NewEngine(cfg, feed, b, ds, notifier, app.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			output.Info("Starting engine in %s mode with %d symbols", cfg.Trading.Mode, len(cfg.Trading.Watchlist))
			if err := engine.Run(ctx); err != nil {
				output.Error("Engine stopped with error: %v", err)
				return err
			}
			output.Success("Engine stopped cleanly")
			return nil
		},
	}

	cmd.Flags().StringSlice("watchlist", nil, "override the configured watchlist")
	cmd.Flags().Float64("equity", 100000, "starting equity for paper trading")

	return cmd
}
