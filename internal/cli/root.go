package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"intraday-trader/internal/config"
	"intraday-trader/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-31"
)

// App holds the application dependencies shared by commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Intraday Trader - automated intraday trading engine",
		Long: `Intraday Trader is an automated intraday trading engine.

It scans a configured watchlist on a fixed interval, scores each symbol
against a set of technical conditions, arbitrates competing strategy
signals and manages the resulting positions through to exit. Every
decision it makes is recorded in a local decision log.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/intraday-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newDecisionsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Intraday Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View the effective engine configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Bold("Trading")
			output.Printf("  mode:           %s\n", app.Config.Trading.Mode)
			output.Printf("  watchlist:      %v\n", app.Config.Trading.Watchlist)
			output.Printf("  scan interval:  %s\n", app.Config.Trading.ScanInterval)
			output.Printf("  window size:    %d bars\n", app.Config.Trading.WindowSize)
			output.Bold("Risk")
			output.Printf("  max notional:       %s\n", FormatCurrency(app.Config.Risk.MaxPositionNotional))
			output.Printf("  max positions:      %d\n", app.Config.Risk.MaxConcurrentPositions)
			output.Printf("  max day trades:     %d\n", app.Config.Risk.MaxDayTrades)
			output.Printf("  max concentration:  %.0f%%\n", app.Config.Risk.MaxConcentration*100)
			output.Printf("  min confidence:     %s\n", FormatPercent(app.Config.Risk.MinConfidence))
			output.Bold("Exit")
			output.Printf("  trailing mode:  %s\n", app.Config.Exit.TrailingMode)
			output.Printf("  max hold time:  %s\n", app.Config.Exit.MaxHoldTime)
			return nil
		},
	})

	return cmd
}
