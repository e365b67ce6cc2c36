package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"intraday-trader/internal/store"
)

func newDecisionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions <symbol>",
		Short: "Show recent decision-log entries for a symbol",
		Long: `Show the most recent decision-log entries for a symbol.

Each entry records the indicator snapshot, confidence scores, strategy
proposals and the risk-gate verdict for one scan cycle.`,
		Example: `  trader decisions AAPL
  trader decisions MSFT --limit 50 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])
			limit, _ := cmd.Flags().GetInt("limit")

			ds, err := store.NewSQLiteStore(app.Config.Store.Path)
			if err != nil {
				output.Error("Failed to open decision store: %v", err)
				return err
			}
			defer ds.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			recs, err := ds.RecentDecisions(ctx, symbol, limit)
			if err != nil {
				output.Error("Failed to query decisions: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(recs)
			}
			if len(recs) == 0 {
				output.Dim("No decisions recorded for %s", symbol)
				return nil
			}

			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				long, short := "-", "-"
				for _, sc := range rec.Scores {
					switch sc.Direction {
					case "LONG":
						long = FormatPercent(sc.Value)
					case "SHORT":
						short = FormatPercent(sc.Value)
					}
				}
				selected := "-"
				if rec.Selected != nil {
					selected = rec.Selected.Strategy + " " + string(rec.Selected.Direction)
				}
				rows = append(rows, []string{
					rec.Timestamp.Format("15:04:05"),
					long,
					short,
					selected,
					string(rec.Verdict),
					rec.Reason,
				})
			}
			output.Table([]string{"TIME", "LONG", "SHORT", "SELECTED", "VERDICT", "REASON"}, rows)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum entries to show")

	return cmd
}
