package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexforge/backend/internal/contracts"
)

// backtestCmd replays an index over history.
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay an index over a historical range",
	Long: `Replay an index business day by business day, rebalancing on its
configured cadence, and report the aggregate metrics.

Example:
  go run ./cmd/indexd backtest --index 1 --start 2023-01-01 --end 2023-12-31`,
	RunE: runBacktest,
}

var (
	btIndexID   int64
	btStart     string
	btEnd       string
	btFrequency string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().Int64Var(&btIndexID, "index", 0, "index id (required)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btFrequency, "frequency", "",
		"rebalance cadence override: daily, weekly, monthly or quarterly")
	_ = backtestCmd.MarkFlagRequired("index")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", btStart)
	if err != nil {
		return fmt.Errorf("invalid start date %q, want YYYY-MM-DD", btStart)
	}
	end, err := time.Parse("2006-01-02", btEnd)
	if err != nil {
		return fmt.Errorf("invalid end date %q, want YYYY-MM-DD", btEnd)
	}
	if btFrequency != "" && !contracts.ValidFrequency(btFrequency) {
		return fmt.Errorf("invalid frequency %q, want daily, weekly, monthly or quarterly", btFrequency)
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Backtester.Run(cmd.Context(), btIndexID, start, end, btFrequency)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	fmt.Printf("Backtest %s: %q from %s to %s\n",
		result.RunID, result.IndexName,
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
	fmt.Printf("  points %d  skipped %d  rebalances %d\n",
		len(result.Series), result.SkippedDays, result.Rebalances)
	fmt.Printf("  total %.4f%%  annualized %.4f%%  vol %.4f  sharpe %.4f\n",
		result.Metrics.TotalReturn*100, result.Metrics.AnnualizedReturn*100,
		result.Metrics.Volatility, result.Metrics.SharpeRatio)
	fmt.Printf("  mdd %.4f  win rate %.2f%%  avg win %.4f%%  avg loss %.4f%%\n",
		result.Metrics.MaxDrawdown, result.Metrics.WinRate*100,
		result.Metrics.AvgWin*100, result.Metrics.AvgLoss*100)
	return nil
}
