package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// calculateCmd values one index for a date.
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Value an index for a date",
	Long: `Compute the index value for a date and persist it.

Example:
  go run ./cmd/indexd calculate --index 1
  go run ./cmd/indexd calculate --index 1 --date 2024-01-05`,
	RunE: runCalculate,
}

var (
	calcIndexID int64
	calcDate    string
)

func init() {
	rootCmd.AddCommand(calculateCmd)
	calculateCmd.Flags().Int64Var(&calcIndexID, "index", 0, "index id (required)")
	calculateCmd.Flags().StringVar(&calcDate, "date", "", "valuation date YYYY-MM-DD (default today)")
	_ = calculateCmd.MarkFlagRequired("index")
}

func parseDateFlag(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return date, nil
}

func runCalculate(cmd *cobra.Command, args []string) error {
	date, err := parseDateFlag(calcDate)
	if err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Valuator.Calculate(cmd.Context(), calcIndexID, date)
	if err != nil {
		return fmt.Errorf("calculate: %w", err)
	}

	fmt.Printf("Index %d valued at %.4f on %s (%d constituents, %s)\n",
		result.IndexID, result.Value, result.Date.Format("2006-01-02"),
		result.ConstituentCount, result.WeightingMethod)
	fmt.Printf("  1d %.4f%%  1w %.4f%%  vol %.4f  sharpe %.4f  mdd %.4f\n",
		result.Metrics.Return1D*100, result.Metrics.Return1W*100,
		result.Metrics.Volatility, result.Metrics.SharpeRatio, result.Metrics.MaxDrawdown)
	return nil
}
