package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "indexd",
	Short: "IndexForge - index valuation and rebalancing engine",
	Long: `IndexForge CLI

Custom index engine: define weighting rules and eligibility filters,
value indexes daily, rebalance membership on a cadence, and replay
strategies over history.

Usage:
  go run ./cmd/indexd [command]

Examples:
  go run ./cmd/indexd api
  go run ./cmd/indexd calculate --index 1 --date 2024-01-05
  go run ./cmd/indexd backtest --index 1 --start 2023-01-01 --end 2023-12-31
  go run ./cmd/indexd ingest securities --file data/securities.csv`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
