package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// rebalanceCmd applies a rebalance for one index.
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Rebalance an index for a date",
	Long: `Recompute the constituent set, diff it against current membership,
and append the changes to the membership log.

Example:
  go run ./cmd/indexd rebalance --index 1 --date 2024-02-01`,
	RunE: runRebalance,
}

var (
	rebIndexID int64
	rebDate    string
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rebalanceCmd.Flags().Int64Var(&rebIndexID, "index", 0, "index id (required)")
	rebalanceCmd.Flags().StringVar(&rebDate, "date", "", "effective date YYYY-MM-DD (default today)")
	_ = rebalanceCmd.MarkFlagRequired("index")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	date, err := parseDateFlag(rebDate)
	if err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Rebalancer.Rebalance(cmd.Context(), rebIndexID, date)
	if err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}

	fmt.Printf("Index %d rebalanced on %s: %d constituents\n",
		result.IndexID, result.Date.Format("2006-01-02"), result.NewConstituentCount)
	if len(result.Additions) > 0 {
		fmt.Printf("  added:   %s\n", strings.Join(result.Additions, ", "))
	}
	if len(result.Removals) > 0 {
		fmt.Printf("  removed: %s\n", strings.Join(result.Removals, ", "))
	}
	return nil
}
