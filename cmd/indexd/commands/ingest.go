package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexforge/backend/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load market data into the catalog",
	Long: `Load securities and price history from CSV files, or refresh the
latest quotes from the configured provider.

Example:
  go run ./cmd/indexd ingest securities --file data/securities.csv
  go run ./cmd/indexd ingest prices --file data/prices.csv
  go run ./cmd/indexd ingest quotes`,
}

var ingestSecuritiesCmd = &cobra.Command{
	Use:   "securities",
	Short: "Load securities from a CSV file",
	RunE:  runIngestSecurities,
}

var ingestPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Load price history from a CSV file",
	RunE:  runIngestPrices,
}

var ingestQuotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Fetch latest quotes for the active catalog",
	RunE:  runIngestQuotes,
}

var (
	ingestFile      string
	ingestQuoteDate string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestSecuritiesCmd, ingestPricesCmd, ingestQuotesCmd)

	ingestSecuritiesCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file path (required)")
	_ = ingestSecuritiesCmd.MarkFlagRequired("file")
	ingestPricesCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file path (required)")
	_ = ingestPricesCmd.MarkFlagRequired("file")
	ingestQuotesCmd.Flags().StringVar(&ingestQuoteDate, "date", "", "trading date YYYY-MM-DD (default today)")
}

func runIngestSecurities(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	loader := ingest.NewCSVLoader(d.Securities, d.Prices, d.Logger)
	report, err := loader.LoadSecuritiesFile(cmd.Context(), ingestFile)
	if err != nil {
		return fmt.Errorf("load securities: %w", err)
	}
	printLoadReport("securities", report)
	return nil
}

func runIngestPrices(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	loader := ingest.NewCSVLoader(d.Securities, d.Prices, d.Logger)
	report, err := loader.LoadPricesFile(cmd.Context(), ingestFile)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	printLoadReport("prices", report)
	return nil
}

func runIngestQuotes(cmd *cobra.Command, args []string) error {
	date, err := parseDateFlag(ingestQuoteDate)
	if err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.Refresher.Refresh(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("refresh quotes: %w", err)
	}
	fmt.Printf("Quotes for %s: %d fetched, %d failed\n",
		date.Format("2006-01-02"), report.Fetched, report.Failed)
	return nil
}

func printLoadReport(kind string, report *ingest.LoadReport) {
	fmt.Printf("Loaded %d %s, skipped %d\n", report.Loaded, kind, report.Skipped)
	for _, e := range report.Errors {
		fmt.Printf("  %s\n", e)
	}
}
