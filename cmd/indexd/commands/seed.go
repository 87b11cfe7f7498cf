package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexforge/backend/internal/indexconfig"
)

// seedCmd applies index definitions from a YAML file.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply index definitions from a YAML file",
	Long: `Validate a YAML seed file and upsert its index definitions by name.
Existing definitions keep their id and active flag.

Example:
  go run ./cmd/indexd seed --file config/indexes.yaml`,
	RunE: runSeed,
}

var seedFilePath string

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedFilePath, "file", "", "YAML seed file path (required)")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	loader := indexconfig.NewLoader(d.Definitions, d.Strategies, d.Logger)
	applied, err := loader.ApplyFile(cmd.Context(), seedFilePath)
	if err != nil {
		return fmt.Errorf("apply seed file: %w", err)
	}
	fmt.Printf("Applied %d index definitions from %s\n", applied, seedFilePath)
	return nil
}
