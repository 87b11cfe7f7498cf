// Package indexconfig loads seed index definitions from YAML files so
// deployments can version-control their index lineup.
package indexconfig

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
)

// Seed is the YAML shape of one index definition.
type Seed struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	WeightingMethod    string   `yaml:"weighting_method"`
	RebalanceFrequency string   `yaml:"rebalance_frequency"`
	MaxConstituents    int      `yaml:"max_constituents"`
	MinMarketCap       float64  `yaml:"min_market_cap"`
	MaxMarketCap       float64  `yaml:"max_market_cap"`
	Sectors            []string `yaml:"sectors"`
	Countries          []string `yaml:"countries"`
	MinESGScore        float64  `yaml:"min_esg_score"`
}

type seedFile struct {
	Indexes []Seed `yaml:"indexes"`
}

// Loader parses seed files and reconciles them with the definition
// repository.
type Loader struct {
	definitions contracts.DefinitionRepository
	strategies  *weighting.Registry
	logger      *logger.Logger
}

// NewLoader creates a new seed loader.
func NewLoader(definitions contracts.DefinitionRepository, strategies *weighting.Registry, log *logger.Logger) *Loader {
	return &Loader{definitions: definitions, strategies: strategies, logger: log}
}

// Parse reads and validates a seed document. Unknown YAML fields are
// rejected to catch typos in hand-edited files.
func (l *Loader) Parse(r io.Reader) ([]Seed, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file seedFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(file.Indexes) == 0 {
		return nil, fmt.Errorf("seed file defines no indexes")
	}

	seen := make(map[string]bool, len(file.Indexes))
	for i, seed := range file.Indexes {
		if err := l.validate(seed); err != nil {
			return nil, fmt.Errorf("index %d (%q): %w", i+1, seed.Name, err)
		}
		if seen[seed.Name] {
			return nil, fmt.Errorf("index %q defined twice", seed.Name)
		}
		seen[seed.Name] = true
	}
	return file.Indexes, nil
}

func (l *Loader) validate(seed Seed) error {
	if seed.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, ok := l.strategies.Get(seed.WeightingMethod); !ok {
		return fmt.Errorf("unknown weighting method %q (known: %v)",
			seed.WeightingMethod, l.strategies.Methods())
	}
	switch seed.RebalanceFrequency {
	case "", contracts.FrequencyDaily, contracts.FrequencyWeekly,
		contracts.FrequencyMonthly, contracts.FrequencyQuarterly:
	default:
		return fmt.Errorf("unknown rebalance frequency %q", seed.RebalanceFrequency)
	}
	if seed.MinMarketCap < 0 || seed.MaxMarketCap < 0 {
		return fmt.Errorf("market cap bounds must be non-negative")
	}
	if seed.MaxMarketCap > 0 && seed.MinMarketCap > seed.MaxMarketCap {
		return fmt.Errorf("min_market_cap exceeds max_market_cap")
	}
	if seed.MinESGScore < 0 || seed.MinESGScore > 100 {
		return fmt.Errorf("min_esg_score must be within 0-100")
	}
	if seed.MaxConstituents < 0 {
		return fmt.Errorf("max_constituents must be non-negative")
	}
	return nil
}

// ApplyFile loads a seed file from disk and applies it.
func (l *Loader) ApplyFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	seeds, err := l.Parse(f)
	if err != nil {
		return 0, err
	}
	return l.Apply(ctx, seeds)
}

// Apply upserts the seeds by name: existing definitions are updated in
// place, new ones are created active. Returns the number applied.
func (l *Loader) Apply(ctx context.Context, seeds []Seed) (int, error) {
	applied := 0
	for _, seed := range seeds {
		def := seed.definition()

		existing, err := l.definitions.GetByName(ctx, seed.Name)
		switch {
		case err == nil:
			def.ID = existing.ID
			def.IsActive = existing.IsActive
			if err := l.definitions.Update(ctx, def); err != nil {
				return applied, fmt.Errorf("update index %q: %w", seed.Name, err)
			}
		case contracts.KindOf(err) == contracts.KindNotFound:
			if err := l.definitions.Create(ctx, def); err != nil {
				return applied, fmt.Errorf("create index %q: %w", seed.Name, err)
			}
		default:
			return applied, fmt.Errorf("look up index %q: %w", seed.Name, err)
		}
		applied++

		l.logger.WithFields(map[string]interface{}{
			"index":  seed.Name,
			"method": def.WeightingMethod,
		}).Info("Seed definition applied")
	}
	return applied, nil
}

func (s Seed) definition() *contracts.IndexDefinition {
	frequency := s.RebalanceFrequency
	if frequency == "" {
		frequency = contracts.FrequencyMonthly
	}
	return &contracts.IndexDefinition{
		Name:               s.Name,
		Description:        s.Description,
		WeightingMethod:    s.WeightingMethod,
		RebalanceFrequency: frequency,
		MaxConstituents:    s.MaxConstituents,
		MinMarketCap:       s.MinMarketCap,
		MaxMarketCap:       s.MaxMarketCap,
		Sectors:            s.Sectors,
		Countries:          s.Countries,
		MinESGScore:        s.MinESGScore,
		IsActive:           true,
	}
}
