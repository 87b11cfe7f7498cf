package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// DefinitionRepository persists index definitions.
type DefinitionRepository struct {
	db *pgxpool.Pool
}

const definitionColumns = `
	id, name, description, weighting_method, rebalance_frequency,
	max_constituents, min_market_cap, max_market_cap, sectors, countries,
	min_esg_score, is_active, created_at, updated_at`

func scanDefinition(row pgx.Row) (*contracts.IndexDefinition, error) {
	def := &contracts.IndexDefinition{}
	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&def.WeightingMethod,
		&def.RebalanceFrequency,
		&def.MaxConstituents,
		&def.MinMarketCap,
		&def.MaxMarketCap,
		&def.Sectors,
		&def.Countries,
		&def.MinESGScore,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// GetByID retrieves a definition by id.
func (r *DefinitionRepository) GetByID(ctx context.Context, id int64) (*contracts.IndexDefinition, error) {
	query := `SELECT` + definitionColumns + ` FROM index_definitions WHERE id = $1`

	def, err := scanDefinition(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFound("index %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query index %d: %w", id, err)
	}
	return def, nil
}

// GetByName retrieves a definition by its unique name.
func (r *DefinitionRepository) GetByName(ctx context.Context, name string) (*contracts.IndexDefinition, error) {
	query := `SELECT` + definitionColumns + ` FROM index_definitions WHERE name = $1`

	def, err := scanDefinition(r.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFound("index %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("query index %q: %w", name, err)
	}
	return def, nil
}

// List retrieves definitions ordered by id.
func (r *DefinitionRepository) List(ctx context.Context, activeOnly bool) ([]*contracts.IndexDefinition, error) {
	query := `SELECT` + definitionColumns + `
		FROM index_definitions
		WHERE NOT $1 OR is_active
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	out := make([]*contracts.IndexDefinition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// Create inserts a definition and writes back the generated id.
func (r *DefinitionRepository) Create(ctx context.Context, def *contracts.IndexDefinition) error {
	query := `
		INSERT INTO index_definitions (
			name, description, weighting_method, rebalance_frequency,
			max_constituents, min_market_cap, max_market_cap, sectors,
			countries, min_esg_score, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		def.Name,
		def.Description,
		def.WeightingMethod,
		def.RebalanceFrequency,
		def.MaxConstituents,
		def.MinMarketCap,
		def.MaxMarketCap,
		def.Sectors,
		def.Countries,
		def.MinESGScore,
		def.IsActive,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create index %q: %w", def.Name, err)
	}
	return nil
}

// Update overwrites a definition.
func (r *DefinitionRepository) Update(ctx context.Context, def *contracts.IndexDefinition) error {
	query := `
		UPDATE index_definitions SET
			name = $2,
			description = $3,
			weighting_method = $4,
			rebalance_frequency = $5,
			max_constituents = $6,
			min_market_cap = $7,
			max_market_cap = $8,
			sectors = $9,
			countries = $10,
			min_esg_score = $11,
			is_active = $12,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		def.WeightingMethod,
		def.RebalanceFrequency,
		def.MaxConstituents,
		def.MinMarketCap,
		def.MaxMarketCap,
		def.Sectors,
		def.Countries,
		def.MinESGScore,
		def.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update index %d: %w", def.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.NotFound("index %d not found", def.ID)
	}
	return nil
}

// Delete removes a definition. Membership and value history for the
// index is removed with it via foreign keys.
func (r *DefinitionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM index_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete index %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.NotFound("index %d not found", id)
	}
	return nil
}
