package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// SecurityRepository persists catalog reference data.
type SecurityRepository struct {
	db *pgxpool.Pool
}

const securityColumns = `
	id, symbol, name, exchange, currency, sector, industry, country,
	market_cap, revenue, esg_score, is_active, created_at, updated_at`

func scanSecurity(row pgx.Row) (*contracts.Security, error) {
	sec := &contracts.Security{}
	err := row.Scan(
		&sec.ID,
		&sec.Symbol,
		&sec.Name,
		&sec.Exchange,
		&sec.Currency,
		&sec.Sector,
		&sec.Industry,
		&sec.Country,
		&sec.MarketCap,
		&sec.Revenue,
		&sec.ESGScore,
		&sec.IsActive,
		&sec.CreatedAt,
		&sec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// GetByID retrieves a security by id.
func (r *SecurityRepository) GetByID(ctx context.Context, id int64) (*contracts.Security, error) {
	query := `SELECT` + securityColumns + ` FROM securities WHERE id = $1`

	sec, err := scanSecurity(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFound("security %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query security %d: %w", id, err)
	}
	return sec, nil
}

// GetBySymbol retrieves a security by its ticker symbol.
func (r *SecurityRepository) GetBySymbol(ctx context.Context, symbol string) (*contracts.Security, error) {
	query := `SELECT` + securityColumns + ` FROM securities WHERE UPPER(symbol) = UPPER($1)`

	sec, err := scanSecurity(r.db.QueryRow(ctx, query, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFound("security %q not found", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("query security %q: %w", symbol, err)
	}
	return sec, nil
}

// GetByIDs retrieves a batch of securities keyed by id. Unknown ids are
// simply absent from the result.
func (r *SecurityRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*contracts.Security, error) {
	if len(ids) == 0 {
		return map[int64]*contracts.Security{}, nil
	}

	query := `SELECT` + securityColumns + ` FROM securities WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query securities batch: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*contracts.Security, len(ids))
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out[sec.ID] = sec
	}
	return out, rows.Err()
}

// List retrieves securities matching the filter, ordered by id.
func (r *SecurityRepository) List(ctx context.Context, filter contracts.SecurityFilter) ([]*contracts.Security, error) {
	query := `SELECT` + securityColumns + `
		FROM securities
		WHERE ($1 = '' OR sector = $1)
		  AND ($2 = '' OR country = $2)
		  AND (NOT $3 OR is_active)
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, filter.Sector, filter.Country, filter.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("list securities: %w", err)
	}
	defer rows.Close()

	out := make([]*contracts.Security, 0)
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Save inserts or updates a security. New securities (ID zero) get
// their generated id written back.
func (r *SecurityRepository) Save(ctx context.Context, security *contracts.Security) error {
	query := `
		INSERT INTO securities (
			symbol, name, exchange, currency, sector, industry, country,
			market_cap, revenue, esg_score, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			currency = EXCLUDED.currency,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			country = EXCLUDED.country,
			market_cap = EXCLUDED.market_cap,
			revenue = EXCLUDED.revenue,
			esg_score = EXCLUDED.esg_score,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		security.Symbol,
		security.Name,
		security.Exchange,
		security.Currency,
		security.Sector,
		security.Industry,
		security.Country,
		security.MarketCap,
		security.Revenue,
		security.ESGScore,
		security.IsActive,
	).Scan(&security.ID)
	if err != nil {
		return fmt.Errorf("save security %q: %w", security.Symbol, err)
	}
	return nil
}
