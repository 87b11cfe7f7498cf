package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// ValueRepository persists computed index values.
type ValueRepository struct {
	db *pgxpool.Pool
}

const valueColumns = `
	index_id, date, value, total_return, price_return, dividend_yield,
	volatility, sharpe_ratio`

func scanValue(row pgx.Row) (*contracts.IndexValue, error) {
	v := &contracts.IndexValue{}
	err := row.Scan(
		&v.IndexID,
		&v.Date,
		&v.Value,
		&v.TotalReturn,
		&v.PriceReturn,
		&v.DividendYield,
		&v.Volatility,
		&v.SharpeRatio,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Upsert overwrites the row for (index, date).
func (r *ValueRepository) Upsert(ctx context.Context, value *contracts.IndexValue) error {
	query := `
		INSERT INTO index_values (
			index_id, date, value, total_return, price_return,
			dividend_yield, volatility, sharpe_ratio
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (index_id, date) DO UPDATE SET
			value = EXCLUDED.value,
			total_return = EXCLUDED.total_return,
			price_return = EXCLUDED.price_return,
			dividend_yield = EXCLUDED.dividend_yield,
			volatility = EXCLUDED.volatility,
			sharpe_ratio = EXCLUDED.sharpe_ratio`

	_, err := r.db.Exec(ctx, query,
		value.IndexID,
		value.Date,
		value.Value,
		value.TotalReturn,
		value.PriceReturn,
		value.DividendYield,
		value.Volatility,
		value.SharpeRatio,
	)
	if err != nil {
		return fmt.Errorf("upsert value for index %d: %w", value.IndexID, err)
	}
	return nil
}

// GetTrailing returns up to limit values at or before asOf, oldest first.
func (r *ValueRepository) GetTrailing(ctx context.Context, indexID int64, asOf time.Time, limit int) ([]*contracts.IndexValue, error) {
	query := `
		SELECT * FROM (
			SELECT` + valueColumns + `
			FROM index_values
			WHERE index_id = $1 AND date <= $2
			ORDER BY date DESC
			LIMIT $3
		) trailing
		ORDER BY date`

	rows, err := r.db.Query(ctx, query, indexID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query trailing values for index %d: %w", indexID, err)
	}
	defer rows.Close()

	return collectValues(rows)
}

// GetRange returns values within [from, to], oldest first.
func (r *ValueRepository) GetRange(ctx context.Context, indexID int64, from, to time.Time) ([]*contracts.IndexValue, error) {
	query := `SELECT` + valueColumns + `
		FROM index_values
		WHERE index_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`

	rows, err := r.db.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query value range for index %d: %w", indexID, err)
	}
	defer rows.Close()

	return collectValues(rows)
}

func collectValues(rows pgx.Rows) ([]*contracts.IndexValue, error) {
	out := make([]*contracts.IndexValue, 0)
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
