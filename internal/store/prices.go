package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// PriceRepository persists daily price observations.
type PriceRepository struct {
	db *pgxpool.Pool
}

const priceColumns = `
	security_id, date, open, high, low, close, volume,
	adjusted_close, dividend, split_ratio`

func scanPrice(row pgx.Row) (*contracts.PriceObservation, error) {
	obs := &contracts.PriceObservation{}
	err := row.Scan(
		&obs.SecurityID,
		&obs.Date,
		&obs.Open,
		&obs.High,
		&obs.Low,
		&obs.Close,
		&obs.Volume,
		&obs.AdjustedClose,
		&obs.Dividend,
		&obs.SplitRatio,
	)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// GetLatestAtOrBefore returns the most recent observation at or before
// asOf. A security with no observation by then yields nil, not an error.
func (r *PriceRepository) GetLatestAtOrBefore(ctx context.Context, securityID int64, asOf time.Time) (*contracts.PriceObservation, error) {
	query := `SELECT` + priceColumns + `
		FROM price_data
		WHERE security_id = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1`

	obs, err := scanPrice(r.db.QueryRow(ctx, query, securityID, asOf))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest price for security %d: %w", securityID, err)
	}
	return obs, nil
}

// GetLatestBatch resolves the latest observation at or before asOf for
// each requested security in one round trip.
func (r *PriceRepository) GetLatestBatch(ctx context.Context, securityIDs []int64, asOf time.Time) (map[int64]*contracts.PriceObservation, error) {
	if len(securityIDs) == 0 {
		return map[int64]*contracts.PriceObservation{}, nil
	}

	query := `SELECT DISTINCT ON (security_id)` + priceColumns + `
		FROM price_data
		WHERE security_id = ANY($1) AND date <= $2
		ORDER BY security_id, date DESC`

	rows, err := r.db.Query(ctx, query, securityIDs, asOf)
	if err != nil {
		return nil, fmt.Errorf("query latest prices batch: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*contracts.PriceObservation, len(securityIDs))
	for rows.Next() {
		obs, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out[obs.SecurityID] = obs
	}
	return out, rows.Err()
}

// Save upserts one observation.
func (r *PriceRepository) Save(ctx context.Context, obs *contracts.PriceObservation) error {
	return r.SaveBatch(ctx, []*contracts.PriceObservation{obs})
}

// SaveBatch upserts observations in one batch round trip.
func (r *PriceRepository) SaveBatch(ctx context.Context, observations []*contracts.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	query := `
		INSERT INTO price_data (
			security_id, date, open, high, low, close, volume,
			adjusted_close, dividend, split_ratio
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (security_id, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			adjusted_close = EXCLUDED.adjusted_close,
			dividend = EXCLUDED.dividend,
			split_ratio = EXCLUDED.split_ratio`

	batch := &pgx.Batch{}
	for _, obs := range observations {
		batch.Queue(query,
			obs.SecurityID,
			obs.Date,
			obs.Open,
			obs.High,
			obs.Low,
			obs.Close,
			obs.Volume,
			obs.AdjustedClose,
			obs.Dividend,
			obs.SplitRatio,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range observations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save price batch: %w", err)
		}
	}
	return nil
}
