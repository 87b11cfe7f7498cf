package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// MembershipRepository persists the append-only constituent log.
type MembershipRepository struct {
	db *pgxpool.Pool
}

const membershipColumns = `
	id, index_id, security_id, effective_date, weight, shares,
	market_cap, is_new_addition, is_removal, created_at`

func scanMembership(row pgx.Row) (*contracts.Membership, error) {
	m := &contracts.Membership{}
	err := row.Scan(
		&m.ID,
		&m.IndexID,
		&m.SecurityID,
		&m.EffectiveDate,
		&m.Weight,
		&m.Shares,
		&m.MarketCap,
		&m.IsNewAddition,
		&m.IsRemoval,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ResolveAsOf returns the latest membership row per security at or
// before asOf, excluding securities whose latest row is a removal.
// Ties on effective date resolve to the highest row id.
func (r *MembershipRepository) ResolveAsOf(ctx context.Context, indexID int64, asOf time.Time) ([]*contracts.Membership, error) {
	query := `
		SELECT * FROM (
			SELECT DISTINCT ON (security_id)` + membershipColumns + `
			FROM index_constituents
			WHERE index_id = $1 AND effective_date <= $2
			ORDER BY security_id, effective_date DESC, id DESC
		) latest
		WHERE NOT is_removal
		ORDER BY security_id`

	rows, err := r.db.Query(ctx, query, indexID, asOf)
	if err != nil {
		return nil, fmt.Errorf("resolve membership for index %d: %w", indexID, err)
	}
	defer rows.Close()

	out := make([]*contracts.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// History returns all rows for an index within [from, to], oldest first.
func (r *MembershipRepository) History(ctx context.Context, indexID int64, from, to time.Time) ([]*contracts.Membership, error) {
	query := `SELECT` + membershipColumns + `
		FROM index_constituents
		WHERE index_id = $1 AND effective_date BETWEEN $2 AND $3
		ORDER BY effective_date, id`

	rows, err := r.db.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query membership history for index %d: %w", indexID, err)
	}
	defer rows.Close()

	out := make([]*contracts.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LastRebalanceDate returns the most recent effective date, or the zero
// time when the index has no membership rows.
func (r *MembershipRepository) LastRebalanceDate(ctx context.Context, indexID int64) (time.Time, error) {
	query := `
		SELECT MAX(effective_date)
		FROM index_constituents
		WHERE index_id = $1`

	var last *time.Time
	if err := r.db.QueryRow(ctx, query, indexID).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("query last rebalance date for index %d: %w", indexID, err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}

// ApplyRebalance appends removal markers and the fresh weighted rows in
// a single transaction.
func (r *MembershipRepository) ApplyRebalance(ctx context.Context, indexID int64, date time.Time, removals []int64, rows []*contracts.Membership) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rebalance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO index_constituents (
			index_id, security_id, effective_date, weight, shares,
			market_cap, is_new_addition, is_removal, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	for _, securityID := range removals {
		if _, err := tx.Exec(ctx, insert,
			indexID, securityID, date, 0.0, nil, nil, false, true,
		); err != nil {
			return fmt.Errorf("insert removal marker for security %d: %w", securityID, err)
		}
	}

	for _, m := range rows {
		if _, err := tx.Exec(ctx, insert,
			indexID, m.SecurityID, date, m.Weight, m.Shares,
			m.MarketCap, m.IsNewAddition, false,
		); err != nil {
			return fmt.Errorf("insert membership for security %d: %w", m.SecurityID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rebalance tx: %w", err)
	}
	return nil
}
