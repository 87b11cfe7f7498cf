// Package store implements the repository contracts on PostgreSQL via
// pgx. Schema lives in migrations/schema.sql.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/indexforge/backend/internal/contracts"
)

// Store bundles the pgx-backed repositories behind one pool.
type Store struct {
	pool *pgxpool.Pool

	securities  *SecurityRepository
	prices      *PriceRepository
	definitions *DefinitionRepository
	memberships *MembershipRepository
	values      *ValueRepository
}

// New creates a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		securities:  &SecurityRepository{db: pool},
		prices:      &PriceRepository{db: pool},
		definitions: &DefinitionRepository{db: pool},
		memberships: &MembershipRepository{db: pool},
		values:      &ValueRepository{db: pool},
	}
}

// Securities returns the SecurityRepository.
func (s *Store) Securities() contracts.SecurityRepository { return s.securities }

// Prices returns the PriceRepository.
func (s *Store) Prices() contracts.PriceRepository { return s.prices }

// Definitions returns the DefinitionRepository.
func (s *Store) Definitions() contracts.DefinitionRepository { return s.definitions }

// Memberships returns the MembershipRepository.
func (s *Store) Memberships() contracts.MembershipRepository { return s.memberships }

// Values returns the ValueRepository.
func (s *Store) Values() contracts.ValueRepository { return s.values }
