package contracts

import (
	"context"
	"time"
)

// Repository interfaces are defined here; implementations live in
// internal/store (pgx) and internal/store/memstore (tests).

// SecurityFilter narrows List results.
type SecurityFilter struct {
	Sector     string
	Country    string
	ActiveOnly bool
}

// SecurityRepository manages catalog reference data.
type SecurityRepository interface {
	GetByID(ctx context.Context, id int64) (*Security, error)
	GetBySymbol(ctx context.Context, symbol string) (*Security, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Security, error)
	List(ctx context.Context, filter SecurityFilter) ([]*Security, error)
	Save(ctx context.Context, security *Security) error
}

// PriceRepository manages daily price observations.
type PriceRepository interface {
	// GetLatestAtOrBefore returns the most recent observation at or
	// before asOf, or nil when the security has never traded by then.
	GetLatestAtOrBefore(ctx context.Context, securityID int64, asOf time.Time) (*PriceObservation, error)
	// GetLatestBatch resolves the latest observation at or before asOf
	// for each requested security; absent securities are omitted.
	GetLatestBatch(ctx context.Context, securityIDs []int64, asOf time.Time) (map[int64]*PriceObservation, error)
	Save(ctx context.Context, obs *PriceObservation) error
	SaveBatch(ctx context.Context, obs []*PriceObservation) error
}

// DefinitionRepository manages index definitions.
type DefinitionRepository interface {
	GetByID(ctx context.Context, id int64) (*IndexDefinition, error)
	GetByName(ctx context.Context, name string) (*IndexDefinition, error)
	List(ctx context.Context, activeOnly bool) ([]*IndexDefinition, error)
	Create(ctx context.Context, def *IndexDefinition) error
	Update(ctx context.Context, def *IndexDefinition) error
	Delete(ctx context.Context, id int64) error
}

// MembershipRepository manages the append-only constituent log.
type MembershipRepository interface {
	// ResolveAsOf returns, per security, the latest membership row at or
	// before asOf, excluding securities whose latest row is a removal.
	// Ties on effective date resolve to the highest row id.
	ResolveAsOf(ctx context.Context, indexID int64, asOf time.Time) ([]*Membership, error)
	// History returns all rows for an index in a date range, oldest first.
	History(ctx context.Context, indexID int64, from, to time.Time) ([]*Membership, error)
	// LastRebalanceDate returns the most recent effective date, or the
	// zero time when the index has no membership rows.
	LastRebalanceDate(ctx context.Context, indexID int64) (time.Time, error)
	// ApplyRebalance appends removal markers and the fresh weighted rows
	// as a single transaction; partial application is never observable.
	ApplyRebalance(ctx context.Context, indexID int64, date time.Time, removals []int64, rows []*Membership) error
}

// ValueRepository manages computed index values.
type ValueRepository interface {
	// Upsert overwrites the row for (index, date).
	Upsert(ctx context.Context, value *IndexValue) error
	// GetTrailing returns up to limit values at or before asOf, oldest first.
	GetTrailing(ctx context.Context, indexID int64, asOf time.Time, limit int) ([]*IndexValue, error)
	// GetRange returns values within [from, to], oldest first.
	GetRange(ctx context.Context, indexID int64, from, to time.Time) ([]*IndexValue, error)
}
