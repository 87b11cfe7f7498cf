// Package memstore implements the repository contracts in memory. It
// backs package tests and the demo mode of the CLI; production traffic
// goes through the pgx repositories in internal/store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/indexforge/backend/internal/contracts"
)

// Store holds all five repositories behind one mutex. Zero value is not
// usable; construct with New.
type Store struct {
	mu sync.RWMutex

	securities  map[int64]*contracts.Security
	prices      map[int64][]*contracts.PriceObservation // per security, date asc
	definitions map[int64]*contracts.IndexDefinition
	memberships []*contracts.Membership
	values      map[int64][]*contracts.IndexValue // per index, date asc

	nextSecurityID   int64
	nextDefinitionID int64
	nextMembershipID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		securities:       make(map[int64]*contracts.Security),
		prices:           make(map[int64][]*contracts.PriceObservation),
		definitions:      make(map[int64]*contracts.IndexDefinition),
		values:           make(map[int64][]*contracts.IndexValue),
		nextSecurityID:   1,
		nextDefinitionID: 1,
		nextMembershipID: 1,
	}
}

// Securities returns the SecurityRepository view.
func (s *Store) Securities() contracts.SecurityRepository { return (*securityRepo)(s) }

// Prices returns the PriceRepository view.
func (s *Store) Prices() contracts.PriceRepository { return (*priceRepo)(s) }

// Definitions returns the DefinitionRepository view.
func (s *Store) Definitions() contracts.DefinitionRepository { return (*definitionRepo)(s) }

// Memberships returns the MembershipRepository view.
func (s *Store) Memberships() contracts.MembershipRepository { return (*membershipRepo)(s) }

// Values returns the ValueRepository view.
func (s *Store) Values() contracts.ValueRepository { return (*valueRepo)(s) }

type securityRepo Store

func (r *securityRepo) GetByID(_ context.Context, id int64) (*contracts.Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sec, ok := r.securities[id]
	if !ok {
		return nil, contracts.NotFound("security %d not found", id)
	}
	out := *sec
	return &out, nil
}

func (r *securityRepo) GetBySymbol(_ context.Context, symbol string) (*contracts.Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sec := range r.securities {
		if strings.EqualFold(sec.Symbol, symbol) {
			out := *sec
			return &out, nil
		}
	}
	return nil, contracts.NotFound("security %q not found", symbol)
}

func (r *securityRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*contracts.Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]*contracts.Security, len(ids))
	for _, id := range ids {
		if sec, ok := r.securities[id]; ok {
			cp := *sec
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *securityRepo) List(_ context.Context, filter contracts.SecurityFilter) ([]*contracts.Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.Security, 0, len(r.securities))
	for _, sec := range r.securities {
		if filter.Sector != "" && sec.Sector != filter.Sector {
			continue
		}
		if filter.Country != "" && sec.Country != filter.Country {
			continue
		}
		if filter.ActiveOnly && !sec.IsActive {
			continue
		}
		cp := *sec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *securityRepo) Save(_ context.Context, security *contracts.Security) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if security.ID == 0 {
		security.ID = r.nextSecurityID
		r.nextSecurityID++
		security.CreatedAt = time.Now()
	}
	security.UpdatedAt = time.Now()
	cp := *security
	r.securities[security.ID] = &cp
	return nil
}

type priceRepo Store

func (r *priceRepo) GetLatestAtOrBefore(_ context.Context, securityID int64, asOf time.Time) (*contracts.PriceObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return latestAtOrBefore(r.prices[securityID], asOf), nil
}

func (r *priceRepo) GetLatestBatch(_ context.Context, securityIDs []int64, asOf time.Time) (map[int64]*contracts.PriceObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]*contracts.PriceObservation, len(securityIDs))
	for _, id := range securityIDs {
		if obs := latestAtOrBefore(r.prices[id], asOf); obs != nil {
			out[id] = obs
		}
	}
	return out, nil
}

func latestAtOrBefore(series []*contracts.PriceObservation, asOf time.Time) *contracts.PriceObservation {
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].Date.After(asOf) {
			cp := *series[i]
			return &cp
		}
	}
	return nil
}

func (r *priceRepo) Save(ctx context.Context, obs *contracts.PriceObservation) error {
	return r.SaveBatch(ctx, []*contracts.PriceObservation{obs})
}

func (r *priceRepo) SaveBatch(_ context.Context, batch []*contracts.PriceObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, obs := range batch {
		cp := *obs
		series := r.prices[obs.SecurityID]

		replaced := false
		for i, existing := range series {
			if existing.Date.Equal(obs.Date) {
				series[i] = &cp
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, &cp)
			sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		}
		r.prices[obs.SecurityID] = series
	}
	return nil
}

type definitionRepo Store

func (r *definitionRepo) GetByID(_ context.Context, id int64) (*contracts.IndexDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[id]
	if !ok {
		return nil, contracts.NotFound("index %d not found", id)
	}
	out := *def
	return &out, nil
}

func (r *definitionRepo) GetByName(_ context.Context, name string) (*contracts.IndexDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, def := range r.definitions {
		if def.Name == name {
			out := *def
			return &out, nil
		}
	}
	return nil, contracts.NotFound("index %q not found", name)
}

func (r *definitionRepo) List(_ context.Context, activeOnly bool) ([]*contracts.IndexDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.IndexDefinition, 0, len(r.definitions))
	for _, def := range r.definitions {
		if activeOnly && !def.IsActive {
			continue
		}
		cp := *def
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *definitionRepo) Create(_ context.Context, def *contracts.IndexDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def.ID = r.nextDefinitionID
	r.nextDefinitionID++
	def.CreatedAt = time.Now()
	def.UpdatedAt = def.CreatedAt
	cp := *def
	r.definitions[def.ID] = &cp
	return nil
}

func (r *definitionRepo) Update(_ context.Context, def *contracts.IndexDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[def.ID]; !ok {
		return contracts.NotFound("index %d not found", def.ID)
	}
	def.UpdatedAt = time.Now()
	cp := *def
	r.definitions[def.ID] = &cp
	return nil
}

func (r *definitionRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[id]; !ok {
		return contracts.NotFound("index %d not found", id)
	}
	delete(r.definitions, id)
	return nil
}

type membershipRepo Store

func (r *membershipRepo) ResolveAsOf(_ context.Context, indexID int64, asOf time.Time) ([]*contracts.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Latest row per security at or before asOf; date ties resolve to the
	// highest row id, matching the append order.
	latest := make(map[int64]*contracts.Membership)
	for _, m := range r.memberships {
		if m.IndexID != indexID || m.EffectiveDate.After(asOf) {
			continue
		}
		cur, ok := latest[m.SecurityID]
		if !ok || m.EffectiveDate.After(cur.EffectiveDate) ||
			(m.EffectiveDate.Equal(cur.EffectiveDate) && m.ID > cur.ID) {
			latest[m.SecurityID] = m
		}
	}

	out := make([]*contracts.Membership, 0, len(latest))
	for _, m := range latest {
		if m.IsRemoval {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecurityID < out[j].SecurityID })
	return out, nil
}

func (r *membershipRepo) History(_ context.Context, indexID int64, from, to time.Time) ([]*contracts.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.Membership, 0)
	for _, m := range r.memberships {
		if m.IndexID != indexID || m.EffectiveDate.Before(from) || m.EffectiveDate.After(to) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
			return out[i].EffectiveDate.Before(out[j].EffectiveDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *membershipRepo) LastRebalanceDate(_ context.Context, indexID int64) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last time.Time
	for _, m := range r.memberships {
		if m.IndexID == indexID && m.EffectiveDate.After(last) {
			last = m.EffectiveDate
		}
	}
	return last, nil
}

func (r *membershipRepo) ApplyRebalance(_ context.Context, indexID int64, date time.Time, removals []int64, rows []*contracts.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, securityID := range removals {
		r.memberships = append(r.memberships, &contracts.Membership{
			ID:            r.nextMembershipID,
			IndexID:       indexID,
			SecurityID:    securityID,
			EffectiveDate: date,
			IsRemoval:     true,
			CreatedAt:     time.Now(),
		})
		r.nextMembershipID++
	}

	for _, row := range rows {
		cp := *row
		cp.ID = r.nextMembershipID
		cp.IndexID = indexID
		cp.EffectiveDate = date
		cp.CreatedAt = time.Now()
		r.nextMembershipID++
		r.memberships = append(r.memberships, &cp)
	}
	return nil
}

type valueRepo Store

func (r *valueRepo) Upsert(_ context.Context, value *contracts.IndexValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *value
	series := r.values[value.IndexID]

	for i, existing := range series {
		if existing.Date.Equal(value.Date) {
			series[i] = &cp
			r.values[value.IndexID] = series
			return nil
		}
	}

	series = append(series, &cp)
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	r.values[value.IndexID] = series
	return nil
}

func (r *valueRepo) GetTrailing(_ context.Context, indexID int64, asOf time.Time, limit int) ([]*contracts.IndexValue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eligible := make([]*contracts.IndexValue, 0)
	for _, v := range r.values[indexID] {
		if !v.Date.After(asOf) {
			cp := *v
			eligible = append(eligible, &cp)
		}
	}
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	return eligible, nil
}

func (r *valueRepo) GetRange(_ context.Context, indexID int64, from, to time.Time) ([]*contracts.IndexValue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.IndexValue, 0)
	for _, v := range r.values[indexID] {
		if v.Date.Before(from) || v.Date.After(to) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}
