// Package selection builds the eligible constituent universe for an
// index as of a date.
package selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/pkg/logger"
)

// Selector resolves memberships, joins prices and catalog attributes,
// and applies the definition's eligibility filters.
type Selector struct {
	memberships contracts.MembershipRepository
	prices      contracts.PriceRepository
	securities  contracts.SecurityRepository
	logger      *logger.Logger
}

// New creates a new selector.
func New(
	memberships contracts.MembershipRepository,
	prices contracts.PriceRepository,
	securities contracts.SecurityRepository,
	log *logger.Logger,
) *Selector {
	return &Selector{
		memberships: memberships,
		prices:      prices,
		securities:  securities,
		logger:      log,
	}
}

// Select returns the eligible rows for the definition as of asOf. An
// empty result is not an error; callers interpret it as "no
// constituents for this date".
func (s *Selector) Select(ctx context.Context, def *contracts.IndexDefinition, asOf time.Time) ([]contracts.Row, error) {
	members, err := s.memberships.ResolveAsOf(ctx, def.ID, asOf)
	if err != nil {
		return nil, contracts.Infrastructure(err, "resolve memberships for index %d", def.ID)
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.SecurityID)
	}

	catalog, err := s.securities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, contracts.Infrastructure(err, "load catalog attributes")
	}

	prices, err := s.prices.GetLatestBatch(ctx, ids, asOf)
	if err != nil {
		return nil, contracts.Infrastructure(err, "load latest prices")
	}

	rows := make([]contracts.Row, 0, len(members))
	droppedNoPrice := 0
	for _, m := range members {
		sec, ok := catalog[m.SecurityID]
		if !ok {
			// Membership row pointing at a missing catalog entry is a
			// data fault, not an eligibility decision.
			return nil, contracts.Infrastructure(
				fmt.Errorf("security %d not in catalog", m.SecurityID),
				"join catalog for index %d", def.ID)
		}

		obs, ok := prices[m.SecurityID]
		if !ok || obs.Close <= 0 {
			// Cannot value an untraded name.
			droppedNoPrice++
			continue
		}

		rows = append(rows, contracts.Row{
			SecurityID: sec.ID,
			Symbol:     sec.Symbol,
			Name:       sec.Name,
			Sector:     sec.Sector,
			Country:    sec.Country,
			Close:      obs.Close,
			Shares:     m.Shares,
			MarketCap:  resolveMarketCap(m, sec),
			Revenue:    sec.Revenue,
			ESGScore:   sec.ESGScore,
		})
	}

	// Deterministic base order before filtering and capping.
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SecurityID < rows[j].SecurityID
	})

	rows, filtered := s.applyFilters(rows, def)

	if def.MaxConstituents > 0 && len(rows) > def.MaxConstituents {
		filtered["max_constituents"] = len(rows) - def.MaxConstituents
		rows = topByMarketCap(rows, def.MaxConstituents)
	}

	s.logger.WithFields(map[string]interface{}{
		"index":            def.Name,
		"as_of":            asOf.Format("2006-01-02"),
		"resolved":         len(members),
		"dropped_no_price": droppedNoPrice,
		"eligible":         len(rows),
		"filters":          filtered,
	}).Debug("Constituent selection completed")

	return rows, nil
}

// resolveMarketCap prefers the membership snapshot, then the catalog figure.
func resolveMarketCap(m *contracts.Membership, sec *contracts.Security) *float64 {
	if m.MarketCap != nil {
		return m.MarketCap
	}
	return sec.MarketCap
}

// applyFilters runs the eligibility filters in their fixed order:
// cap floor, cap ceiling, sector allow-list, country allow-list, ESG
// floor. The returned map counts rows excluded per filter name.
func (s *Selector) applyFilters(rows []contracts.Row, def *contracts.IndexDefinition) ([]contracts.Row, map[string]int) {
	filtered := make(map[string]int)
	passed := make([]contracts.Row, 0, len(rows))

	sectors := toSet(def.Sectors)
	countries := toSet(def.Countries)

	for _, row := range rows {
		if reason := checkRow(row, def, sectors, countries); reason != "" {
			filtered[reason]++
			continue
		}
		passed = append(passed, row)
	}

	return passed, filtered
}

// checkRow returns the name of the first filter the row fails, or ""
// when it passes all of them.
func checkRow(row contracts.Row, def *contracts.IndexDefinition, sectors, countries map[string]bool) string {
	cap := 0.0
	if row.MarketCap != nil {
		cap = *row.MarketCap
	}

	if def.MinMarketCap > 0 && cap < def.MinMarketCap {
		return "market_cap_floor"
	}
	if def.MaxMarketCap > 0 && cap > def.MaxMarketCap {
		return "market_cap_ceiling"
	}
	if len(sectors) > 0 && !sectors[row.Sector] {
		return "sector"
	}
	if len(countries) > 0 && !countries[row.Country] {
		return "country"
	}
	if def.MinESGScore > 0 {
		if row.ESGScore == nil || *row.ESGScore < def.MinESGScore {
			return "esg_floor"
		}
	}

	return ""
}

// topByMarketCap keeps the n largest rows by market cap, ties broken by
// security id ascending, and returns them in id order.
func topByMarketCap(rows []contracts.Row, n int) []contracts.Row {
	ranked := make([]contracts.Row, len(rows))
	copy(ranked, rows)

	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := capOf(ranked[i]), capOf(ranked[j])
		if ci != cj {
			return ci > cj
		}
		return ranked[i].SecurityID < ranked[j].SecurityID
	})

	kept := ranked[:n]
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].SecurityID < kept[j].SecurityID
	})
	return kept
}

func capOf(row contracts.Row) float64 {
	if row.MarketCap != nil {
		return *row.MarketCap
	}
	return 0
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
