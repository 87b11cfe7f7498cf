// Package rebalance reconciles an index's membership log with the
// eligibility rules of its definition. Changes are appended to the log,
// never applied destructively.
package rebalance

import (
	"context"
	"fmt"
	"time"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/metrics"
	"github.com/indexforge/backend/internal/selection"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
	"github.com/indexforge/backend/pkg/redis"
)

// Result summarizes one applied rebalance.
type Result struct {
	IndexID             int64     `json:"index_id"`
	Date                time.Time `json:"date"`
	Additions           []string  `json:"additions"`
	Removals            []string  `json:"removals"`
	NewConstituentCount int       `json:"new_constituent_count"`
	WeightingMethod     string    `json:"weighting_method"`
}

// Rebalancer computes and applies membership changes.
type Rebalancer struct {
	definitions contracts.DefinitionRepository
	memberships contracts.MembershipRepository
	securities  contracts.SecurityRepository
	selector    *selection.Selector
	strategies  *weighting.Registry
	cache       *redis.Cache
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// New creates a new rebalancer. Cache and metrics may be nil.
func New(
	definitions contracts.DefinitionRepository,
	memberships contracts.MembershipRepository,
	securities contracts.SecurityRepository,
	selector *selection.Selector,
	strategies *weighting.Registry,
	log *logger.Logger,
) *Rebalancer {
	return &Rebalancer{
		definitions: definitions,
		memberships: memberships,
		securities:  securities,
		selector:    selector,
		strategies:  strategies,
		logger:      log,
	}
}

// WithCache attaches the summary cache for post-rebalance invalidation.
func (r *Rebalancer) WithCache(cache *redis.Cache) *Rebalancer {
	r.cache = cache
	return r
}

// WithMetrics attaches Prometheus instrumentation.
func (r *Rebalancer) WithMetrics(m *metrics.Metrics) *Rebalancer {
	r.metrics = m
	return r
}

// Rebalance recomputes the target constituent set as of date, diffs it
// against the current membership, and appends the changes in a single
// transaction. An empty target set removes every current member.
func (r *Rebalancer) Rebalance(ctx context.Context, indexID int64, date time.Time) (*Result, error) {
	result, err := r.rebalance(ctx, indexID, date)
	r.metrics.ObserveRebalance(err)
	return result, err
}

func (r *Rebalancer) rebalance(ctx context.Context, indexID int64, date time.Time) (*Result, error) {
	def, err := r.definitions.GetByID(ctx, indexID)
	if err != nil {
		return nil, err
	}

	current, err := r.memberships.ResolveAsOf(ctx, indexID, date)
	if err != nil {
		return nil, contracts.Infrastructure(err, "resolve current membership for index %d", indexID)
	}
	currentIDs := make(map[int64]bool, len(current))
	for _, m := range current {
		currentIDs[m.SecurityID] = true
	}

	target, err := r.selector.Select(ctx, def, date)
	if err != nil {
		return nil, err
	}

	strategy, ok := r.strategies.Get(def.WeightingMethod)
	if !ok {
		return nil, contracts.MissingData("index %q uses unknown weighting method %q",
			def.Name, def.WeightingMethod)
	}

	var weights []float64
	if len(target) > 0 {
		weights, err = strategy.Weights(target)
		if err != nil {
			return nil, err
		}
	}

	targetIDs := make(map[int64]bool, len(target))
	rows := make([]*contracts.Membership, 0, len(target))
	additions := make([]string, 0)
	for i, row := range target {
		targetIDs[row.SecurityID] = true
		isNew := !currentIDs[row.SecurityID]
		if isNew {
			additions = append(additions, row.Symbol)
		}
		rows = append(rows, &contracts.Membership{
			SecurityID:    row.SecurityID,
			Weight:        weights[i],
			Shares:        row.Shares,
			MarketCap:     row.MarketCap,
			IsNewAddition: isNew,
		})
	}

	removalIDs := make([]int64, 0)
	for _, m := range current {
		if !targetIDs[m.SecurityID] {
			removalIDs = append(removalIDs, m.SecurityID)
		}
	}
	removals, err := r.resolveSymbols(ctx, removalIDs)
	if err != nil {
		return nil, err
	}

	if err := r.memberships.ApplyRebalance(ctx, indexID, date, removalIDs, rows); err != nil {
		return nil, contracts.Infrastructure(err, "apply rebalance for index %d", indexID)
	}

	// Membership changed; cached summaries for this index are stale.
	if err := r.cache.DeletePrefix(ctx, fmt.Sprintf("idx:%d:perf:", indexID)); err != nil {
		r.logger.WithError(err).Warn("Failed to invalidate summary cache")
	}

	r.logger.WithFields(map[string]interface{}{
		"index":        def.Name,
		"date":         date.Format("2006-01-02"),
		"additions":    additions,
		"removals":     removals,
		"constituents": len(rows),
	}).Info("Rebalance applied")

	return &Result{
		IndexID:             indexID,
		Date:                date,
		Additions:           additions,
		Removals:            removals,
		NewConstituentCount: len(rows),
		WeightingMethod:     def.WeightingMethod,
	}, nil
}

// resolveSymbols maps removed security ids to display symbols. An id
// missing from the catalog keeps a numeric placeholder rather than
// failing the rebalance.
func (r *Rebalancer) resolveSymbols(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	catalog, err := r.securities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, contracts.Infrastructure(err, "resolve removal symbols")
	}

	symbols := make([]string, 0, len(ids))
	for _, id := range ids {
		if sec, ok := catalog[id]; ok {
			symbols = append(symbols, sec.Symbol)
			continue
		}
		symbols = append(symbols, fmt.Sprintf("#%d", id))
	}
	return symbols, nil
}
