// Package engine computes index values. A valuation resolves the
// constituent set, applies the definition's weighting method, derives
// the scalar index value and trailing metrics, and persists the result.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/indexforge/backend/internal/analytics"
	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/metrics"
	"github.com/indexforge/backend/internal/selection"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
	"github.com/indexforge/backend/pkg/redis"
)

// Trailing window loaded for point-in-time metrics: one year of daily
// values plus the value being computed.
const trailingWindow = analytics.Window1Y - 1

// Result is the outcome of one valuation.
type Result struct {
	IndexID          int64             `json:"index_id"`
	Date             time.Time         `json:"date"`
	Value            float64           `json:"value"`
	WeightingMethod  string            `json:"weighting_method"`
	ConstituentCount int               `json:"constituent_count"`
	Constituents     []contracts.Row   `json:"constituents"`
	Metrics          analytics.Summary `json:"metrics"`
}

// Valuator runs valuations against the repositories.
type Valuator struct {
	definitions contracts.DefinitionRepository
	values      contracts.ValueRepository
	selector    *selection.Selector
	strategies  *weighting.Registry
	analytics   analytics.Config
	cache       *redis.Cache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// New creates a new valuator. Cache and metrics may be nil.
func New(
	definitions contracts.DefinitionRepository,
	values contracts.ValueRepository,
	selector *selection.Selector,
	strategies *weighting.Registry,
	analyticsCfg analytics.Config,
	log *logger.Logger,
) *Valuator {
	return &Valuator{
		definitions: definitions,
		values:      values,
		selector:    selector,
		strategies:  strategies,
		analytics:   analyticsCfg,
		logger:      log,
	}
}

// WithCache attaches a summary cache with the given TTL.
func (v *Valuator) WithCache(cache *redis.Cache, ttl time.Duration) *Valuator {
	v.cache = cache
	v.cacheTTL = ttl
	return v
}

// WithMetrics attaches Prometheus instrumentation.
func (v *Valuator) WithMetrics(m *metrics.Metrics) *Valuator {
	v.metrics = m
	return v
}

// Calculate values the index as of date and persists the result.
func (v *Valuator) Calculate(ctx context.Context, indexID int64, date time.Time) (*Result, error) {
	started := time.Now()
	result, err := v.calculate(ctx, indexID, date)
	v.metrics.ObserveValuation(err, time.Since(started))
	return result, err
}

func (v *Valuator) calculate(ctx context.Context, indexID int64, date time.Time) (*Result, error) {
	def, err := v.definitions.GetByID(ctx, indexID)
	if err != nil {
		return nil, err
	}

	rows, err := v.selector.Select(ctx, def, date)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, contracts.EmptyUniverse("index %q has no eligible constituents on %s",
			def.Name, date.Format("2006-01-02"))
	}

	strategy, ok := v.strategies.Get(def.WeightingMethod)
	if !ok {
		return nil, contracts.MissingData("index %q uses unknown weighting method %q",
			def.Name, def.WeightingMethod)
	}

	weights, err := strategy.Weights(rows)
	if err != nil {
		return nil, err
	}

	value := 0.0
	for i := range rows {
		rows[i].Weight = weights[i]
		value += weights[i] * rows[i].Close
	}

	summary, err := v.trailingSummary(ctx, indexID, date, value)
	if err != nil {
		return nil, err
	}

	if err := v.values.Upsert(ctx, &contracts.IndexValue{
		IndexID:     indexID,
		Date:        date,
		Value:       value,
		TotalReturn: summary.Return1D,
		PriceReturn: summary.Return1D,
		Volatility:  summary.Volatility,
		SharpeRatio: summary.SharpeRatio,
	}); err != nil {
		return nil, contracts.Infrastructure(err, "persist value for index %d", indexID)
	}

	// Stored values changed; cached summaries for this index are stale.
	if err := v.cache.DeletePrefix(ctx, cachePrefix(indexID)); err != nil {
		v.logger.WithError(err).Warn("Failed to invalidate summary cache")
	}

	v.logger.WithFields(map[string]interface{}{
		"index":        def.Name,
		"date":         date.Format("2006-01-02"),
		"value":        value,
		"constituents": len(rows),
		"method":       def.WeightingMethod,
	}).Info("Index valuation completed")

	return &Result{
		IndexID:          indexID,
		Date:             date,
		Value:            value,
		WeightingMethod:  def.WeightingMethod,
		ConstituentCount: len(rows),
		Constituents:     rows,
		Metrics:          summary,
	}, nil
}

// trailingSummary loads up to a year of stored values strictly before
// date, appends the fresh value, and summarizes the combined series.
func (v *Valuator) trailingSummary(ctx context.Context, indexID int64, date time.Time, value float64) (analytics.Summary, error) {
	trailing, err := v.values.GetTrailing(ctx, indexID, date.AddDate(0, 0, -1), trailingWindow)
	if err != nil {
		return analytics.Summary{}, contracts.Infrastructure(err, "load trailing values for index %d", indexID)
	}

	series := make([]float64, 0, len(trailing)+1)
	for _, tv := range trailing {
		series = append(series, tv.Value)
	}
	series = append(series, value)

	return v.analytics.Summarize(series), nil
}

// PerformanceSummary returns the stored-series summary for an index as
// of a date, served from cache when possible.
func (v *Valuator) PerformanceSummary(ctx context.Context, indexID int64, asOf time.Time) (*analytics.Summary, error) {
	key := summaryCacheKey(indexID, asOf)

	var cached analytics.Summary
	if hit, err := v.cache.Get(ctx, key, &cached); err != nil {
		v.logger.WithError(err).Warn("Summary cache read failed")
	} else if hit {
		return &cached, nil
	}

	if _, err := v.definitions.GetByID(ctx, indexID); err != nil {
		return nil, err
	}

	values, err := v.values.GetTrailing(ctx, indexID, asOf, analytics.Window1Y)
	if err != nil {
		return nil, contracts.Infrastructure(err, "load values for index %d", indexID)
	}
	if len(values) == 0 {
		return nil, contracts.NoData("index %d has no computed values at or before %s",
			indexID, asOf.Format("2006-01-02"))
	}

	series := make([]float64, 0, len(values))
	for _, iv := range values {
		series = append(series, iv.Value)
	}
	summary := v.analytics.Summarize(series)

	if err := v.cache.Set(ctx, key, summary, v.cacheTTL); err != nil {
		v.logger.WithError(err).Warn("Summary cache write failed")
	}

	return &summary, nil
}

func cachePrefix(indexID int64) string {
	return fmt.Sprintf("idx:%d:perf:", indexID)
}

func summaryCacheKey(indexID int64, asOf time.Time) string {
	return cachePrefix(indexID) + asOf.Format("2006-01-02")
}
