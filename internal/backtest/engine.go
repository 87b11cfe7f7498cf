// Package backtest replays an index over a historical date range,
// valuing it business day by business day and rebalancing on the
// definition's cadence.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/indexforge/backend/internal/analytics"
	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/engine"
	"github.com/indexforge/backend/internal/metrics"
	"github.com/indexforge/backend/internal/rebalance"
	"github.com/indexforge/backend/internal/selection"
	"github.com/indexforge/backend/pkg/logger"
)

// Point is one valued business day of a run.
type Point struct {
	Date             time.Time `json:"date"`
	Value            float64   `json:"value"`
	ConstituentCount int       `json:"constituent_count"`
	DailyReturn      float64   `json:"daily_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
}

// Result is a completed backtest run.
type Result struct {
	RunID       string                    `json:"run_id"`
	IndexID     int64                     `json:"index_id"`
	IndexName   string                    `json:"index_name"`
	StartDate   time.Time                 `json:"start_date"`
	EndDate     time.Time                 `json:"end_date"`
	Series      []Point                   `json:"series"`
	Metrics     analytics.BacktestMetrics `json:"metrics"`
	SkippedDays int                       `json:"skipped_days"`
	Rebalances  int                       `json:"rebalances"`
}

// Engine orchestrates backtest runs.
type Engine struct {
	definitions contracts.DefinitionRepository
	selector    *selection.Selector
	valuator    *engine.Valuator
	rebalancer  *rebalance.Rebalancer
	analytics   analytics.Config
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// New creates a new backtest engine. Metrics may be nil.
func New(
	definitions contracts.DefinitionRepository,
	selector *selection.Selector,
	valuator *engine.Valuator,
	rebalancer *rebalance.Rebalancer,
	analyticsCfg analytics.Config,
	log *logger.Logger,
) *Engine {
	return &Engine{
		definitions: definitions,
		selector:    selector,
		valuator:    valuator,
		rebalancer:  rebalancer,
		analytics:   analyticsCfg,
		logger:      log,
	}
}

// WithMetrics attaches Prometheus instrumentation.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Run replays the index from start to end inclusive. Weekends are
// skipped; days where the index cannot be valued (empty universe,
// missing data) are counted and skipped; infrastructure failures abort
// the run. A non-empty frequency overrides the definition's rebalance
// cadence for this run only.
func (e *Engine) Run(ctx context.Context, indexID int64, start, end time.Time, frequency string) (*Result, error) {
	result, err := e.run(ctx, indexID, start, end, frequency)
	e.metrics.ObserveBacktest(err)
	return result, err
}

func (e *Engine) run(ctx context.Context, indexID int64, start, end time.Time, frequency string) (*Result, error) {
	if end.Before(start) {
		return nil, contracts.NoData("backtest range is empty: %s after %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if frequency != "" && !contracts.ValidFrequency(frequency) {
		return nil, contracts.MissingData("unknown rebalance frequency %q", frequency)
	}

	def, err := e.definitions.GetByID(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if frequency == "" {
		frequency = def.RebalanceFrequency
	}

	runID := uuid.New().String()
	interval := contracts.RebalanceInterval(frequency)

	e.logger.WithFields(map[string]interface{}{
		"run_id":    runID,
		"index":     def.Name,
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
		"frequency": frequency,
	}).Info("Backtest started")

	result := &Result{
		RunID:     runID,
		IndexID:   indexID,
		IndexName: def.Name,
		StartDate: start,
		EndDate:   end,
		Series:    make([]Point, 0),
	}

	businessDays := 0
	rebalanceDue := false
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, contracts.Infrastructure(err, "backtest %s canceled", runID)
		}
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		// A rebalance falls due on the first business day and every
		// interval after. When no constituents are selectable (data gap)
		// the rebalance carries forward instead of emptying the index.
		if businessDays%interval == 0 {
			rebalanceDue = true
		}
		businessDays++

		if rebalanceDue {
			applied, err := e.tryRebalance(ctx, def, date)
			if err != nil {
				return nil, err
			}
			if applied {
				result.Rebalances++
				rebalanceDue = false
			}
		}

		valuation, err := e.valuator.Calculate(ctx, indexID, date)
		if err != nil {
			if !contracts.IsRecoverable(err) {
				return nil, err
			}
			result.SkippedDays++
			continue
		}

		point := Point{
			Date:             date,
			Value:            valuation.Value,
			ConstituentCount: valuation.ConstituentCount,
		}
		if n := len(result.Series); n > 0 {
			prev := result.Series[n-1].Value
			if prev > 0 {
				point.DailyReturn = valuation.Value/prev - 1
			}
		}
		if first := firstValue(result.Series); first > 0 {
			point.CumulativeReturn = valuation.Value/first - 1
		}
		result.Series = append(result.Series, point)
	}

	if len(result.Series) == 0 {
		return nil, contracts.NoData("backtest %s produced no valued days between %s and %s",
			runID, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	values := make([]float64, 0, len(result.Series))
	for _, p := range result.Series {
		values = append(values, p.Value)
	}
	result.Metrics = e.analytics.SummarizeBacktest(values)

	e.logger.WithFields(map[string]interface{}{
		"run_id":       runID,
		"points":       len(result.Series),
		"skipped":      result.SkippedDays,
		"rebalances":   result.Rebalances,
		"total_return": result.Metrics.TotalReturn,
	}).Info("Backtest completed")

	return result, nil
}

// tryRebalance applies a due rebalance if the target universe is
// non-empty. Recoverable selection or weighting failures leave the
// rebalance pending; the bool reports whether it was applied.
func (e *Engine) tryRebalance(ctx context.Context, def *contracts.IndexDefinition, date time.Time) (bool, error) {
	target, err := e.selector.Select(ctx, def, date)
	if err != nil {
		return false, err
	}
	if len(target) == 0 {
		return false, nil
	}

	if _, err := e.rebalancer.Rebalance(ctx, def.ID, date); err != nil {
		if !contracts.IsRecoverable(err) {
			return false, err
		}
		e.logger.WithError(err).WithField("date", date.Format("2006-01-02")).
			Debug("Rebalance deferred")
		return false, nil
	}
	return true, nil
}

func firstValue(series []Point) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[0].Value
}
