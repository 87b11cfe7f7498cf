// Package metrics exposes Prometheus instrumentation for the engine.
// All recording methods are nil-safe so callers can run without a
// metrics registry (tests, one-shot CLI commands).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the engine's instrument set.
type Metrics struct {
	valuations        *prometheus.CounterVec
	rebalances        *prometheus.CounterVec
	backtests         *prometheus.CounterVec
	valuationDuration prometheus.Histogram
}

// New registers the instrument set on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		valuations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexforge",
			Name:      "valuations_total",
			Help:      "Index valuations attempted, by outcome.",
		}, []string{"outcome"}),
		rebalances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexforge",
			Name:      "rebalances_total",
			Help:      "Index rebalances attempted, by outcome.",
		}, []string{"outcome"}),
		backtests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexforge",
			Name:      "backtests_total",
			Help:      "Backtest runs attempted, by outcome.",
		}, []string{"outcome"}),
		valuationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexforge",
			Name:      "valuation_duration_seconds",
			Help:      "Wall time of a single index valuation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveValuation records one valuation attempt and its duration.
func (m *Metrics) ObserveValuation(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.valuations.WithLabelValues(outcome(err)).Inc()
	m.valuationDuration.Observe(elapsed.Seconds())
}

// ObserveRebalance records one rebalance attempt.
func (m *Metrics) ObserveRebalance(err error) {
	if m == nil {
		return
	}
	m.rebalances.WithLabelValues(outcome(err)).Inc()
}

// ObserveBacktest records one backtest run.
func (m *Metrics) ObserveBacktest(err error) {
	if m == nil {
		return
	}
	m.backtests.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
