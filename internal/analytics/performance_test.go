package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReturns(t *testing.T) {
	returns := DailyReturns([]float64{100, 105, 102})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.05, returns[0], 1e-9)
	assert.InDelta(t, -0.02857, returns[1], 1e-4)
}

func TestDailyReturnsDegenerate(t *testing.T) {
	assert.Nil(t, DailyReturns(nil))
	assert.Nil(t, DailyReturns([]float64{100}))
	// A zero value breaks the chain instead of dividing by zero.
	assert.Len(t, DailyReturns([]float64{100, 0, 50}), 1)
}

func TestWindowedReturn(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.03, 0.01}

	assert.InDelta(t, 0.06, WindowedReturn(returns, 5), 1e-9)
	// Trailing three observations: -0.01 + 0.03 + 0.01.
	assert.InDelta(t, 0.03, WindowedReturn(returns, 3), 1e-9)
	// Fewer observations than the window requires: neutral zero.
	assert.Zero(t, WindowedReturn(returns, 6))
	assert.Zero(t, WindowedReturn(nil, 5))
}

func TestMaxDrawdownScenario(t *testing.T) {
	// Peak 108 to trough 95.
	values := []float64{100, 105, 102, 108, 95, 98, 110, 115}

	dd := MaxDrawdown(DailyReturns(values))
	assert.InDelta(t, -0.1204, dd, 5e-4)
}

func TestMaxDrawdownNonPositive(t *testing.T) {
	assert.Zero(t, MaxDrawdown(nil))
	assert.Zero(t, MaxDrawdown([]float64{0.01, 0.02})) // monotonic rise
	assert.LessOrEqual(t, MaxDrawdown([]float64{0.05, -0.2, 0.1}), 0.0)
}

func TestVolatilityNonNegative(t *testing.T) {
	cfg := DefaultConfig()

	assert.Zero(t, cfg.Volatility(nil))
	assert.Zero(t, cfg.Volatility([]float64{0.01}))
	assert.Greater(t, cfg.Volatility([]float64{0.01, -0.02, 0.03}), 0.0)
}

func TestVolatilityAnnualization(t *testing.T) {
	cfg := DefaultConfig()
	returns := []float64{0.01, -0.01, 0.01, -0.01}

	// Sample stddev of the series times sqrt(252); mean is 0, so the
	// sample variance is 4·(0.01)²/3.
	sd := math.Sqrt(4 * 0.0001 / 3)
	assert.InDelta(t, sd*math.Sqrt(252), cfg.Volatility(returns), 1e-6)
}

func TestSharpeRatio(t *testing.T) {
	cfg := DefaultConfig()

	assert.Zero(t, cfg.SharpeRatio(nil))
	assert.Zero(t, cfg.SharpeRatio([]float64{0.01}))
	// Zero dispersion: neutral zero, not infinity.
	assert.Zero(t, cfg.SharpeRatio([]float64{0.01, 0.01, 0.01}))

	returns := []float64{0.01, 0.02, -0.005, 0.015}
	got := cfg.SharpeRatio(returns)
	assert.Greater(t, got, 0.0)

	// Raising the risk-free rate lowers the ratio.
	rich := Config{RiskFreeRate: 0.10, TradingDaysPerYear: 252}
	assert.Less(t, rich.SharpeRatio(returns), got)
}

func TestSummarizeDegenerate(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, Summary{}, cfg.Summarize(nil))
	assert.Equal(t, Summary{}, cfg.Summarize([]float64{100}))
}

func TestSummarize(t *testing.T) {
	cfg := DefaultConfig()
	values := []float64{100, 101, 103, 102, 104, 106, 105}

	s := cfg.Summarize(values)

	assert.InDelta(t, 105.0/106.0-1, s.Return1D, 1e-9)
	assert.InDelta(t, 105.0/101.0-1, s.Return1W, 2e-3) // sum of last 5 daily returns
	assert.Zero(t, s.Return1M)                         // fewer than 20 observations
	assert.Zero(t, s.Return1Y)
	assert.GreaterOrEqual(t, s.Volatility, 0.0)
	assert.LessOrEqual(t, s.MaxDrawdown, 0.0)
}

func TestSummarizeBacktest(t *testing.T) {
	cfg := DefaultConfig()
	values := []float64{100, 102, 101, 105, 104, 108}

	m := cfg.SummarizeBacktest(values)

	assert.InDelta(t, 0.08, m.TotalReturn, 1e-9)
	assert.InDelta(t, 3.0/5.0, m.WinRate, 1e-9)
	assert.Greater(t, m.AvgWin, 0.0)
	assert.Less(t, m.AvgLoss, 0.0)
	assert.Greater(t, m.AnnualizedReturn, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
}

func TestSummarizeBacktestDegenerate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BacktestMetrics{}, cfg.SummarizeBacktest(nil))
	assert.Equal(t, BacktestMetrics{}, cfg.SummarizeBacktest([]float64{100}))
}
