// Package analytics derives return and risk metrics from index value
// series. Every function is total: degenerate input (empty or singleton
// series, zero variance) yields neutral zero values, never an error,
// because callers chain these into a single response payload.
package analytics

import "math"

// Config carries the numeric defaults for the calculations. Lifted out
// of the formulas so deployments can tune them via configuration.
type Config struct {
	RiskFreeRate       float64 // annual, e.g. 0.02
	TradingDaysPerYear int     // e.g. 252
}

// DefaultConfig returns the conventional 2% risk-free rate and 252
// trading days.
func DefaultConfig() Config {
	return Config{RiskFreeRate: 0.02, TradingDaysPerYear: 252}
}

// Trailing observation windows, in daily returns.
const (
	Window1W = 5
	Window1M = 20
	Window3M = 60
	Window1Y = 252
)

// Summary holds the point-in-time metrics attached to a valuation.
type Summary struct {
	Return1D    float64 `json:"return_1d"`
	Return1W    float64 `json:"return_1w"`
	Return1M    float64 `json:"return_1m"`
	Return3M    float64 `json:"return_3m"`
	Return1Y    float64 `json:"return_1y"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// BacktestMetrics holds the aggregate metrics over a full backtest series.
type BacktestMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
}

// DailyReturns computes close-to-close percentage changes. Values at or
// below zero break the chain and contribute no return observation.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// WindowedReturn sums the trailing window daily returns. Returns 0 when
// fewer observations exist than the window requires.
func WindowedReturn(returns []float64, window int) float64 {
	if window <= 0 || len(returns) < window {
		return 0
	}

	sum := 0.0
	for _, r := range returns[len(returns)-window:] {
		sum += r
	}
	return sum
}

// Volatility computes annualized volatility from daily returns using the
// sample standard deviation.
func (c Config) Volatility(returns []float64) float64 {
	return stddev(returns) * math.Sqrt(float64(c.TradingDaysPerYear))
}

// SharpeRatio computes the annualized Sharpe ratio over daily returns.
// Returns 0 with fewer than 2 observations or zero dispersion.
func (c Config) SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	dailyRiskFree := c.RiskFreeRate / float64(c.TradingDaysPerYear)
	excess := 0.0
	for _, r := range returns {
		excess += r - dailyRiskFree
	}
	excessMean := excess / float64(len(returns))

	return excessMean / sd * math.Sqrt(float64(c.TradingDaysPerYear))
}

// MaxDrawdown computes the deepest peak-to-trough decline of the growth
// curve built from daily returns. The result is non-positive.
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	growth := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, r := range returns {
		growth *= 1 + r
		if growth > peak {
			peak = growth
		}
		if dd := (growth - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// AnnualizedReturn compounds the mean daily return over a trading year.
func (c Config) AnnualizedReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return math.Pow(1+mean(returns), float64(c.TradingDaysPerYear)) - 1
}

// Summarize computes the point-in-time summary over an ordered value
// series (oldest first, newest last).
func (c Config) Summarize(values []float64) Summary {
	returns := DailyReturns(values)

	var ret1d float64
	if len(returns) > 0 {
		ret1d = returns[len(returns)-1]
	}

	return Summary{
		Return1D:    ret1d,
		Return1W:    WindowedReturn(returns, Window1W),
		Return1M:    WindowedReturn(returns, Window1M),
		Return3M:    WindowedReturn(returns, Window3M),
		Return1Y:    WindowedReturn(returns, Window1Y),
		Volatility:  c.Volatility(returns),
		SharpeRatio: c.SharpeRatio(returns),
		MaxDrawdown: MaxDrawdown(returns),
	}
}

// SummarizeBacktest computes the aggregate metrics over a full series.
func (c Config) SummarizeBacktest(values []float64) BacktestMetrics {
	returns := DailyReturns(values)

	var total float64
	if len(values) >= 2 && values[0] > 0 {
		total = values[len(values)-1]/values[0] - 1
	}

	wins, losses := 0, 0
	sumWin, sumLoss := 0.0, 0.0
	for _, r := range returns {
		if r > 0 {
			wins++
			sumWin += r
		} else if r < 0 {
			losses++
			sumLoss += r
		}
	}

	metrics := BacktestMetrics{
		TotalReturn:      total,
		AnnualizedReturn: c.AnnualizedReturn(returns),
		Volatility:       c.Volatility(returns),
		SharpeRatio:      c.SharpeRatio(returns),
		MaxDrawdown:      MaxDrawdown(returns),
	}

	if len(returns) > 0 {
		metrics.WinRate = float64(wins) / float64(len(returns))
	}
	if wins > 0 {
		metrics.AvgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		metrics.AvgLoss = sumLoss / float64(losses)
	}

	return metrics
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}

	m := mean(xs)
	variance := 0.0
	for _, x := range xs {
		diff := x - m
		variance += diff * diff
	}
	variance /= float64(len(xs) - 1)

	return math.Sqrt(variance)
}
