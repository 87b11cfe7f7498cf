package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/analytics"
	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/engine"
	"github.com/indexforge/backend/internal/rebalance"
	"github.com/indexforge/backend/internal/selection"
	"github.com/indexforge/backend/internal/store/memstore"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
)

func ptr(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store   *memstore.Store
	engine  *Engine
	indexID int64
}

func newFixture(t *testing.T, frequency string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	log := logger.NewNop()

	def := &contracts.IndexDefinition{
		Name:               "Backtest Index",
		WeightingMethod:    weighting.MethodEqual,
		RebalanceFrequency: frequency,
		IsActive:           true,
	}
	require.NoError(t, store.Definitions().Create(ctx, def))

	registry := weighting.NewRegistry()
	selector := selection.New(store.Memberships(), store.Prices(), store.Securities(), log)
	valuator := engine.New(store.Definitions(), store.Values(), selector, registry, analytics.DefaultConfig(), log)
	rebalancer := rebalance.New(store.Definitions(), store.Memberships(), store.Securities(), selector, registry, log)
	backtester := New(store.Definitions(), selector, valuator, rebalancer, analytics.DefaultConfig(), log)

	return &fixture{store: store, engine: backtester, indexID: def.ID}
}

func (f *fixture) addSecurity(t *testing.T, symbol string) int64 {
	t.Helper()
	sec := &contracts.Security{Symbol: symbol, MarketCap: ptr(100e9), IsActive: true}
	require.NoError(t, f.store.Securities().Save(context.Background(), sec))
	return sec.ID
}

func (f *fixture) addPrice(t *testing.T, securityID int64, date string, close float64) {
	t.Helper()
	require.NoError(t, f.store.Prices().Save(context.Background(), &contracts.PriceObservation{
		SecurityID: securityID, Date: day(date), Close: close,
	}))
}

func (f *fixture) seedMembers(t *testing.T, date string, ids ...int64) {
	t.Helper()
	rows := make([]*contracts.Membership, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, &contracts.Membership{SecurityID: id})
	}
	require.NoError(t, f.store.Memberships().ApplyRebalance(context.Background(), f.indexID, day(date), nil, rows))
}

func TestRunSkipsWeekendsAndUnvaluedDays(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)
	a := f.addSecurity(t, "AAPL")
	f.seedMembers(t, "2024-01-01", a)
	// Prices only exist from Wednesday on; Monday and Tuesday cannot be
	// valued and are skipped.
	f.addPrice(t, a, "2024-01-03", 100)
	f.addPrice(t, a, "2024-01-04", 102)
	f.addPrice(t, a, "2024-01-05", 101)

	// Mon 2024-01-01 through Sun 2024-01-07.
	result, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-07"), "")
	require.NoError(t, err)

	require.Len(t, result.Series, 3)
	assert.Equal(t, 2, result.SkippedDays)
	assert.Equal(t, day("2024-01-03"), result.Series[0].Date)
	assert.Equal(t, 100.0, result.Series[0].Value)
	assert.InDelta(t, 0.02, result.Series[1].DailyReturn, 1e-9)
	assert.InDelta(t, 0.01, result.Series[2].CumulativeReturn, 1e-9)
	assert.InDelta(t, 0.01, result.Metrics.TotalReturn, 1e-9)
	assert.NotEmpty(t, result.RunID)
}

func TestRunDailyRebalanceCadence(t *testing.T) {
	f := newFixture(t, contracts.FrequencyDaily)
	a := f.addSecurity(t, "AAPL")
	f.seedMembers(t, "2024-01-01", a)
	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		f.addPrice(t, a, date, 100+float64(i))
	}

	result, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-05"), "")
	require.NoError(t, err)

	require.Len(t, result.Series, 5)
	assert.Equal(t, 5, result.Rebalances)
}

func TestRunMonthlyRebalancesOnce(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)
	a := f.addSecurity(t, "AAPL")
	f.seedMembers(t, "2024-01-01", a)
	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		f.addPrice(t, a, date, 100+float64(i))
	}

	result, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-05"), "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rebalances)
}

func TestRunFrequencyOverride(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)
	a := f.addSecurity(t, "AAPL")
	f.seedMembers(t, "2024-01-01", a)
	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		f.addPrice(t, a, date, 100+float64(i))
	}

	// The monthly definition rebalances daily when the run says so.
	result, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-05"), contracts.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Rebalances)

	_, err = f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-05"), "hourly")
	require.Error(t, err)
	assert.Equal(t, contracts.KindMissingData, contracts.KindOf(err))
}

func TestRunRebalanceDropsIneligibleMidRun(t *testing.T) {
	f := newFixture(t, contracts.FrequencyDaily)
	a := f.addSecurity(t, "AAPL")
	b := f.addSecurity(t, "SHRK")
	f.seedMembers(t, "2024-01-01", a, b)
	for i, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		f.addPrice(t, a, date, 100+float64(i))
		f.addPrice(t, b, date, 50)
	}

	// Shrink b's cap below the floor before the run; the first daily
	// rebalance evicts it.
	shrunk, err := f.store.Securities().GetByID(context.Background(), b)
	require.NoError(t, err)
	shrunk.MarketCap = ptr(1e6)
	require.NoError(t, f.store.Securities().Save(context.Background(), shrunk))

	def, err := f.store.Definitions().GetByID(context.Background(), f.indexID)
	require.NoError(t, err)
	def.MinMarketCap = 1e9
	require.NoError(t, f.store.Definitions().Update(context.Background(), def))

	result, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-03"), "")
	require.NoError(t, err)

	require.Len(t, result.Series, 3)
	for _, p := range result.Series {
		assert.Equal(t, 1, p.ConstituentCount)
	}
}

func TestRunNoValuedDays(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)
	// Membership exists but nothing ever trades.
	a := f.addSecurity(t, "GHST")
	f.seedMembers(t, "2024-01-01", a)

	_, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-01"), day("2024-01-05"), "")
	require.Error(t, err)
	assert.Equal(t, contracts.KindNoData, contracts.KindOf(err))
}

func TestRunEmptyRange(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)

	_, err := f.engine.Run(context.Background(), f.indexID, day("2024-01-05"), day("2024-01-01"), "")
	require.Error(t, err)
	assert.Equal(t, contracts.KindNoData, contracts.KindOf(err))
}

func TestRunUnknownIndex(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)

	_, err := f.engine.Run(context.Background(), 999, day("2024-01-01"), day("2024-01-05"), "")
	require.Error(t, err)
	assert.Equal(t, contracts.KindNotFound, contracts.KindOf(err))
}

func TestRunCanceledContext(t *testing.T) {
	f := newFixture(t, contracts.FrequencyMonthly)
	a := f.addSecurity(t, "AAPL")
	f.seedMembers(t, "2024-01-01", a)
	f.addPrice(t, a, "2024-01-01", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Run(ctx, f.indexID, day("2024-01-01"), day("2024-01-05"), "")
	require.Error(t, err)
	assert.Equal(t, contracts.KindInfrastructure, contracts.KindOf(err))
}
