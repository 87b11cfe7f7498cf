package jobs

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
	"github.com/indexforge/backend/pkg/config"
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

func newSweepJob(t *testing.T, store *memstore.Store) *RebalanceSweepJob {
	t.Helper()
	log := logger.NewNop()
	registry := weighting.NewRegistry()
	selector := selection.New(store.Memberships(), store.Prices(), store.Securities(), log)
	valuator := engine.New(store.Definitions(), store.Values(), selector, registry, analytics.DefaultConfig(), log)
	rebalancer := rebalance.New(store.Definitions(), store.Memberships(), store.Securities(), selector, registry, log)

	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{RebalanceSpec: "0 30 17 * * MON-FRI"},
	}
	return NewRebalanceSweepJob(store.Definitions(), store.Memberships(), rebalancer, valuator, cfg, log)
}

func seedIndex(t *testing.T, store *memstore.Store, frequency string) int64 {
	t.Helper()
	ctx := context.Background()

	def := &contracts.IndexDefinition{
		Name:               "Sweep Index",
		WeightingMethod:    weighting.MethodEqual,
		RebalanceFrequency: frequency,
		IsActive:           true,
	}
	require.NoError(t, store.Definitions().Create(ctx, def))

	sec := &contracts.Security{Symbol: "AAPL", MarketCap: ptr(100e9), IsActive: true}
	require.NoError(t, store.Securities().Save(ctx, sec))
	require.NoError(t, store.Prices().Save(ctx, &contracts.PriceObservation{
		SecurityID: sec.ID, Date: day("2024-01-05"), Close: 150,
	}))
	require.NoError(t, store.Memberships().ApplyRebalance(ctx, def.ID, day("2024-01-05"), nil, []*contracts.Membership{
		{SecurityID: sec.ID, Weight: 1},
	}))
	return def.ID
}

func TestSweepRebalancesWhenDue(t *testing.T) {
	store := memstore.New()
	job := newSweepJob(t, store)
	indexID := seedIndex(t, store, contracts.FrequencyWeekly)

	// Five business days after the last rebalance: weekly cadence is due.
	require.NoError(t, job.sweep(context.Background(), day("2024-01-12")))

	last, err := store.Memberships().LastRebalanceDate(context.Background(), indexID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-12"), last)

	// The sweep also valued the index for the day.
	values, err := store.Values().GetTrailing(context.Background(), indexID, day("2024-01-12"), 10)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, 150.0, values[0].Value)
}

func TestSweepSkipsWhenNotDue(t *testing.T) {
	store := memstore.New()
	job := newSweepJob(t, store)
	indexID := seedIndex(t, store, contracts.FrequencyMonthly)

	// Only five business days elapsed; monthly cadence is not due, but
	// the daily valuation still runs.
	require.NoError(t, job.sweep(context.Background(), day("2024-01-12")))

	last, err := store.Memberships().LastRebalanceDate(context.Background(), indexID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-05"), last)

	values, err := store.Values().GetTrailing(context.Background(), indexID, day("2024-01-12"), 10)
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestSweepToleratesUnvaluableIndex(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newSweepJob(t, store)

	// Active index with no members and no prices: both the rebalance and
	// the valuation are recoverable skips, not sweep failures.
	def := &contracts.IndexDefinition{
		Name:            "Empty Index",
		WeightingMethod: weighting.MethodEqual,
		IsActive:        true,
	}
	require.NoError(t, store.Definitions().Create(ctx, def))

	require.NoError(t, job.sweep(ctx, day("2024-01-12")))
}

func TestBusinessDaysBetween(t *testing.T) {
	// Friday to next Friday spans five business days.
	assert.Equal(t, 5, businessDaysBetween(day("2024-01-05"), day("2024-01-12")))
	// Friday to Monday spans one.
	assert.Equal(t, 1, businessDaysBetween(day("2024-01-05"), day("2024-01-08")))
	// Same day spans zero.
	assert.Equal(t, 0, businessDaysBetween(day("2024-01-05"), day("2024-01-05")))
}
