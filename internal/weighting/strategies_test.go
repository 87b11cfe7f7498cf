package weighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/contracts"
)

func ptr(v float64) *float64 { return &v }

func threeConstituents() []contracts.Row {
	return []contracts.Row{
		{SecurityID: 1, Symbol: "AAPL", Close: 150, MarketCap: ptr(150e9)},
		{SecurityID: 2, Symbol: "MSFT", Close: 300, MarketCap: ptr(225e9)},
		{SecurityID: 3, Symbol: "GOOGL", Close: 2500, MarketCap: ptr(250e9)},
	}
}

func assertSumsToOne(t *testing.T, weights []float64) {
	t.Helper()
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestEqualWeight(t *testing.T) {
	weights, err := EqualWeight{}.Weights(threeConstituents())
	require.NoError(t, err)

	for _, w := range weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-12)
	}
	assertSumsToOne(t, weights)
}

func TestMarketCapWeightScenario(t *testing.T) {
	weights, err := MarketCapWeight{}.Weights(threeConstituents())
	require.NoError(t, err)

	// 150/625, 225/625, 250/625.
	assert.InDelta(t, 0.24, weights[0], 1e-9)
	assert.InDelta(t, 0.36, weights[1], 1e-9)
	assert.InDelta(t, 0.40, weights[2], 1e-9)
	assertSumsToOne(t, weights)
}

func TestMarketCapWeightMonotonic(t *testing.T) {
	weights, err := MarketCapWeight{}.Weights(threeConstituents())
	require.NoError(t, err)

	// Strictly higher cap means strictly higher weight.
	assert.Greater(t, weights[1], weights[0])
	assert.Greater(t, weights[2], weights[1])
}

func TestMarketCapWeightDerivesFromShares(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, Shares: ptr(100)},
		{SecurityID: 2, Symbol: "B", Close: 10, Shares: ptr(300)},
	}

	weights, err := MarketCapWeight{}.Weights(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, weights[0], 1e-9)
	assert.InDelta(t, 0.75, weights[1], 1e-9)
}

func TestMarketCapWeightFallsBackToEqual(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, MarketCap: ptr(5e9)},
		{SecurityID: 2, Symbol: "B", Close: 20}, // no cap, no shares
	}

	weights, err := MarketCapWeight{}.Weights(rows)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 0.5}, weights)
}

func TestMarketCapWeightDegenerate(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, MarketCap: ptr(0)},
		{SecurityID: 2, Symbol: "B", Close: 20, MarketCap: ptr(0)},
	}

	_, err := MarketCapWeight{}.Weights(rows)
	require.Error(t, err)
	assert.Equal(t, contracts.KindDegenerateWeight, contracts.KindOf(err))
}

func TestPriceWeight(t *testing.T) {
	weights, err := PriceWeight{}.Weights(threeConstituents())
	require.NoError(t, err)

	total := 150.0 + 300.0 + 2500.0
	assert.InDelta(t, 150.0/total, weights[0], 1e-9)
	assert.InDelta(t, 2500.0/total, weights[2], 1e-9)
	assertSumsToOne(t, weights)
}

func TestPriceWeightRejectsNonPositivePrice(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10},
		{SecurityID: 2, Symbol: "B", Close: 0},
	}

	_, err := PriceWeight{}.Weights(rows)
	require.Error(t, err)
	assert.Equal(t, contracts.KindMissingData, contracts.KindOf(err))
}

func TestRevenueWeight(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, Revenue: ptr(100e9)},
		{SecurityID: 2, Symbol: "B", Close: 20, Revenue: ptr(300e9)},
	}

	weights, err := RevenueWeight{}.Weights(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, weights[0], 1e-9)
	assert.InDelta(t, 0.75, weights[1], 1e-9)
}

func TestRevenueWeightMissingData(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, Revenue: ptr(100e9)},
		{SecurityID: 2, Symbol: "B", Close: 20},
	}

	_, err := RevenueWeight{}.Weights(rows)
	require.Error(t, err)
	assert.Equal(t, contracts.KindMissingData, contracts.KindOf(err))
}

func TestESGWeight(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, ESGScore: ptr(80)},
		{SecurityID: 2, Symbol: "B", Close: 20, ESGScore: ptr(40)},
	}

	weights, err := ESGWeight{}.Weights(rows)
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3.0, weights[0], 1e-9)
	assert.InDelta(t, 1.0/3.0, weights[1], 1e-9)
	assertSumsToOne(t, weights)
}

func TestESGWeightFallsBackToEqual(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 10, ESGScore: ptr(80)},
		{SecurityID: 2, Symbol: "B", Close: 20},
	}

	weights, err := ESGWeight{}.Weights(rows)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 0.5}, weights)
}

func TestAllStrategiesSumToOne(t *testing.T) {
	rows := []contracts.Row{
		{SecurityID: 1, Symbol: "A", Close: 12.5, MarketCap: ptr(10e9), Revenue: ptr(4e9), ESGScore: ptr(55)},
		{SecurityID: 2, Symbol: "B", Close: 87.1, MarketCap: ptr(90e9), Revenue: ptr(31e9), ESGScore: ptr(71)},
		{SecurityID: 3, Symbol: "C", Close: 43.9, MarketCap: ptr(2e9), Revenue: ptr(1e9), ESGScore: ptr(12)},
		{SecurityID: 4, Symbol: "D", Close: 250.0, MarketCap: ptr(410e9), Revenue: ptr(120e9), ESGScore: ptr(88)},
	}

	registry := NewRegistry()
	for _, name := range registry.Methods() {
		strategy, ok := registry.Get(name)
		require.True(t, ok)

		weights, err := strategy.Weights(rows)
		require.NoError(t, err, name)
		require.Len(t, weights, len(rows), name)
		assertSumsToOne(t, weights)
	}
}

func TestRegistryUnknownMethod(t *testing.T) {
	_, ok := NewRegistry().Get("volatility_weight")
	assert.False(t, ok)
}
