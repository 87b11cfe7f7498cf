package indexconfig

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/store/memstore"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/logger"
)

func newLoader(store *memstore.Store) *Loader {
	return NewLoader(store.Definitions(), weighting.NewRegistry(), logger.NewNop())
}

const validSeed = `
indexes:
  - name: US Tech 50
    description: Largest US technology names
    weighting_method: market_cap_weight
    rebalance_frequency: quarterly
    max_constituents: 50
    min_market_cap: 10000000000
    sectors: [Technology]
    countries: [US]
  - name: Green Leaders
    weighting_method: esg_weight
    min_esg_score: 70
`

func TestParseValidSeed(t *testing.T) {
	loader := newLoader(memstore.New())

	seeds, err := loader.Parse(strings.NewReader(validSeed))
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, "US Tech 50", seeds[0].Name)
	assert.Equal(t, weighting.MethodMarketCap, seeds[0].WeightingMethod)
	assert.Equal(t, []string{"Technology"}, seeds[0].Sectors)
	assert.Equal(t, 70.0, seeds[1].MinESGScore)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	loader := newLoader(memstore.New())

	doc := `
indexes:
  - name: Typo Index
    weighting_method: equal_weight
    max_constituants: 10
`
	_, err := loader.Parse(strings.NewReader(doc))
	require.Error(t, err)
}

func TestParseRejectsUnknownWeightingMethod(t *testing.T) {
	loader := newLoader(memstore.New())

	doc := `
indexes:
  - name: Bad Method
    weighting_method: volatility_weight
`
	_, err := loader.Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volatility_weight")
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	loader := newLoader(memstore.New())

	doc := `
indexes:
  - name: Twin
    weighting_method: equal_weight
  - name: Twin
    weighting_method: price_weight
`
	_, err := loader.Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")
}

func TestParseRejectsInvertedCapBounds(t *testing.T) {
	loader := newLoader(memstore.New())

	doc := `
indexes:
  - name: Inverted
    weighting_method: equal_weight
    min_market_cap: 100
    max_market_cap: 50
`
	_, err := loader.Parse(strings.NewReader(doc))
	require.Error(t, err)
}

func TestApplyCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	loader := newLoader(store)

	seeds, err := loader.Parse(strings.NewReader(validSeed))
	require.NoError(t, err)

	applied, err := loader.Apply(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	def, err := store.Definitions().GetByName(ctx, "US Tech 50")
	require.NoError(t, err)
	assert.True(t, def.IsActive)
	assert.Equal(t, contracts.FrequencyQuarterly, def.RebalanceFrequency)

	// Missing frequency defaults to monthly.
	green, err := store.Definitions().GetByName(ctx, "Green Leaders")
	require.NoError(t, err)
	assert.Equal(t, contracts.FrequencyMonthly, green.RebalanceFrequency)

	// Re-applying updates in place instead of duplicating, and an
	// operator's deactivation survives the update.
	green.IsActive = false
	require.NoError(t, store.Definitions().Update(ctx, green))

	seeds[1].Description = "updated"
	applied, err = loader.Apply(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	all, err := store.Definitions().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	green, err = store.Definitions().GetByName(ctx, "Green Leaders")
	require.NoError(t, err)
	assert.Equal(t, "updated", green.Description)
	assert.False(t, green.IsActive)
}
