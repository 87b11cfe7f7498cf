package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexforge/backend/internal/contracts"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSecurityRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	sec := &contracts.Security{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", IsActive: true}
	require.NoError(t, store.Securities().Save(ctx, sec))
	require.NotZero(t, sec.ID)

	got, err := store.Securities().GetBySymbol(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, sec.ID, got.ID)

	_, err = store.Securities().GetByID(ctx, 999)
	assert.Equal(t, contracts.KindNotFound, contracts.KindOf(err))
}

func TestPriceLatestAtOrBefore(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Prices().SaveBatch(ctx, []*contracts.PriceObservation{
		{SecurityID: 1, Date: day("2024-01-05"), Close: 100},
		{SecurityID: 1, Date: day("2024-01-08"), Close: 105},
	}))

	// Weekend gap: Saturday the 6th resolves to Friday's close.
	obs, err := store.Prices().GetLatestAtOrBefore(ctx, 1, day("2024-01-06"))
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, 100.0, obs.Close)

	// Before any observation: nil, not an error.
	obs, err = store.Prices().GetLatestAtOrBefore(ctx, 1, day("2024-01-01"))
	require.NoError(t, err)
	assert.Nil(t, obs)
}

func TestPriceSaveOverwritesSameDate(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Prices().Save(ctx, &contracts.PriceObservation{SecurityID: 1, Date: day("2024-01-05"), Close: 100}))
	require.NoError(t, store.Prices().Save(ctx, &contracts.PriceObservation{SecurityID: 1, Date: day("2024-01-05"), Close: 101}))

	obs, err := store.Prices().GetLatestAtOrBefore(ctx, 1, day("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 101.0, obs.Close)
}

func TestMembershipResolveAsOf(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Memberships().ApplyRebalance(ctx, 1, day("2024-01-01"), nil, []*contracts.Membership{
		{SecurityID: 10, Weight: 0.5},
		{SecurityID: 20, Weight: 0.5},
	}))
	// Second rebalance drops 20 and adds 30.
	require.NoError(t, store.Memberships().ApplyRebalance(ctx, 1, day("2024-02-01"), []int64{20}, []*contracts.Membership{
		{SecurityID: 10, Weight: 0.6},
		{SecurityID: 30, Weight: 0.4, IsNewAddition: true},
	}))

	// Before the second rebalance both originals are in.
	members, err := store.Memberships().ResolveAsOf(ctx, 1, day("2024-01-15"))
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(10), members[0].SecurityID)
	assert.Equal(t, int64(20), members[1].SecurityID)

	// After: 20's latest row is a removal, so it drops out.
	members, err = store.Memberships().ResolveAsOf(ctx, 1, day("2024-02-15"))
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(10), members[0].SecurityID)
	assert.InDelta(t, 0.6, members[0].Weight, 1e-9)
	assert.Equal(t, int64(30), members[1].SecurityID)
}

func TestMembershipSameDayReAdditionWins(t *testing.T) {
	ctx := context.Background()
	store := New()

	// Removal and re-addition with the same effective date: the later row
	// (higher id) wins, so the security stays in.
	require.NoError(t, store.Memberships().ApplyRebalance(ctx, 1, day("2024-01-01"), nil, []*contracts.Membership{
		{SecurityID: 10, Weight: 1.0},
	}))
	require.NoError(t, store.Memberships().ApplyRebalance(ctx, 1, day("2024-02-01"), []int64{10}, []*contracts.Membership{
		{SecurityID: 10, Weight: 1.0, IsNewAddition: true},
	}))

	members, err := store.Memberships().ResolveAsOf(ctx, 1, day("2024-02-01"))
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(10), members[0].SecurityID)
}

func TestLastRebalanceDate(t *testing.T) {
	ctx := context.Background()
	store := New()

	last, err := store.Memberships().LastRebalanceDate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, store.Memberships().ApplyRebalance(ctx, 1, day("2024-03-01"), nil, []*contracts.Membership{
		{SecurityID: 10, Weight: 1.0},
	}))

	last, err = store.Memberships().LastRebalanceDate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-01"), last)
}

func TestValueUpsertAndTrailing(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i, v := range []float64{100, 101, 102} {
		require.NoError(t, store.Values().Upsert(ctx, &contracts.IndexValue{
			IndexID: 1,
			Date:    day("2024-01-01").AddDate(0, 0, i),
			Value:   v,
		}))
	}
	// Recompute overwrites the existing date.
	require.NoError(t, store.Values().Upsert(ctx, &contracts.IndexValue{
		IndexID: 1, Date: day("2024-01-02"), Value: 150,
	}))

	trailing, err := store.Values().GetTrailing(ctx, 1, day("2024-01-03"), 2)
	require.NoError(t, err)
	require.Len(t, trailing, 2)
	assert.Equal(t, 150.0, trailing[0].Value)
	assert.Equal(t, 102.0, trailing[1].Value)
}

func TestDefinitionCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()

	def := &contracts.IndexDefinition{Name: "Tech 10", WeightingMethod: "equal_weight", IsActive: true}
	require.NoError(t, store.Definitions().Create(ctx, def))
	require.NotZero(t, def.ID)

	def.Description = "Top technology names"
	require.NoError(t, store.Definitions().Update(ctx, def))

	got, err := store.Definitions().GetByName(ctx, "Tech 10")
	require.NoError(t, err)
	assert.Equal(t, "Top technology names", got.Description)

	require.NoError(t, store.Definitions().Delete(ctx, def.ID))
	_, err = store.Definitions().GetByID(ctx, def.ID)
	assert.Equal(t, contracts.KindNotFound, contracts.KindOf(err))
}
