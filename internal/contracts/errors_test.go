package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("index %d", 7)))
	assert.Equal(t, KindEmptyUniverse, KindOf(EmptyUniverse("no constituents")))
	assert.Equal(t, KindDegenerateWeight, KindOf(DegenerateWeight("zero cap total")))
	assert.Equal(t, KindInfrastructure, KindOf(errors.New("connection refused")))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("calculate: %w", EmptyUniverse("no constituents for 2026-01-05"))
	assert.Equal(t, KindEmptyUniverse, KindOf(err))
	assert.True(t, IsRecoverable(err))
}

func TestInfrastructureUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Infrastructure(cause, "query memberships")

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRecoverable(err))
	assert.Contains(t, err.Error(), "query memberships")
}

func TestRebalanceInterval(t *testing.T) {
	assert.Equal(t, 1, RebalanceInterval(FrequencyDaily))
	assert.Equal(t, 5, RebalanceInterval(FrequencyWeekly))
	assert.Equal(t, 21, RebalanceInterval(FrequencyMonthly))
	assert.Equal(t, 63, RebalanceInterval(FrequencyQuarterly))
	assert.Equal(t, 21, RebalanceInterval("fortnightly"))
}
