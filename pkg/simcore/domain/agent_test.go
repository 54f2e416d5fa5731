package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/pkg/simcore/money"
)

func TestPostCollateral_WithinCapacity(t *testing.T) {
	a := NewAgent("A", 0)
	a.MaxCollateralCapacity = 1_000

	posted := a.PostCollateral(400, 3)

	assert.Equal(t, money.Cents(400), posted)
	assert.Equal(t, money.Cents(400), a.PostedCollateral)
}

func TestPostCollateral_ClampsToCapacity(t *testing.T) {
	a := NewAgent("A", 0)
	a.MaxCollateralCapacity = 1_000
	a.PostedCollateral = 700

	posted := a.PostCollateral(500, 7)

	require.Equal(t, money.Cents(300), posted, "should clamp to remaining headroom, not error")
	assert.Equal(t, money.Cents(1_000), a.PostedCollateral)
}

func TestPostCollateral_NoHeadroomIsNoop(t *testing.T) {
	a := NewAgent("A", 0)
	a.MaxCollateralCapacity = 1_000
	a.PostedCollateral = 1_000

	posted := a.PostCollateral(50, 1)

	assert.Equal(t, money.Cents(0), posted)
	assert.Equal(t, money.Cents(1_000), a.PostedCollateral)
}

func TestApplyLiquidityPoolAllocation(t *testing.T) {
	a := NewAgent("A", 10_000)
	a.LiquidityPool = 1_000_000
	a.LiquidityAllocationFraction = 0.25

	a.ApplyLiquidityPoolAllocation()

	assert.Equal(t, money.Cents(250_000), a.AllocatedLiquidity)
	assert.Equal(t, money.Cents(260_000), a.Balance, "allocation is added to the opening balance")
}

func TestWithinLimits(t *testing.T) {
	a := NewAgent("A", 0)
	a.MaxSingleTransactionAmount = 500
	a.MaxDailyVolume = 900

	assert.True(t, a.WithinLimits(500))
	assert.False(t, a.WithinLimits(501), "exceeds per-transaction cap")

	a.RecordDailyVolume(500)
	assert.True(t, a.WithinLimits(400))
	assert.False(t, a.WithinLimits(401), "would exceed daily volume cap")

	a.ResetDailyVolume()
	assert.True(t, a.WithinLimits(500))
}

func TestWithinLimits_ZeroMeansUnlimited(t *testing.T) {
	a := NewAgent("A", 0)
	assert.True(t, a.WithinLimits(1<<40))
}
