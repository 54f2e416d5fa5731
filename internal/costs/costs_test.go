package costs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rtgssim/internal/domain"
	"rtgssim/internal/queueindex"
)

func TestOverdraftCost_OnlyChargesNegativeBalance(t *testing.T) {
	rates := Rates{OverdraftBpsPerTick: 100} // 1%
	assert.Equal(t, int64(0), OverdraftCost(5_000, rates))
	assert.Equal(t, int64(100), OverdraftCost(-10_000, rates))
}

func TestClassifyPriority_Bands(t *testing.T) {
	assert.Equal(t, BandLow, ClassifyPriority(0))
	assert.Equal(t, BandLow, ClassifyPriority(3))
	assert.Equal(t, BandNormal, ClassifyPriority(4))
	assert.Equal(t, BandNormal, ClassifyPriority(7))
	assert.Equal(t, BandUrgent, ClassifyPriority(8))
	assert.Equal(t, BandUrgent, ClassifyPriority(10))
}

func TestDelayCost_AppliesPriorityAndOverdueMultipliers(t *testing.T) {
	rates := Rates{
		DelayCostPerTickPerCent: 0.01,
		OverdueDelayMultiplier:  2.0,
		PriorityDelayMultipliers: map[PriorityBand]float64{
			BandUrgent: 3.0,
		},
	}
	base := DelayCostForTransaction(10_000, 9, false, rates)
	overdue := DelayCostForTransaction(10_000, 9, true, rates)
	assert.Equal(t, base*2, overdue)
	assert.Greater(t, base, int64(0))
}

func TestAccumulator_AccrueTick_SumsAllComponents(t *testing.T) {
	rates := Rates{
		OverdraftBpsPerTick:      100,
		DelayCostPerTickPerCent:  0.01,
		CollateralCostPerTickBps: 50,
		LiquidityCostPerTickBps:  10,
	}
	acc := NewAccumulator(rates)

	agent := domain.NewAgent("A", -10_000)
	agent.PostedCollateral = 20_000
	agent.MaxCollateralCapacity = 20_000

	tx := domain.NewTransaction("A", "B", 5_000, 0, 100)
	lookup := func(id string) (*domain.Transaction, bool) {
		if id == tx.ID {
			return tx, true
		}
		return nil, false
	}

	cost := acc.AccrueTick(agent, []string{tx.ID}, lookup, queueindex.Metrics{}, 1)
	assert.Greater(t, cost, int64(0))
	assert.Equal(t, cost, acc.PerAgentTick("A"))
	assert.Equal(t, cost, acc.PerAgentDay("A"))
	assert.Equal(t, cost, acc.EpisodeTotal())
}

func TestAccumulator_ResetDay_KeepsEpisodeTotal(t *testing.T) {
	acc := NewAccumulator(Rates{DeadlinePenalty: 100})
	acc.ChargeDeadlinePenalty("A")
	assert.Equal(t, int64(100), acc.DayTotal())

	acc.ResetDay()
	assert.Equal(t, int64(0), acc.DayTotal())
	assert.Equal(t, int64(100), acc.EpisodeTotal())
}

func TestAccumulator_ChargeEODPenalty_ZeroWhenNoneQueued(t *testing.T) {
	acc := NewAccumulator(Rates{EODPenaltyPerTransaction: 50})
	assert.Equal(t, int64(0), acc.ChargeEODPenalty("A", 0))
	assert.Equal(t, int64(150), acc.ChargeEODPenalty("B", 3))
}
