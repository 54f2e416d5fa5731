package arrivals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/domain"
	"rtgssim/internal/simrng"
)

func newState() *domain.SimulationState {
	a := domain.NewAgent("A", 1_000_000)
	b := domain.NewAgent("B", 1_000_000)
	return domain.NewSimulationState([]*domain.Agent{a, b})
}

func TestGenerate_RespectsZeroRate(t *testing.T) {
	state := newState()
	gen := NewGenerator([]Config{
		{AgentID: "A", Bands: []ArrivalBand{{StartTick: 0, EndTick: 100, RatePerTick: 0}}},
	})
	rng := simrng.NewManager(1)

	n := Generate(state, gen, rng, 0, 0, 100, false)
	assert.Equal(t, 0, n)
}

func TestGenerate_CertainRateProducesTransaction(t *testing.T) {
	state := newState()
	gen := NewGenerator([]Config{
		{
			AgentID:             "A",
			Bands:               []ArrivalBand{{StartTick: 0, EndTick: 100, RatePerTick: 1.0}},
			CounterpartyWeights: map[string]float64{"B": 1.0},
			MinAmount:           1000,
			MaxAmount:           1000,
			MinDeadlineTicks:    5,
			MaxDeadlineTicks:    5,
			PriorityMin:         5,
			PriorityMax:         5,
		},
	})
	rng := simrng.NewManager(1)

	n := Generate(state, gen, rng, 0, 0, 100, false)
	require.Equal(t, 1, n)

	q1 := state.PerAgentQueue1["A"]
	require.Len(t, q1, 1)
	tx, err := state.GetTransaction(q1[0])
	require.NoError(t, err)
	assert.Equal(t, "A", tx.Sender)
	assert.Equal(t, "B", tx.Receiver)
	assert.Equal(t, int64(1000), tx.Amount)
	assert.Equal(t, 5, tx.DeadlineTick)
}

func TestGenerate_DeadlineCapAtEOD_SuppressesArrivalPastDayEnd(t *testing.T) {
	state := newState()
	gen := NewGenerator([]Config{
		{
			AgentID:             "A",
			Bands:               []ArrivalBand{{StartTick: 0, EndTick: 100, RatePerTick: 1.0}},
			CounterpartyWeights: map[string]float64{"B": 1.0},
			MinAmount:           1000,
			MaxAmount:           1000,
			MinDeadlineTicks:    50,
			MaxDeadlineTicks:    50,
		},
	})
	rng := simrng.NewManager(1)

	// day_end_tick = t, so the capped deadline would not exceed t.
	n := Generate(state, gen, rng, 10, 10, 10, true)
	assert.Equal(t, 0, n)
}

func TestSetCounterpartyWeight_AutoBalanceRescalesOthers(t *testing.T) {
	gen := NewGenerator([]Config{
		{AgentID: "A", CounterpartyWeights: map[string]float64{"B": 0.5, "C": 0.5}},
	})
	gen.SetCounterpartyWeight("A", "B", 0.8, true)

	c := gen.configs["A"]
	assert.InDelta(t, 0.8, c.CounterpartyWeights["B"], 1e-9)
	assert.InDelta(t, 0.2, c.CounterpartyWeights["C"], 1e-9)
}

func TestSetGlobalMultiplier_AppliesToAllAgents(t *testing.T) {
	gen := NewGenerator([]Config{{AgentID: "A"}, {AgentID: "B"}})
	gen.SetGlobalMultiplier(2.5)
	assert.Equal(t, 2.5, gen.configs["A"].Multiplier)
	assert.Equal(t, 2.5, gen.configs["B"].Multiplier)
}
