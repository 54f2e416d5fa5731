package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/costs"
	"rtgssim/internal/events"
	"rtgssim/internal/policy"
	"rtgssim/internal/settlement"
	"rtgssim/pkg/simcore/money"
)

func holdTree() *policy.TreeNode {
	return &policy.TreeNode{Kind: policy.NodeAction, NodeID: "hold", Action: policy.ActionHold}
}

func submitTree() *policy.TreeNode {
	return &policy.TreeNode{Kind: policy.NodeAction, NodeID: "submit", Action: policy.ActionSubmit}
}

func baseConfig() Config {
	return Config{
		TicksPerDay: 10,
		NumDays:     1,
		RNGSeed:     42,
		Agents: []AgentConfig{
			{ID: "A", OpeningBalance: 1_000_000, UnsecuredCap: 500_000, Policy: &policy.DecisionTreeDef{
				PolicyID: "p-a", Version: "1", PaymentTree: submitTree(),
			}},
			{ID: "B", OpeningBalance: 2_000_000, Policy: &policy.DecisionTreeDef{
				PolicyID: "p-b", Version: "1", PaymentTree: submitTree(),
			}},
		},
		LSM:              settlement.DefaultCycleConfig(),
		BilateralEnabled: true,
		ConfigHash:       "test-hash",
	}
}

func TestTick_SubmitThenGrossSettle(t *testing.T) {
	o := New(baseConfig())

	txID, err := o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	require.NoError(t, err)

	result := o.Tick()

	assert.Equal(t, 1, result.NumGrossSettlements)
	tx, err := o.state.GetTransaction(txID)
	require.NoError(t, err)
	assert.True(t, tx.IsFullySettled())

	agentA, _ := o.state.GetAgent("A")
	agentB, _ := o.state.GetAgent("B")
	assert.Equal(t, int64(900_000), agentA.Balance)
	assert.Equal(t, int64(2_100_000), agentB.Balance)
}

func TestTick_HoldPolicyLeavesTransactionQueued(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].Policy.PaymentTree = holdTree()
	o := New(cfg)

	txID, err := o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	require.NoError(t, err)

	o.Tick()

	q1 := o.state.PerAgentQueue1["A"]
	require.Len(t, q1, 1)
	assert.Equal(t, txID, q1[0])
	assert.Empty(t, o.state.RTGSQueue)
}

func TestTick_CyclePassSettlesMultilateralRing(t *testing.T) {
	cfg := Config{
		TicksPerDay: 10,
		NumDays:     1,
		RNGSeed:     1,
		Agents: []AgentConfig{
			{ID: "A", OpeningBalance: 10_000, Policy: &policy.DecisionTreeDef{PolicyID: "a", Version: "1", PaymentTree: submitTree()}},
			{ID: "B", OpeningBalance: 10_000, Policy: &policy.DecisionTreeDef{PolicyID: "b", Version: "1", PaymentTree: submitTree()}},
			{ID: "C", OpeningBalance: 10_000, Policy: &policy.DecisionTreeDef{PolicyID: "c", Version: "1", PaymentTree: submitTree()}},
		},
		LSM:                   settlement.DefaultCycleConfig(),
		CycleDetectionEnabled: true,
		ConfigHash:            "hash",
	}
	o := New(cfg)

	_, err := o.SubmitTransaction("A", "B", 100_000, 10, 5, false)
	require.NoError(t, err)
	_, err = o.SubmitTransaction("B", "C", 100_000, 10, 5, false)
	require.NoError(t, err)
	_, err = o.SubmitTransaction("C", "A", 100_000, 10, 5, false)
	require.NoError(t, err)

	result := o.Tick()

	assert.Equal(t, 3, result.NumCycleSettlements)
	for _, id := range []string{"A", "B", "C"} {
		agent, _ := o.state.GetAgent(id)
		assert.Equal(t, int64(10_000), agent.Balance)
	}
	assert.Empty(t, o.state.RTGSQueue)
}

func TestTick_ReleaseBudgetFocusOnlyGatesNamedCounterparty(t *testing.T) {
	budgetTree := &policy.TreeNode{
		Kind:   policy.NodeAction,
		NodeID: "budget",
		Action: policy.ActionSetReleaseBudget,
		Parameters: map[string]policy.ValueOrCompute{
			"amount": {Kind: policy.ValueLiteral, Literal: float64(50_000)},
			"focus":  {Kind: policy.ValueLiteral, Literal: "B"},
		},
	}

	cfg := Config{
		TicksPerDay: 10,
		NumDays:     1,
		RNGSeed:     1,
		Agents: []AgentConfig{
			{ID: "A", OpeningBalance: 1_000_000, Policy: &policy.DecisionTreeDef{
				PolicyID: "a", Version: "1", PaymentTree: submitTree(), BankTree: budgetTree,
			}},
			{ID: "B", OpeningBalance: 1_000_000, Policy: &policy.DecisionTreeDef{PolicyID: "b", Version: "1", PaymentTree: submitTree()}},
			{ID: "C", OpeningBalance: 1_000_000, Policy: &policy.DecisionTreeDef{PolicyID: "c", Version: "1", PaymentTree: submitTree()}},
		},
		LSM:        settlement.DefaultCycleConfig(),
		ConfigHash: "hash",
	}
	o := New(cfg)

	// Over budget to the focused counterparty B: blocked every tick.
	txToB, err := o.SubmitTransaction("A", "B", 100_000, 10, 5, false)
	require.NoError(t, err)
	// To an unfocused counterparty C: queued behind B under FIFO, settles once
	// its Queue 1 head turn comes up despite the same budget being set.
	txToC, err := o.SubmitTransaction("A", "C", 100_000, 10, 5, false)
	require.NoError(t, err)

	o.Tick() // A's Queue 1 head (tx to B) moves to RTGS but can't clear the focused budget.
	result := o.Tick() // tx to C reaches RTGS and settles unrestricted.

	assert.Equal(t, 1, result.NumGrossSettlements)
	txB, err := o.GetTransaction(txToB)
	require.NoError(t, err)
	assert.True(t, txB.IsPending(), "focused counterparty payment stays blocked by the budget")
	txC, err := o.GetTransaction(txToC)
	require.NoError(t, err)
	assert.True(t, txC.IsFullySettled())
}

func TestTick_OverdueMarkingChargesDeadlinePenaltyOnce(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].Policy.PaymentTree = holdTree()
	cfg.CostRates = costs.Rates{DeadlinePenalty: 500}
	o := New(cfg)

	_, err := o.SubmitTransaction("A", "B", 10_000, 1, 5, false)
	require.NoError(t, err)

	o.Tick() // t=0: still within deadline (deadline tick 1, current tick 0)
	o.Tick() // t=1: tick(t) runs at t=1, deadline is 1, IsPastDeadline checks tick>deadline -> t=1 not past yet
	result := o.Tick() // t=2: now past deadline

	assert.Equal(t, 1, result.NumOverdueMarked)
	assert.Equal(t, int64(500), o.costAcc.EpisodeTotal())

	result2 := o.Tick()
	assert.Equal(t, 0, result2.NumOverdueMarked)
	assert.Equal(t, int64(500), o.costAcc.EpisodeTotal())
}

func TestTick_EndOfDayResetsRegistersAndChargesEODPenalty(t *testing.T) {
	cfg := baseConfig()
	cfg.TicksPerDay = 2
	cfg.Agents[0].Policy.PaymentTree = holdTree()
	cfg.CostRates = costs.Rates{EODPenaltyPerTransaction: 25}
	o := New(cfg)

	agentA, _ := o.state.GetAgent("A")
	require.NoError(t, agentA.SetStateRegister("bank_state_foo", 7))

	_, err := o.SubmitTransaction("A", "B", 10_000, 50, 5, false)
	require.NoError(t, err)

	o.Tick() // tick 0
	result := o.Tick() // tick 1: end of day (ticksPerDay=2)

	assert.True(t, result.EndOfDay)
	assert.Empty(t, agentA.StateRegisters)
	assert.Equal(t, int64(25), o.costAcc.EpisodeTotal())
}

func TestTick_DeterministicArrivalsGivenSameSeed(t *testing.T) {
	cfg := baseConfig()
	arrivalCfg := arrivals.Config{
		Bands:               []arrivals.ArrivalBand{{StartTick: 0, EndTick: 100, RatePerTick: 0.5}},
		CounterpartyWeights: map[string]float64{"B": 1.0},
		MinAmount:           money.Cents(1_000),
		MaxAmount:           money.Cents(5_000),
		MinDeadlineTicks:    5,
		MaxDeadlineTicks:    20,
		PriorityMin:         5,
		PriorityMax:         5,
	}
	a0 := arrivalCfg
	cfg.Agents[0].Arrival = &a0

	run := func() []string {
		o := New(cfg)
		var ids []string
		for i := 0; i < 5; i++ {
			o.Tick()
			ids = append(ids, o.state.RTGSQueue...)
			for _, q := range o.state.PerAgentQueue1 {
				ids = append(ids, q...)
			}
		}
		return ids
	}

	first := run()
	second := run()
	assert.Equal(t, len(first), len(second))
}

func TestTick_ScenarioEventFiresOnSchedule(t *testing.T) {
	cfg := baseConfig()
	cfg.ScenarioEvents = []events.ScheduledEvent{
		{
			Schedule: events.Schedule{Tick: 2},
			Event: events.Event{
				Kind:           events.KindDirectTransfer,
				DirectTransfer: &events.DirectTransfer{FromAgent: "B", ToAgent: "A", Amount: 50_000},
			},
		},
	}
	o := New(cfg)

	for i := 0; i < 3; i++ {
		o.Tick()
	}

	agentA, _ := o.state.GetAgent("A")
	assert.Equal(t, int64(1_050_000), agentA.Balance)
}

func TestSnapshotRoundTrip_PreservesState(t *testing.T) {
	o := New(baseConfig())
	_, err := o.SubmitTransaction("A", "B", 250_000, 50, 5, false)
	require.NoError(t, err)
	o.Tick()

	snap := o.Snapshot()

	o2 := New(baseConfig())
	require.NoError(t, o2.Restore(snap))

	agentA1, _ := o.state.GetAgent("A")
	agentA2, _ := o2.state.GetAgent("A")
	assert.Equal(t, agentA1.Balance, agentA2.Balance)
	assert.Equal(t, o.time.CurrentTick(), o2.time.CurrentTick())
}

func TestObservationSurface_AccessorsReflectState(t *testing.T) {
	o := New(baseConfig())

	txID, err := o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	require.NoError(t, err)

	tx, err := o.GetTransaction(txID)
	require.NoError(t, err)
	assert.Equal(t, "A", tx.Sender)

	result := o.Tick()
	assert.Equal(t, 1, result.NumGrossSettlements)

	assert.Empty(t, o.GetRTGSQueueContents())
	assert.Empty(t, o.GetQueue1Contents("A"))

	events := o.GetTickEvents(0)
	assert.NotEmpty(t, events)

	balA, err := o.GetAgentBalance("A")
	require.NoError(t, err)
	assert.Equal(t, int64(900_000), balA)

	cap, err := o.GetAgentUnsecuredCap("A")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), cap)

	avail, err := o.GetAgentAvailableLiquidity("A")
	require.NoError(t, err)
	assert.Equal(t, int64(900_000+500_000), avail)

	reg, err := o.GetAgentStateRegister("A", "bank_state_missing")
	require.NoError(t, err)
	assert.Equal(t, float64(0), reg)

	_, err = o.GetAgentBalance("nobody")
	assert.Error(t, err)
}

func TestGetCollateralEventsForDay_FiltersByDayAndKind(t *testing.T) {
	cfg := baseConfig()
	o := New(cfg)

	o.logCollateralEvent(0, "A", "post", 10_000, "manual")

	o.Tick()

	evs := o.GetCollateralEventsForDay(0)
	require.Len(t, evs, 1)
	assert.Equal(t, "post", evs[0].Data["kind"])

	assert.Empty(t, o.GetCollateralEventsForDay(1))
}

func TestSnapshotRestore_RejectsConfigHashMismatch(t *testing.T) {
	o := New(baseConfig())
	snap := o.Snapshot()

	other := baseConfig()
	other.ConfigHash = "different-hash"
	o2 := New(other)

	err := o2.Restore(snap)
	assert.Error(t, err)
}

func TestNew_AppliesLiquidityPoolAllocationToOpeningBalance(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].LiquidityPool = 1_000_000
	cfg.Agents[0].LiquidityAllocationFraction = 0.25
	o := New(cfg)

	agentA, err := o.state.GetAgent("A")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(250_000), agentA.AllocatedLiquidity)
	assert.Equal(t, money.Cents(1_000_000+250_000), agentA.Balance)
}

func TestSubmitTransaction_RejectsOverSingleTransactionLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].Limits.MaxSingleTransactionAmount = 50_000
	o := New(cfg)

	_, err := o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	assert.Error(t, err)
}

func TestSubmitTransaction_RejectsOverDailyVolumeLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].Limits.MaxDailyVolume = 150_000
	o := New(cfg)

	_, err := o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	require.NoError(t, err)

	_, err = o.SubmitTransaction("A", "B", 100_000, 50, 5, false)
	assert.Error(t, err, "second submission pushes cumulative daily volume past the cap")
}

func TestFinalizeEndOfDay_ResetsDailyVolume(t *testing.T) {
	cfg := baseConfig()
	cfg.Agents[0].Limits.MaxDailyVolume = 150_000
	cfg.TicksPerDay = 1
	o := New(cfg)

	_, err := o.SubmitTransaction("A", "B", 100_000, 5, 5, false)
	require.NoError(t, err)

	o.Tick()

	_, err = o.SubmitTransaction("A", "B", 100_000, 5, 5, false)
	assert.NoError(t, err, "daily volume should have reset at end-of-day")
}
