package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/domain"
)

func newTestAgent(id string, balance, unsecuredCap int64) *domain.Agent {
	a := domain.NewAgent(id, balance)
	a.UnsecuredCap = unsecuredCap
	return a
}

func TestTrySettle_TwoAgentSingleSettlement(t *testing.T) {
	a := newTestAgent("A", 1_000_000, 500_000)
	b := newTestAgent("B", 2_000_000, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b})

	tx := domain.NewTransaction("A", "B", 100_000, 0, 50)
	state.AddTransaction(tx)
	state.EnqueueRTGS(tx.ID)

	settled := RunGrossPass(state, state.RTGSQueue, 1, false)

	require.Len(t, settled, 1)
	assert.Equal(t, int64(900_000), a.Balance)
	assert.Equal(t, int64(2_100_000), b.Balance)
	assert.True(t, tx.IsFullySettled())
	assert.Empty(t, state.RTGSQueue)
}

func TestCyclePass_PerfectThreeRing(t *testing.T) {
	a := newTestAgent("A", 10_000, 0)
	b := newTestAgent("B", 10_000, 0)
	c := newTestAgent("C", 10_000, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b, c})

	txAB := domain.NewTransaction("A", "B", 100_000, 0, 10)
	txBC := domain.NewTransaction("B", "C", 100_000, 0, 10)
	txCA := domain.NewTransaction("C", "A", 100_000, 0, 10)
	for _, tx := range []*domain.Transaction{txAB, txBC, txCA} {
		state.AddTransaction(tx)
		state.EnqueueRTGS(tx.ID)
	}

	idx := NewPairIndex()
	idx.Rebuild(state)

	settled := RunCyclePass(state, idx, DefaultCycleConfig(), 0)

	require.Len(t, settled, 3)
	assert.Equal(t, int64(10_000), a.Balance)
	assert.Equal(t, int64(10_000), b.Balance)
	assert.Equal(t, int64(10_000), c.Balance)
	assert.Empty(t, state.RTGSQueue)
	assert.True(t, txAB.IsFullySettled())
	assert.True(t, txBC.IsFullySettled())
	assert.True(t, txCA.IsFullySettled())
}

func TestCyclePass_UnequalThreeRingT2Compliant(t *testing.T) {
	a := newTestAgent("A", 10_000, 0)
	b := newTestAgent("B", 10_000, 0)
	c := newTestAgent("C", 10_000, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b, c})

	txAB := domain.NewTransaction("A", "B", 50_000, 0, 10)
	txBC := domain.NewTransaction("B", "C", 30_000, 0, 10)
	txCA := domain.NewTransaction("C", "A", 40_000, 0, 10)
	for _, tx := range []*domain.Transaction{txAB, txBC, txCA} {
		state.AddTransaction(tx)
		state.EnqueueRTGS(tx.ID)
	}

	idx := NewPairIndex()
	idx.Rebuild(state)

	settled := RunCyclePass(state, idx, DefaultCycleConfig(), 0)

	require.Len(t, settled, 3)
	assert.Equal(t, int64(0), a.Balance)
	assert.Equal(t, int64(30_000), b.Balance)
	assert.Equal(t, int64(0), c.Balance)
	assert.Empty(t, state.RTGSQueue)
	assert.True(t, txAB.IsFullySettled())
	assert.True(t, txBC.IsFullySettled())
	assert.True(t, txCA.IsFullySettled())
}

func TestCyclePass_InsufficientNetCoverage_NoSettlement(t *testing.T) {
	a := newTestAgent("A", 1_000, 0)
	b := newTestAgent("B", 10_000, 0)
	c := newTestAgent("C", 10_000, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b, c})

	txAB := domain.NewTransaction("A", "B", 50_000, 0, 10)
	txBC := domain.NewTransaction("B", "C", 10_000, 0, 10)
	txCA := domain.NewTransaction("C", "A", 10_000, 0, 10)
	for _, tx := range []*domain.Transaction{txAB, txBC, txCA} {
		state.AddTransaction(tx)
		state.EnqueueRTGS(tx.ID)
	}

	idx := NewPairIndex()
	idx.Rebuild(state)

	settled := RunCyclePass(state, idx, DefaultCycleConfig(), 0)

	assert.Empty(t, settled)
	assert.Equal(t, int64(1_000), a.Balance)
	assert.Len(t, state.RTGSQueue, 3)
}

func TestTrySettle_QueuedForLiquidity(t *testing.T) {
	a := newTestAgent("A", 10_000, 0)
	b := newTestAgent("B", 2_000_000, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b})

	tx := domain.NewTransaction("A", "B", 500_000, 0, 20)
	state.AddTransaction(tx)
	state.EnqueueRTGS(tx.ID)

	settled := RunGrossPass(state, state.RTGSQueue, 1, false)

	assert.Empty(t, settled)
	assert.Len(t, state.RTGSQueue, 1)
	assert.True(t, tx.IsPending())

	tx.MarkOverdue(20)
	assert.NotNil(t, tx.OverdueSince)
	assert.Equal(t, 20, *tx.OverdueSince)
}

func TestRunBilateralPass_NetsSmallerSideInFull(t *testing.T) {
	a := newTestAgent("A", 0, 0)
	b := newTestAgent("B", 0, 0)
	state := domain.NewSimulationState([]*domain.Agent{a, b})

	txAB := domain.NewTransaction("A", "B", 100_000, 0, 10)
	txBA := domain.NewTransaction("B", "A", 60_000, 0, 10)
	state.AddTransaction(txAB)
	state.AddTransaction(txBA)
	state.EnqueueRTGS(txAB.ID)
	state.EnqueueRTGS(txBA.ID)

	idx := NewPairIndex()
	idx.Rebuild(state)

	// A owes a net 40_000 to B; A has no liquidity, so the pairing must
	// shrink rather than settle both transactions whole.
	results := RunBilateralPass(state, idx, 0)

	assert.Empty(t, results)
	assert.Len(t, state.RTGSQueue, 2)
}
