package costs

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/queueindex"
	"rtgssim/pkg/simcore/money"
)

// Accumulator tracks running and one-shot costs per agent, rolled up into
// per-day and episode totals. It is the sole owner of cost state; the
// orchestrator calls AccrueTick once per tick per agent and the one-shot
// Charge* methods at the point each triggering event occurs.
type Accumulator struct {
	rates Rates

	perAgentTick   map[string]money.Cents
	perAgentDay    map[string]money.Cents
	perAgentTotal  map[string]money.Cents
	dayTotal       money.Cents
	episodeTotal   money.Cents
}

// NewAccumulator creates an accumulator configured with the given cost rates.
func NewAccumulator(rates Rates) *Accumulator {
	return &Accumulator{
		rates:         rates,
		perAgentTick:  make(map[string]money.Cents),
		perAgentDay:   make(map[string]money.Cents),
		perAgentTotal: make(map[string]money.Cents),
	}
}

func (a *Accumulator) charge(agentID string, amount money.Cents) {
	if amount == 0 {
		return
	}
	a.perAgentTick[agentID] += amount
	a.perAgentDay[agentID] += amount
	a.perAgentTotal[agentID] += amount
	a.dayTotal += amount
	a.episodeTotal += amount
}

// AccrueTick computes and charges the running costs (overdraft, delay,
// collateral opportunity, liquidity opportunity) for one agent at the
// current tick. Delay cost is charged for each pending transaction in the
// agent's Queue 1 (queue1); transactions waiting in the RTGS queue accrue
// no delay cost, and the queue-index metrics (q2) are not used.
func (a *Accumulator) AccrueTick(agent *domain.Agent, queue1 []string, lookupTx func(id string) (*domain.Transaction, bool), q2 queueindex.Metrics, tick int) money.Cents {
	a.perAgentTick[agent.ID] = 0

	a.charge(agent.ID, OverdraftCost(agent.Balance, a.rates))

	for _, txID := range queue1 {
		tx, ok := lookupTx(txID)
		if !ok || !tx.IsPending() {
			continue
		}
		a.charge(agent.ID, DelayCostForTransaction(tx.RemainingAmount, tx.Priority, tx.IsPastDeadline(tick), a.rates))
	}

	a.charge(agent.ID, CollateralOpportunityCost(agent.PostedCollateral, a.rates))
	a.charge(agent.ID, LiquidityOpportunityCost(agent.AllocatedLiquidity, a.rates))

	_ = q2 // reserved for future aggregate-based cost components
	return a.perAgentTick[agent.ID]
}

// ChargeSplitFriction charges the one-shot split_friction_cost x (N-1) to
// the sender of a transaction that was just split into numChildren parts.
func (a *Accumulator) ChargeSplitFriction(agentID string, numChildren int) money.Cents {
	cost := money.RoundToCents(SplitFrictionCostValue(a.rates.SplitFrictionCost, numChildren))
	a.charge(agentID, cost)
	return cost
}

// SplitFrictionCostValue is the raw (unrounded) split friction cost for
// numChildren resulting children.
func SplitFrictionCostValue(perSplit float64, numChildren int) float64 {
	if numChildren <= 1 {
		return 0
	}
	return perSplit * float64(numChildren-1)
}

// ChargeDeadlinePenalty charges the one-shot deadline_penalty the first
// tick a transaction becomes overdue. Callers must only invoke this once
// per transaction (guarded by Transaction.OverdueSince being nil before
// the call).
func (a *Accumulator) ChargeDeadlinePenalty(agentID string) money.Cents {
	cost := money.RoundToCents(a.rates.DeadlinePenalty)
	a.charge(agentID, cost)
	return cost
}

// ChargeEODPenalty charges eod_penalty_per_transaction for every
// transaction still queued (Pending or PartiallySettled) at day end,
// attributed to its sender.
func (a *Accumulator) ChargeEODPenalty(agentID string, stillQueuedCount int) money.Cents {
	if stillQueuedCount <= 0 {
		return 0
	}
	cost := money.RoundToCents(a.rates.EODPenaltyPerTransaction * float64(stillQueuedCount))
	a.charge(agentID, cost)
	return cost
}

// PerAgentTick returns the cost charged to an agent during the most
// recent AccrueTick call.
func (a *Accumulator) PerAgentTick(agentID string) money.Cents {
	return a.perAgentTick[agentID]
}

// PerAgentDay returns the agent's running total for the current day.
func (a *Accumulator) PerAgentDay(agentID string) money.Cents {
	return a.perAgentDay[agentID]
}

// PerAgentTotal returns the agent's running total for the whole episode.
func (a *Accumulator) PerAgentTotal(agentID string) money.Cents {
	return a.perAgentTotal[agentID]
}

// DayTotal returns the system-wide total for the current day.
func (a *Accumulator) DayTotal() money.Cents {
	return a.dayTotal
}

// EpisodeTotal returns the system-wide total since the start of the episode.
func (a *Accumulator) EpisodeTotal() money.Cents {
	return a.episodeTotal
}

// ResetDay clears per-day totals at end-of-day, leaving episode totals intact.
func (a *Accumulator) ResetDay() {
	a.perAgentDay = make(map[string]money.Cents)
	a.dayTotal = 0
}
