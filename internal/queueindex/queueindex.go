// Package queueindex maintains an agent-indexed view of the RTGS queue
// (Queue 2) so per-agent lookups run in O(1) instead of scanning the whole
// queue. Without it, computing per-agent cost and policy-evaluation inputs
// once per agent per tick costs O(agents x queue_size); with it, a single
// O(queue_size) rebuild per tick amortizes that away.
package queueindex

import (
	"rtgssim/internal/domain"
	"rtgssim/pkg/simcore/money"
)

// Metrics are cached, per-agent aggregates over that agent's Queue 2
// transactions, computed once per rebuild.
type Metrics struct {
	Count          int
	NearestDeadline int
	TotalValue      money.Cents
}

// Index is the rebuildable agent -> Queue2-transaction-ids map plus cached
// metrics. It holds no reference to the queue or transaction map between
// rebuilds; call Rebuild after every queue mutation, once per tick.
type Index struct {
	byAgent map[string][]string
	metrics map[string]Metrics
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byAgent: make(map[string][]string),
		metrics: make(map[string]Metrics),
	}
}

// Rebuild recomputes the index from the current RTGS queue in a single
// O(len(rtgsQueue)) pass.
func (idx *Index) Rebuild(rtgsQueue []string, transactions *domainTxLookup) {
	idx.byAgent = make(map[string][]string)
	idx.metrics = make(map[string]Metrics)

	for _, txID := range rtgsQueue {
		tx, ok := transactions.Lookup(txID)
		if !ok {
			continue
		}
		agentID := tx.Sender
		idx.byAgent[agentID] = append(idx.byAgent[agentID], txID)

		m := idx.metrics[agentID]
		m.Count++
		m.TotalValue += tx.RemainingAmount
		if m.Count == 1 || tx.DeadlineTick < m.NearestDeadline {
			m.NearestDeadline = tx.DeadlineTick
		}
		idx.metrics[agentID] = m
	}
}

// GetAgentTransactions returns the Queue 2 transaction ids belonging to
// agentID, or nil if it has none.
func (idx *Index) GetAgentTransactions(agentID string) []string {
	return idx.byAgent[agentID]
}

// GetMetrics returns the cached metrics for agentID, or the zero value if
// it has no Queue 2 transactions.
func (idx *Index) GetMetrics(agentID string) Metrics {
	return idx.metrics[agentID]
}

// IsEmpty reports whether the index holds no agents.
func (idx *Index) IsEmpty() bool {
	return len(idx.byAgent) == 0
}

// NumAgents returns the number of distinct agents with Queue 2 entries.
func (idx *Index) NumAgents() int {
	return len(idx.byAgent)
}

// domainTxLookup is the minimal surface Rebuild needs from
// domain.SimulationState, kept narrow so this package doesn't need to know
// about the rest of SimulationState.
type domainTxLookup struct {
	state *domain.SimulationState
}

// Lookup fetches a transaction by id without allocating an error for the
// common not-found case inside a hot rebuild loop.
func (l *domainTxLookup) Lookup(id string) (*domain.Transaction, bool) {
	return l.state.Transactions.Get(id)
}

// FromState wraps a SimulationState for use with Rebuild.
func FromState(state *domain.SimulationState) *domainTxLookup {
	return &domainTxLookup{state: state}
}
