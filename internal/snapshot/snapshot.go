// Package snapshot implements the checkpoint format of spec.md §6: a
// serializable capture of everything needed to resume an episode bit-for-
// bit — RNG state, time state, the full agent and transaction maps, both
// queues, accumulated costs, the event log, and the hash of the
// originating config so a restore against a mismatched config is rejected
// rather than silently corrupting state.
package snapshot

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/simrng"
	"rtgssim/internal/simtime"
	simerrors "rtgssim/pkg/errors"
	"rtgssim/pkg/simcore/orderedmap"
)

// AgentSnapshot is the serializable form of one agent.
type AgentSnapshot struct {
	ID                      string
	Balance                 int64
	UnsecuredCap            int64
	PostedCollateral        int64
	MaxCollateralCapacity   int64
	Haircut                 float64
	StateRegisters          map[string]float64
	PendingWithdrawalTimers map[int][]domain.WithdrawalTimer
	DeferredCredit          int64
}

// TransactionSnapshot is the serializable form of one transaction.
type TransactionSnapshot struct {
	ID                  string
	Sender              string
	Receiver            string
	Amount              int64
	RemainingAmount     int64
	ArrivalTick         int
	DeadlineTick        int
	Priority            int
	Divisible           bool
	Status              domain.TransactionStatus
	FirstSettlementTick *int
	SettledTick         *int
	DroppedTick         *int
	OverdueSince        *int
	ParentID            *string
	Children            []string
}

// CostSnapshot captures the cost accumulator's running totals. It is kept
// narrow (per-agent totals only, keyed by agent id) to avoid a dependency
// on the costs package's internal Rates type.
type CostSnapshot struct {
	PerAgentTick  map[string]int64
	PerAgentDay   map[string]int64
	PerAgentTotal map[string]int64
	DayTotal      int64
	EpisodeTotal  int64
}

// StateSnapshot is the full checkpoint.
type StateSnapshot struct {
	ConfigHash string

	Time simtime.Snapshot
	RNG  uint64

	AgentOrder      []string
	Agents          map[string]AgentSnapshot
	TransactionKeys []string
	Transactions    map[string]TransactionSnapshot

	RTGSQueue      []string
	PerAgentQueue1 map[string][]string

	EventLog []domain.Event

	Costs CostSnapshot
}

// Capture builds a snapshot from live state. configHash must be computed
// by the caller from the serialized configuration.
func Capture(state *domain.SimulationState, timeMgr *simtime.Manager, rng *simrng.Manager, costs CostSnapshot, configHash string) StateSnapshot {
	s := StateSnapshot{
		ConfigHash:      configHash,
		Time:            timeMgr.Snapshot(),
		RNG:             rng.State(),
		AgentOrder:      append([]string(nil), state.Agents.Keys()...),
		Agents:          make(map[string]AgentSnapshot, state.Agents.Len()),
		TransactionKeys: append([]string(nil), state.Transactions.Keys()...),
		Transactions:    make(map[string]TransactionSnapshot, state.Transactions.Len()),
		RTGSQueue:       append([]string(nil), state.RTGSQueue...),
		PerAgentQueue1:  make(map[string][]string, len(state.PerAgentQueue1)),
		EventLog:        append([]domain.Event(nil), state.EventLog...),
		Costs:           costs,
	}

	state.Agents.Each(func(id string, a *domain.Agent) {
		s.Agents[id] = snapshotAgent(a)
	})
	state.Transactions.Each(func(id string, t *domain.Transaction) {
		s.Transactions[id] = snapshotTransaction(t)
	})
	for agentID, q := range state.PerAgentQueue1 {
		s.PerAgentQueue1[agentID] = append([]string(nil), q...)
	}

	return s
}

func snapshotAgent(a *domain.Agent) AgentSnapshot {
	timers := make(map[int][]domain.WithdrawalTimer, len(a.PendingWithdrawalTimers))
	for t, entries := range a.PendingWithdrawalTimers {
		timers[t] = append([]domain.WithdrawalTimer(nil), entries...)
	}
	registers := make(map[string]float64, len(a.StateRegisters))
	for k, v := range a.StateRegisters {
		registers[k] = v
	}
	return AgentSnapshot{
		ID:                      a.ID,
		Balance:                 a.Balance,
		UnsecuredCap:            a.UnsecuredCap,
		PostedCollateral:        a.PostedCollateral,
		MaxCollateralCapacity:   a.MaxCollateralCapacity,
		Haircut:                 a.Haircut,
		StateRegisters:          registers,
		PendingWithdrawalTimers: timers,
		DeferredCredit:          a.DeferredCredit,
	}
}

func snapshotTransaction(t *domain.Transaction) TransactionSnapshot {
	return TransactionSnapshot{
		ID:                  t.ID,
		Sender:              t.Sender,
		Receiver:            t.Receiver,
		Amount:              t.Amount,
		RemainingAmount:     t.RemainingAmount,
		ArrivalTick:         t.ArrivalTick,
		DeadlineTick:        t.DeadlineTick,
		Priority:            t.Priority,
		Divisible:           t.Divisible,
		Status:              t.Status,
		FirstSettlementTick: t.FirstSettlementTick,
		SettledTick:         t.SettledTick,
		DroppedTick:         t.DroppedTick,
		OverdueSince:        t.OverdueSince,
		ParentID:            t.ParentID,
		Children:            append([]string(nil), t.Children...),
	}
}

// Restore rebuilds live state, time, and RNG in place from a snapshot. It
// rejects a snapshot whose ConfigHash does not match currentConfigHash,
// leaving all arguments untouched.
func Restore(state *domain.SimulationState, timeMgr *simtime.Manager, rng *simrng.Manager, snap StateSnapshot, currentConfigHash string) (CostSnapshot, error) {
	if snap.ConfigHash != currentConfigHash {
		return CostSnapshot{}, simerrors.ErrSnapshotMismatch
	}

	state.Agents = orderedmap.New[*domain.Agent]()
	for _, id := range snap.AgentOrder {
		state.Agents.Set(id, restoreAgent(snap.Agents[id]))
	}

	state.Transactions = orderedmap.New[*domain.Transaction]()
	for _, id := range snap.TransactionKeys {
		state.Transactions.Set(id, restoreTransaction(snap.Transactions[id]))
	}

	state.RTGSQueue = append([]string(nil), snap.RTGSQueue...)
	state.PerAgentQueue1 = make(map[string][]string, len(snap.PerAgentQueue1))
	for agentID, q := range snap.PerAgentQueue1 {
		state.PerAgentQueue1[agentID] = append([]string(nil), q...)
	}
	state.EventLog = append([]domain.Event(nil), snap.EventLog...)
	state.ResetTickStats()

	timeMgr.Restore(snap.Time)
	*rng = *simrng.NewManager(snap.RNG)

	return snap.Costs, nil
}

func restoreAgent(s AgentSnapshot) *domain.Agent {
	a := domain.NewAgent(s.ID, s.Balance)
	a.UnsecuredCap = s.UnsecuredCap
	a.PostedCollateral = s.PostedCollateral
	a.MaxCollateralCapacity = s.MaxCollateralCapacity
	a.Haircut = s.Haircut
	a.DeferredCredit = s.DeferredCredit
	for k, v := range s.StateRegisters {
		a.StateRegisters[k] = v
	}
	for t, entries := range s.PendingWithdrawalTimers {
		a.PendingWithdrawalTimers[t] = append([]domain.WithdrawalTimer(nil), entries...)
	}
	return a
}

func restoreTransaction(s TransactionSnapshot) *domain.Transaction {
	t := &domain.Transaction{
		ID:                  s.ID,
		Sender:              s.Sender,
		Receiver:            s.Receiver,
		Amount:              s.Amount,
		RemainingAmount:     s.RemainingAmount,
		ArrivalTick:         s.ArrivalTick,
		DeadlineTick:        s.DeadlineTick,
		Priority:            s.Priority,
		Divisible:           s.Divisible,
		Status:              s.Status,
		FirstSettlementTick: s.FirstSettlementTick,
		SettledTick:         s.SettledTick,
		DroppedTick:         s.DroppedTick,
		OverdueSince:        s.OverdueSince,
		ParentID:            s.ParentID,
		Children:            append([]string(nil), s.Children...),
	}
	return t
}
