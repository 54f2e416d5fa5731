// Package events implements scenario events: state mutations configured
// ahead of time and executed by the orchestrator at specific ticks. Every
// event is self-contained and its execution is logged, so two runs with
// the same config and seed produce identical event logs (replay identity).
package events

import (
	"rtgssim/internal/domain"
	"rtgssim/pkg/simcore/money"
)

// Kind identifies which scenario event a ScheduledEvent carries.
type Kind int

const (
	KindDirectTransfer Kind = iota
	KindCollateralAdjustment
	KindGlobalArrivalRateChange
	KindAgentArrivalRateChange
	KindCounterpartyWeightChange
	KindDeadlineWindowChange
	KindScheduledSettlement
)

// DirectTransfer moves money from one agent to another, bypassing normal
// settlement. Used to model external liquidity injections or withdrawals
// (e.g. a payroll run or a central bank facility draw).
type DirectTransfer struct {
	FromAgent string
	ToAgent   string
	Amount    money.Cents
}

// CollateralAdjustment changes an agent's posted collateral by a signed
// delta, subject to I3 (never below zero, never above capacity).
type CollateralAdjustment struct {
	Agent string
	Delta money.Cents
}

// GlobalArrivalRateChange multiplies every agent's arrival rate by a
// common factor, e.g. to model a market-wide volume shock.
type GlobalArrivalRateChange struct {
	Multiplier float64
}

// AgentArrivalRateChange multiplies a single agent's arrival rate.
type AgentArrivalRateChange struct {
	Agent      string
	Multiplier float64
}

// CounterpartyWeightChange adjusts the probability an agent sends to a
// specific counterparty. When AutoBalanceOthers is set, the remaining
// counterparty weights are rescaled proportionally to still sum to 1.
type CounterpartyWeightChange struct {
	Agent             string
	Counterparty      string
	NewWeight         float64
	AutoBalanceOthers bool
}

// DeadlineWindowChange rescales the min/max deadline-window ticks used by
// the arrival generator. A nil multiplier leaves that bound unchanged.
type DeadlineWindowChange struct {
	MinTicksMultiplier *float64
	MaxTicksMultiplier *float64
}

// ScheduledSettlement directly creates and settles a transaction at
// execution time (recorded in the state's transactions and logged with its
// id), bypassing the queue entirely — used to model
// already-agreed interbank settlements landing on a known tick.
type ScheduledSettlement struct {
	Sender   string
	Receiver string
	Amount   money.Cents
}

// Event is the tagged union of scenario event payloads. Exactly one field
// is non-nil.
type Event struct {
	Kind Kind

	DirectTransfer           *DirectTransfer
	CollateralAdjustment     *CollateralAdjustment
	GlobalArrivalRateChange  *GlobalArrivalRateChange
	AgentArrivalRateChange   *AgentArrivalRateChange
	CounterpartyWeightChange *CounterpartyWeightChange
	DeadlineWindowChange     *DeadlineWindowChange
	ScheduledSettlement      *ScheduledSettlement
}

// Schedule determines whether a ScheduledEvent fires at a given tick.
// Exactly one of OneTime or Repeating is set (Interval > 0 selects
// Repeating).
type Schedule struct {
	// OneTime: fires exactly once at Tick.
	Tick int
	// Repeating: fires at StartTick and every Interval ticks after, for as
	// long as Interval > 0.
	StartTick int
	Interval  int
}

// ShouldExecute reports whether the schedule fires at tick t.
func (s Schedule) ShouldExecute(t int) bool {
	if s.Interval > 0 {
		return t >= s.StartTick && (t-s.StartTick)%s.Interval == 0
	}
	return t == s.Tick
}

// ScheduledEvent pairs a scenario event with the schedule that triggers it.
type ScheduledEvent struct {
	Event    Event
	Schedule Schedule
}

// RateAdjuster is implemented by whatever owns per-agent arrival rates
// (the arrival generator); events mutate rates through this narrow seam
// instead of reaching into arrival-generator internals directly.
type RateAdjuster interface {
	SetGlobalMultiplier(multiplier float64)
	SetAgentMultiplier(agentID string, multiplier float64)
	SetCounterpartyWeight(agentID, counterparty string, weight float64, autoBalanceOthers bool)
	SetDeadlineMultipliers(min, max *float64)
}

// Apply executes a single scenario event against state, mutating it in
// place and appending an entry to the event log. adjuster receives the
// arrival-rate-affecting events; it may be nil if none of those kinds are
// configured.
func Apply(state *domain.SimulationState, ev Event, tick int, adjuster RateAdjuster) error {
	switch ev.Kind {
	case KindDirectTransfer:
		return applyDirectTransfer(state, ev.DirectTransfer, tick)
	case KindCollateralAdjustment:
		return applyCollateralAdjustment(state, ev.CollateralAdjustment, tick)
	case KindGlobalArrivalRateChange:
		if adjuster != nil {
			adjuster.SetGlobalMultiplier(ev.GlobalArrivalRateChange.Multiplier)
		}
		state.LogEvent(tick, "global_arrival_rate_change", map[string]interface{}{
			"multiplier": ev.GlobalArrivalRateChange.Multiplier,
		})
		return nil
	case KindAgentArrivalRateChange:
		if adjuster != nil {
			adjuster.SetAgentMultiplier(ev.AgentArrivalRateChange.Agent, ev.AgentArrivalRateChange.Multiplier)
		}
		state.LogEvent(tick, "agent_arrival_rate_change", map[string]interface{}{
			"agent":      ev.AgentArrivalRateChange.Agent,
			"multiplier": ev.AgentArrivalRateChange.Multiplier,
		})
		return nil
	case KindCounterpartyWeightChange:
		c := ev.CounterpartyWeightChange
		if adjuster != nil {
			adjuster.SetCounterpartyWeight(c.Agent, c.Counterparty, c.NewWeight, c.AutoBalanceOthers)
		}
		state.LogEvent(tick, "counterparty_weight_change", map[string]interface{}{
			"agent":        c.Agent,
			"counterparty": c.Counterparty,
			"new_weight":   c.NewWeight,
		})
		return nil
	case KindDeadlineWindowChange:
		d := ev.DeadlineWindowChange
		if adjuster != nil {
			adjuster.SetDeadlineMultipliers(d.MinTicksMultiplier, d.MaxTicksMultiplier)
		}
		state.LogEvent(tick, "deadline_window_change", map[string]interface{}{})
		return nil
	case KindScheduledSettlement:
		return applyScheduledSettlement(state, ev.ScheduledSettlement, tick)
	default:
		return nil
	}
}

func applyDirectTransfer(state *domain.SimulationState, dt *DirectTransfer, tick int) error {
	from, err := state.GetAgent(dt.FromAgent)
	if err != nil {
		return err
	}
	to, err := state.GetAgent(dt.ToAgent)
	if err != nil {
		return err
	}
	if err := from.Debit(dt.Amount); err != nil {
		return err
	}
	to.Credit(dt.Amount)
	state.LogEvent(tick, "direct_transfer", map[string]interface{}{
		"from_agent": dt.FromAgent,
		"to_agent":   dt.ToAgent,
		"amount":     dt.Amount,
	})
	return nil
}

func applyCollateralAdjustment(state *domain.SimulationState, ca *CollateralAdjustment, tick int) error {
	agent, err := state.GetAgent(ca.Agent)
	if err != nil {
		return err
	}
	if ca.Delta >= 0 {
		// I3 clamped: a delta that would exceed the agent's collateral
		// capacity posts only the remaining headroom rather than failing
		// the whole event.
		agent.PostCollateral(ca.Delta, tick)
	} else {
		agent.TryWithdrawCollateralGuarded(-ca.Delta, tick, 0, 0)
	}
	state.LogEvent(tick, "collateral_adjustment", map[string]interface{}{
		"agent": ca.Agent,
		"delta": ca.Delta,
	})
	return nil
}

func applyScheduledSettlement(state *domain.SimulationState, ss *ScheduledSettlement, tick int) error {
	sender, err := state.GetAgent(ss.Sender)
	if err != nil {
		return err
	}
	receiver, err := state.GetAgent(ss.Receiver)
	if err != nil {
		return err
	}
	if err := sender.Debit(ss.Amount); err != nil {
		return err
	}
	receiver.Credit(ss.Amount)
	tx := domain.NewTransaction(ss.Sender, ss.Receiver, ss.Amount, tick, tick+1)
	_ = tx.Settle(ss.Amount, tick)
	state.AddTransaction(tx)
	state.LogEvent(tick, "scheduled_settlement", map[string]interface{}{
		"tx_id":    tx.ID,
		"sender":   ss.Sender,
		"receiver": ss.Receiver,
		"amount":   ss.Amount,
	})
	return nil
}
