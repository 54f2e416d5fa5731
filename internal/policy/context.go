package policy

import (
	"rtgssim/internal/domain"
	"rtgssim/internal/queueindex"
)

// EvalContext is the read-only field surface a tree evaluates against. All
// fields are float64 regardless of their underlying type (money, ticks,
// counts) per §4.5: "EvalContext exposes numeric fields (all f64)". A
// bank-level context (BankLevel true) omits transaction fields; attempting
// to read one returns ok=false from Field.
type EvalContext struct {
	BankLevel bool

	// Transaction fields (absent when BankLevel).
	TxAmount          float64
	TxRemaining       float64
	TxPriority        float64
	TxArrival         float64
	TxDeadline        float64
	TxAge             float64
	TxTicksToDeadline float64
	TxIsDivisible     float64
	TxIsOverdue       float64

	// Agent fields.
	Balance             float64
	UnsecuredCap        float64
	PostedCollateral    float64
	AvailableLiquidity  float64
	CreditUsed          float64
	EffectiveCollateral float64

	// Own-bank queue fields.
	Queue1Count               float64
	Queue1Value               float64
	Queue2CountForMe          float64
	Queue2ValueForMe          float64
	MyIncomingFromCounterparty float64
	MyOutgoingToCounterparty   float64

	// Public signals.
	SystemPressure     float64
	LSMRunRate         float64
	ThroughputProgress float64
	DayProgress        float64

	// Cost rates, named as configured (e.g. "overdraft_bps_per_tick").
	CostRates map[string]float64

	// Per-agent state registers, keys prefixed bank_state_.
	StateRegisters map[string]float64
}

// Field resolves a named field to a value. Recognized field names are those
// listed in §4.5; the validator checks Field references statically against
// KnownFieldNames, not through this method.
func (c *EvalContext) Field(name string) (float64, bool) {
	switch name {
	case "amount":
		if c.BankLevel {
			return 0, false
		}
		return c.TxAmount, true
	case "remaining":
		if c.BankLevel {
			return 0, false
		}
		return c.TxRemaining, true
	case "priority":
		if c.BankLevel {
			return 0, false
		}
		return c.TxPriority, true
	case "arrival":
		if c.BankLevel {
			return 0, false
		}
		return c.TxArrival, true
	case "deadline":
		if c.BankLevel {
			return 0, false
		}
		return c.TxDeadline, true
	case "age":
		if c.BankLevel {
			return 0, false
		}
		return c.TxAge, true
	case "ticks_to_deadline":
		if c.BankLevel {
			return 0, false
		}
		return c.TxTicksToDeadline, true
	case "is_divisible":
		if c.BankLevel {
			return 0, false
		}
		return c.TxIsDivisible, true
	case "is_overdue":
		if c.BankLevel {
			return 0, false
		}
		return c.TxIsOverdue, true
	case "balance":
		return c.Balance, true
	case "unsecured_cap":
		return c.UnsecuredCap, true
	case "posted_collateral":
		return c.PostedCollateral, true
	case "available_liquidity":
		return c.AvailableLiquidity, true
	case "credit_used":
		return c.CreditUsed, true
	case "effective_collateral":
		return c.EffectiveCollateral, true
	case "queue1_count":
		return c.Queue1Count, true
	case "queue1_value":
		return c.Queue1Value, true
	case "queue2_count_for_me":
		return c.Queue2CountForMe, true
	case "queue2_value_for_me":
		return c.Queue2ValueForMe, true
	case "my_incoming_from_counterparty":
		return c.MyIncomingFromCounterparty, true
	case "my_outgoing_to_counterparty":
		return c.MyOutgoingToCounterparty, true
	case "system_pressure":
		return c.SystemPressure, true
	case "lsm_run_rate":
		return c.LSMRunRate, true
	case "throughput_progress":
		return c.ThroughputProgress, true
	case "day_progress":
		return c.DayProgress, true
	}
	if v, ok := c.CostRates[name]; ok {
		return v, true
	}
	if v, ok := c.StateRegisters[name]; ok {
		return v, true
	}
	return 0, false
}

// KnownFieldNames lists every statically recognized field name excluding
// cost rates and state registers, which are checked against their own
// maps by the validator at load time.
func KnownFieldNames(bankLevel bool) []string {
	names := []string{
		"balance", "unsecured_cap", "posted_collateral", "available_liquidity",
		"credit_used", "effective_collateral",
		"queue1_count", "queue1_value", "queue2_count_for_me", "queue2_value_for_me",
		"my_incoming_from_counterparty", "my_outgoing_to_counterparty",
		"system_pressure", "lsm_run_rate", "throughput_progress", "day_progress",
	}
	if !bankLevel {
		names = append(names,
			"amount", "remaining", "priority", "arrival", "deadline",
			"age", "ticks_to_deadline", "is_divisible", "is_overdue",
		)
	}
	return names
}

// CostRatesFields is the narrow CostRates surface BuildContext needs,
// avoiding an import cycle with package costs.
type CostRatesFields map[string]float64

// BuildContext constructs an EvalContext for a (agent, transaction) pair at
// tick t. tx may be nil, which forces BankLevel.
func BuildContext(
	agent *domain.Agent,
	tx *domain.Transaction,
	tick int,
	costRates CostRatesFields,
	q2Metrics queueindex.Metrics,
	queue1 []string,
	transactions func(id string) (*domain.Transaction, bool),
	publicSignals PublicSignals,
	incomingFrom, outgoingTo float64,
) *EvalContext {
	ctx := &EvalContext{
		BankLevel:           tx == nil,
		Balance:             float64(agent.Balance),
		UnsecuredCap:        float64(agent.UnsecuredCap),
		PostedCollateral:    float64(agent.PostedCollateral),
		AvailableLiquidity:  float64(agent.AvailableLiquidity()),
		CreditUsed:          float64(agent.CreditUsed()),
		EffectiveCollateral: float64(agent.EffectiveCollateral()),
		Queue2CountForMe:    float64(q2Metrics.Count),
		Queue2ValueForMe:    float64(q2Metrics.TotalValue),
		SystemPressure:      publicSignals.SystemPressure,
		LSMRunRate:          publicSignals.LSMRunRate,
		ThroughputProgress:  publicSignals.ThroughputProgress,
		DayProgress:         publicSignals.DayProgress,
		CostRates:           costRates,
		StateRegisters:      agent.StateRegisters,
		MyIncomingFromCounterparty: incomingFrom,
		MyOutgoingToCounterparty:   outgoingTo,
	}

	var q1Value float64
	for _, id := range queue1 {
		if t, ok := transactions(id); ok {
			q1Value += float64(t.RemainingAmount)
		}
	}
	ctx.Queue1Count = float64(len(queue1))
	ctx.Queue1Value = q1Value

	if tx != nil {
		ctx.TxAmount = float64(tx.Amount)
		ctx.TxRemaining = float64(tx.RemainingAmount)
		ctx.TxPriority = float64(tx.Priority)
		ctx.TxArrival = float64(tx.ArrivalTick)
		ctx.TxDeadline = float64(tx.DeadlineTick)
		ctx.TxAge = float64(tick - tx.ArrivalTick)
		ctx.TxTicksToDeadline = float64(tx.DeadlineTick - tick)
		if tx.Divisible {
			ctx.TxIsDivisible = 1
		}
		if tx.OverdueSince != nil {
			ctx.TxIsOverdue = 1
		}
	}

	return ctx
}

// PublicSignals are episode-wide observables every agent sees identically.
type PublicSignals struct {
	SystemPressure     float64
	LSMRunRate         float64
	ThroughputProgress float64
	DayProgress        float64
}
