// Package domain holds the canonical entity types of the simulation core:
// Agent, Transaction, and the containers that hold them. internal/domain
// re-exports these so call sites outside pkg/ can refer to the short,
// package-local names the rest of the codebase is used to.
package domain

import (
	"math"

	simerrors "rtgssim/pkg/errors"
	"rtgssim/pkg/simcore/money"
)

// stateRegisterPrefix is the only prefix set_state_register accepts (I4).
const stateRegisterPrefix = "bank_state_"

// maxStateRegisters is the cap on the number of state registers (I4).
const maxStateRegisters = 10

// WithdrawalTimer is a scheduled collateral withdrawal awaiting its tick.
type WithdrawalTimer struct {
	Amount money.Cents
	Reason string
}

// Agent is a participant in the payment system: a bank with a cash balance,
// an unsecured credit line, and posted collateral backing any further draw.
// All liquidity math follows invariants I1-I6 in the data model.
type Agent struct {
	ID                      string
	Balance                 money.Cents
	UnsecuredCap            money.Cents
	PostedCollateral        money.Cents
	MaxCollateralCapacity   money.Cents
	Haircut                 float64
	StateRegisters          map[string]float64
	PendingWithdrawalTimers map[int][]WithdrawalTimer
	DeferredCredit          money.Cents

	// LiquidityPool is the total external pool this agent may draw into the
	// settlement system (the BIS Period-0 funding decision). AllocatedLiquidity
	// is computed once at construction as LiquidityPool *
	// LiquidityAllocationFraction and added to the opening balance; it never
	// changes over the life of an episode, and is the amount the liquidity
	// opportunity cost is charged against (not the evolving Balance).
	LiquidityPool               money.Cents
	LiquidityAllocationFraction float64
	AllocatedLiquidity          money.Cents

	// Limits, when set, bound what SubmitTransaction will accept from this
	// agent: MaxSingleTransactionAmount caps one transaction's amount,
	// MaxDailyVolume caps the running sum of amounts submitted this day.
	// Zero means unlimited. DailyVolumeUsed resets at end-of-day.
	MaxSingleTransactionAmount money.Cents
	MaxDailyVolume             money.Cents
	DailyVolumeUsed            money.Cents

	// lastCollateralPostTick tracks when collateral was most recently
	// increased, for the min_holding_ticks guard in I2.
	lastCollateralPostTick int
}

// NewAgent constructs an agent with the given opening balance. All other
// fields start at their zero value.
func NewAgent(id string, balance money.Cents) *Agent {
	return &Agent{
		ID:                      id,
		Balance:                 balance,
		StateRegisters:          make(map[string]float64),
		PendingWithdrawalTimers: make(map[int][]WithdrawalTimer),
		lastCollateralPostTick:  math.MinInt32,
	}
}

// ApplyLiquidityPoolAllocation computes AllocatedLiquidity from LiquidityPool
// and LiquidityAllocationFraction and adds it to the opening balance. It
// must be called at most once, at construction time, before the episode
// starts — the allocation is a one-time funding decision, not a per-tick
// recomputation.
func (a *Agent) ApplyLiquidityPoolAllocation() {
	a.AllocatedLiquidity = money.ApplyRate(a.LiquidityPool, a.LiquidityAllocationFraction)
	a.Balance += a.AllocatedLiquidity
}

// WithinLimits reports whether submitting a transaction of amount would
// respect both MaxSingleTransactionAmount and MaxDailyVolume. A zero limit
// means unlimited.
func (a *Agent) WithinLimits(amount money.Cents) bool {
	if a.MaxSingleTransactionAmount > 0 && amount > a.MaxSingleTransactionAmount {
		return false
	}
	if a.MaxDailyVolume > 0 && a.DailyVolumeUsed+amount > a.MaxDailyVolume {
		return false
	}
	return true
}

// RecordDailyVolume adds amount to the running daily volume used, for
// MaxDailyVolume enforcement by a later WithinLimits call.
func (a *Agent) RecordDailyVolume(amount money.Cents) {
	a.DailyVolumeUsed += amount
}

// ResetDailyVolume clears the running daily volume at end-of-day.
func (a *Agent) ResetDailyVolume() {
	a.DailyVolumeUsed = 0
}

// EffectiveCollateral is floor(posted_collateral * (1 - haircut)).
func (a *Agent) EffectiveCollateral() money.Cents {
	return money.RoundToCents(math.Floor(float64(a.PostedCollateral) * (1 - a.Haircut)))
}

// AvailableLiquidity implements I1: max(0, balance) + unsecured_cap +
// effective_collateral.
func (a *Agent) AvailableLiquidity() money.Cents {
	return money.Max(0, a.Balance) + a.UnsecuredCap + a.EffectiveCollateral()
}

// CanPay reports whether a debit of amount would satisfy I1.
func (a *Agent) CanPay(amount money.Cents) bool {
	if amount < 0 {
		panic("amount must be positive")
	}
	return amount <= a.currentHeadroom()
}

// currentHeadroom is the liquidity remaining before a new debit: balance
// (which may already be negative, i.e. drawn on credit) plus unsecured cap
// plus effective collateral.
func (a *Agent) currentHeadroom() money.Cents {
	return a.Balance + a.UnsecuredCap + a.EffectiveCollateral()
}

// Debit decreases the balance by amount, failing with ErrInsufficientLiquidity
// if doing so would violate I1. amount must be non-negative.
func (a *Agent) Debit(amount money.Cents) error {
	if amount < 0 {
		panic("amount must be positive")
	}
	if amount > a.currentHeadroom() {
		return simerrors.ErrInsufficientLiquidity
	}
	a.Balance -= amount
	return nil
}

// Credit increases the balance by amount. amount must be non-negative.
func (a *Agent) Credit(amount money.Cents) {
	if amount < 0 {
		panic("amount must be positive")
	}
	a.Balance += amount
}

// IsUsingCredit reports whether the balance is currently negative.
func (a *Agent) IsUsingCredit() bool {
	return a.Balance < 0
}

// CreditUsed is the magnitude of credit currently drawn, or 0 if balance is
// non-negative.
func (a *Agent) CreditUsed() money.Cents {
	if a.Balance >= 0 {
		return 0
	}
	return -a.Balance
}

// PostCollateral increases posted collateral by amount, subject to I3.
// Rather than failing when the requested amount would exceed
// MaxCollateralCapacity, it clamps to whatever headroom remains and posts
// that instead — the capacity check is recovered, not fatal, per the
// CollateralCapacityExceeded (agent.post) error kind. It returns the
// amount actually posted, which may be less than requested or zero.
func (a *Agent) PostCollateral(amount money.Cents, atTick int) money.Cents {
	if amount < 0 {
		panic("amount must be positive")
	}
	headroom := a.MaxCollateralCapacity - a.PostedCollateral
	posted := money.Min(amount, money.Max(0, headroom))
	if posted == 0 {
		return 0
	}
	a.PostedCollateral += posted
	a.lastCollateralPostTick = atTick
	return posted
}

// TryWithdrawCollateralGuarded implements the I2-guarded withdrawal path
// shared by manual and timer-driven withdrawals. It clamps the requested
// amount to what is both currently posted and safe to release, and never
// returns a negative amount. A clamp to zero is a successful no-op: stale
// policy decisions that reference a posted_collateral value that has since
// changed must not error.
func (a *Agent) TryWithdrawCollateralGuarded(requested money.Cents, atTick, minHoldingTicks int, safetyBuffer money.Cents) money.Cents {
	if requested <= 0 {
		return 0
	}
	if atTick-a.lastCollateralPostTick < minHoldingTicks {
		return 0
	}

	w := money.Min(requested, a.PostedCollateral)
	for w > 0 {
		residual := a.PostedCollateral - w
		residualEffective := money.RoundToCents(math.Floor(float64(residual) * (1 - a.Haircut)))
		headroomAfter := a.UnsecuredCap + residualEffective - safetyBuffer
		if a.CreditUsed() <= headroomAfter {
			break
		}
		w--
	}
	if w < 0 {
		w = 0
	}
	a.PostedCollateral -= w
	return w
}

// ScheduleCollateralWithdrawal enqueues a timer entry for a future tick.
func (a *Agent) ScheduleCollateralWithdrawal(atTick int, amount money.Cents, reason string) {
	a.PendingWithdrawalTimers[atTick] = append(a.PendingWithdrawalTimers[atTick], WithdrawalTimer{
		Amount: amount,
		Reason: reason,
	})
}

// ProcessTimers drains every withdrawal timer scheduled for tick t through
// the guarded path, returning the total actually withdrawn.
func (a *Agent) ProcessTimers(t, minHoldingTicks int, safetyBuffer money.Cents) money.Cents {
	timers, ok := a.PendingWithdrawalTimers[t]
	if !ok {
		return 0
	}
	var total money.Cents
	for _, timer := range timers {
		total += a.TryWithdrawCollateralGuarded(timer.Amount, t, minHoldingTicks, safetyBuffer)
	}
	delete(a.PendingWithdrawalTimers, t)
	return total
}

// SetStateRegister sets a bank_state_-prefixed register, enforcing I4: at
// most 10 entries, finite values, and the literal key prefix. Updating an
// existing key never counts against the cap.
func (a *Agent) SetStateRegister(key string, value float64) error {
	if len(key) < len(stateRegisterPrefix) || key[:len(stateRegisterPrefix)] != stateRegisterPrefix {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "state register key must have prefix bank_state_")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "state register value must be finite")
	}
	if _, exists := a.StateRegisters[key]; !exists && len(a.StateRegisters) >= maxStateRegisters {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "state register capacity exceeded")
	}
	a.StateRegisters[key] = value
	return nil
}

// ResetStateRegisters clears all registers and returns the prior contents.
func (a *Agent) ResetStateRegisters() map[string]float64 {
	prior := a.StateRegisters
	a.StateRegisters = make(map[string]float64)
	return prior
}

// ApplyDeferredCredit moves the accumulated deferred credit bucket into the
// balance and clears it. Used at the end-of-tick deferred crediting phase
// when that feature is enabled.
func (a *Agent) ApplyDeferredCredit() {
	if a.DeferredCredit == 0 {
		return
	}
	a.Balance += a.DeferredCredit
	a.DeferredCredit = 0
}

// Clone returns a deep copy suitable for snapshotting.
func (a *Agent) Clone() *Agent {
	clone := *a
	clone.StateRegisters = make(map[string]float64, len(a.StateRegisters))
	for k, v := range a.StateRegisters {
		clone.StateRegisters[k] = v
	}
	clone.PendingWithdrawalTimers = make(map[int][]WithdrawalTimer, len(a.PendingWithdrawalTimers))
	for t, timers := range a.PendingWithdrawalTimers {
		clone.PendingWithdrawalTimers[t] = append([]WithdrawalTimer(nil), timers...)
	}
	return &clone
}
