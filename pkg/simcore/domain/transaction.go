package domain

import (
	"github.com/google/uuid"

	simerrors "rtgssim/pkg/errors"
	"rtgssim/pkg/simcore/money"
)

// TransactionStatus is the terminal/non-terminal lifecycle state of a
// transaction. Settled and Dropped are terminal; once reached the
// transaction is never mutated again.
type TransactionStatus int

const (
	StatusPending TransactionStatus = iota
	StatusPartiallySettled
	StatusSettled
	StatusDropped
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusPartiallySettled:
		return "PartiallySettled"
	case StatusSettled:
		return "Settled"
	case StatusDropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// Transaction is a single payment obligation from sender to receiver. Money
// fields are Cents (invariant M). Divisible transactions may be partially
// settled across multiple ticks; indivisible ones settle all-or-nothing.
type Transaction struct {
	ID              string
	Sender          string
	Receiver        string
	Amount          money.Cents
	RemainingAmount money.Cents
	ArrivalTick     int
	DeadlineTick    int
	Priority        int
	Divisible       bool
	Status          TransactionStatus

	// FirstSettlementTick is set the first time a partial settlement occurs
	// and is preserved across subsequent partial settlements.
	FirstSettlementTick *int
	// SettledTick is set once the transaction reaches StatusSettled.
	SettledTick *int
	// DroppedTick is set once the transaction reaches StatusDropped.
	DroppedTick *int
	// OverdueSince records the tick the transaction first became overdue.
	OverdueSince *int

	ParentID *string
	Children []string
}

// NewTransaction creates a pending transaction with default priority 5 and
// indivisible. amount must be positive and deadlineTick must be after
// arrivalTick — both are caller invariants enforced by panic, matching the
// construction-time checks the rest of the simulator relies on.
func NewTransaction(sender, receiver string, amount money.Cents, arrivalTick, deadlineTick int) *Transaction {
	if amount <= 0 {
		panic("amount must be positive")
	}
	if deadlineTick <= arrivalTick {
		panic("deadline must be after arrival")
	}
	return &Transaction{
		ID:              uuid.NewString(),
		Sender:          sender,
		Receiver:        receiver,
		Amount:          amount,
		RemainingAmount: amount,
		ArrivalTick:     arrivalTick,
		DeadlineTick:    deadlineTick,
		Priority:        5,
		Status:          StatusPending,
	}
}

// WithPriority sets the priority band (0-10) and returns the receiver for
// chaining at construction time.
func (t *Transaction) WithPriority(priority int) *Transaction {
	t.Priority = priority
	return t
}

// WithDivisible marks the transaction divisible and returns the receiver for
// chaining at construction time.
func (t *Transaction) WithDivisible() *Transaction {
	t.Divisible = true
	return t
}

// IsPending reports whether the transaction has not yet settled or dropped.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending || t.Status == StatusPartiallySettled
}

// IsFullySettled reports whether the transaction has reached StatusSettled.
func (t *Transaction) IsFullySettled() bool {
	return t.Status == StatusSettled
}

// IsPastDeadline reports whether t is strictly after the deadline tick.
func (t *Transaction) IsPastDeadline(tick int) bool {
	return tick > t.DeadlineTick
}

// SettledAmount is the portion of Amount already settled.
func (t *Transaction) SettledAmount() money.Cents {
	return t.Amount - t.RemainingAmount
}

// Settle applies a settlement of amount at tick t. Indivisible transactions
// must settle their full remaining amount in one call; attempting a partial
// settlement on one returns ErrInvalidTransaction. Settling more than the
// remaining amount, settling zero, or settling an already-terminal
// transaction are all rejected without mutating state.
func (t *Transaction) Settle(amount money.Cents, tick int) error {
	if t.Status == StatusSettled || t.Status == StatusDropped {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "transaction already terminal")
	}
	if amount <= 0 {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "settlement amount must be positive")
	}
	if amount > t.RemainingAmount {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "settlement amount exceeds remaining")
	}
	if !t.Divisible && amount < t.RemainingAmount {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "indivisible transaction cannot be partially settled")
	}

	t.RemainingAmount -= amount
	if t.RemainingAmount == 0 {
		tickCopy := tick
		t.SettledTick = &tickCopy
		t.Status = StatusSettled
		return nil
	}

	if t.FirstSettlementTick == nil {
		tickCopy := tick
		t.FirstSettlementTick = &tickCopy
	}
	t.Status = StatusPartiallySettled
	return nil
}

// Drop marks the transaction Dropped at tick t.
func (t *Transaction) Drop(tick int) {
	tickCopy := tick
	t.DroppedTick = &tickCopy
	t.Status = StatusDropped
}

// MarkOverdue records overdue_since the first time it is called; subsequent
// calls are idempotent.
func (t *Transaction) MarkOverdue(tick int) {
	if t.OverdueSince != nil {
		return
	}
	tickCopy := tick
	t.OverdueSince = &tickCopy
}

// Split divides a divisible transaction's remaining amount into two
// children per SubmitPartial{fraction}: floor(remaining*f) and the rest.
// The parent's remaining amount is zeroed and both children are returned
// for the caller to enqueue; the parent is linked via ParentID/Children.
func (t *Transaction) Split(fraction float64, tick int) (*Transaction, *Transaction, error) {
	if !t.Divisible {
		return nil, nil, simerrors.Wrap(simerrors.ErrInvalidTransaction, "cannot split an indivisible transaction")
	}
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, simerrors.Wrap(simerrors.ErrInvalidTransaction, "split fraction must be in (0,1)")
	}

	first := money.RoundToCents(float64(t.RemainingAmount) * fraction)
	second := t.RemainingAmount - first
	if first <= 0 || second <= 0 {
		return nil, nil, simerrors.Wrap(simerrors.ErrInvalidTransaction, "split fraction yields a zero-size child")
	}

	childA := NewTransaction(t.Sender, t.Receiver, first, tick, t.DeadlineTick)
	childA.Priority = t.Priority
	childA.Divisible = t.Divisible
	childA.ParentID = &t.ID

	childB := NewTransaction(t.Sender, t.Receiver, second, tick, t.DeadlineTick)
	childB.Priority = t.Priority
	childB.Divisible = t.Divisible
	childB.ParentID = &t.ID

	t.Children = append(t.Children, childA.ID, childB.ID)
	t.RemainingAmount = 0
	t.Status = StatusSettled // the parent is fully consumed by the split, not a money settlement
	tickCopy := tick
	t.SettledTick = &tickCopy

	return childA, childB, nil
}

// Clone returns a deep copy suitable for snapshotting.
func (t *Transaction) Clone() *Transaction {
	clone := *t
	if t.FirstSettlementTick != nil {
		v := *t.FirstSettlementTick
		clone.FirstSettlementTick = &v
	}
	if t.SettledTick != nil {
		v := *t.SettledTick
		clone.SettledTick = &v
	}
	if t.DroppedTick != nil {
		v := *t.DroppedTick
		clone.DroppedTick = &v
	}
	if t.OverdueSince != nil {
		v := *t.OverdueSince
		clone.OverdueSince = &v
	}
	if t.ParentID != nil {
		v := *t.ParentID
		clone.ParentID = &v
	}
	clone.Children = append([]string(nil), t.Children...)
	return &clone
}
