// Package settlement implements the RTGS gross settlement engine and its
// two liquidity-saving mechanisms: bilateral offsetting and multilateral
// cycle detection. It is grounded on the teacher's
// internal/blockchain/banking GridlockResolver — the same core idea
// (multilateral netting over a queue of obligations, remove-and-retry
// until everyone clears) reworked here into T2-compliant cycle settlement
// over the canonical domain types, without the blockchain-specific queue
// or the big.Int money representation the new money discipline forbids.
package settlement

import (
	"rtgssim/internal/domain"
	simerrors "rtgssim/pkg/errors"
)

// TrySettle attempts to settle tx in full against live balances. On
// success it debits the sender, credits the receiver (or, if
// deferredCrediting is set, accumulates into the receiver's deferred
// credit bucket), marks tx Settled at tick, and returns nil. On failure —
// insufficient liquidity — it leaves all state untouched and returns
// ErrInsufficientLiquidity.
func TrySettle(state *domain.SimulationState, txID string, tick int, deferredCrediting bool) error {
	tx, err := state.GetTransaction(txID)
	if err != nil {
		return err
	}
	if !tx.IsPending() {
		return simerrors.Wrap(simerrors.ErrInvalidTransaction, "transaction is not pending")
	}

	sender, err := state.GetAgent(tx.Sender)
	if err != nil {
		return err
	}
	receiver, err := state.GetAgent(tx.Receiver)
	if err != nil {
		return err
	}

	if err := sender.Debit(tx.RemainingAmount); err != nil {
		return err
	}

	if deferredCrediting {
		receiver.DeferredCredit += tx.RemainingAmount
	} else {
		receiver.Credit(tx.RemainingAmount)
	}

	amount := tx.RemainingAmount
	if err := tx.Settle(amount, tick); err != nil {
		// Should not happen: RemainingAmount was just validated above. If
		// it does, undo the balance movement to keep state consistent.
		sender.Credit(amount)
		if deferredCrediting {
			receiver.DeferredCredit -= amount
		} else {
			_ = receiver.Debit(amount)
		}
		return err
	}

	state.LogEvent(tick, "settlement", map[string]interface{}{
		"tx_id":    tx.ID,
		"sender":   tx.Sender,
		"receiver": tx.Receiver,
		"amount":   amount,
	})
	return nil
}

// RunGrossPass attempts TrySettle for every transaction id in queueOrder
// (already filtered by the caller for bank-level budgets and priority
// overrides), in order. Settled ids are removed from the RTGS queue in a
// single batch after the pass, per §4.1's no-mid-iteration-mutation rule.
// It returns the ids that settled.
func RunGrossPass(state *domain.SimulationState, queueOrder []string, tick int, deferredCrediting bool) []string {
	var settled []string
	toRemove := make(map[string]struct{})

	for _, txID := range queueOrder {
		if err := TrySettle(state, txID, tick, deferredCrediting); err == nil {
			settled = append(settled, txID)
			toRemove[txID] = struct{}{}
		}
	}

	state.RemoveFromRTGS(toRemove)
	return settled
}

// SplitFrictionCost is the one-shot cost charged to a sender when a
// transaction is split, per §4.7: split_friction_cost x (N-1).
func SplitFrictionCost(perSplit float64, numChildren int) float64 {
	if numChildren <= 1 {
		return 0
	}
	return perSplit * float64(numChildren-1)
}
