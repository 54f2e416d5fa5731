package settlement

import (
	"sort"

	"rtgssim/internal/domain"
	"rtgssim/pkg/simcore/money"
)

// pairKey identifies an unordered pair of agents, normalized so {A,B} and
// {B,A} hash to the same key.
type pairKey struct {
	Low, High string
}

func makePairKey(a, b string) pairKey {
	if a <= b {
		return pairKey{Low: a, High: b}
	}
	return pairKey{Low: b, High: a}
}

// pairEntry is the per-direction state for one leg of an unordered pair:
// the queued transaction ids from sender to receiver, in insertion order
// (orderedTxs sorts them by deadline then arrival when read), and their
// aggregate remaining amount.
type pairEntry struct {
	txIDs          []string
	aggregateTotal money.Cents
}

// PairIndex incrementally tracks, for every unordered agent pair with
// activity, the queued transactions flowing each direction and their
// aggregate totals. Maintaining it on insert/remove (rather than
// rescanning the whole RTGS queue every bilateral pass) keeps a bilateral
// pass O(pairs_touched) instead of O(|queue|).
type PairIndex struct {
	// directional[pairKey][senderID] holds that sender's leg of the pair.
	directional map[pairKey]map[string]*pairEntry
}

// NewPairIndex creates an empty index.
func NewPairIndex() *PairIndex {
	return &PairIndex{directional: make(map[pairKey]map[string]*pairEntry)}
}

// Insert records a newly queued transaction.
func (idx *PairIndex) Insert(tx *domain.Transaction) {
	key := makePairKey(tx.Sender, tx.Receiver)
	legs, ok := idx.directional[key]
	if !ok {
		legs = make(map[string]*pairEntry)
		idx.directional[key] = legs
	}
	leg, ok := legs[tx.Sender]
	if !ok {
		leg = &pairEntry{}
		legs[tx.Sender] = leg
	}
	leg.txIDs = append(leg.txIDs, tx.ID)
	leg.aggregateTotal += tx.RemainingAmount
}

// Remove drops a transaction that has settled or dropped out of the queue.
func (idx *PairIndex) Remove(tx *domain.Transaction) {
	key := makePairKey(tx.Sender, tx.Receiver)
	legs, ok := idx.directional[key]
	if !ok {
		return
	}
	leg, ok := legs[tx.Sender]
	if !ok {
		return
	}
	for i, id := range leg.txIDs {
		if id == tx.ID {
			leg.txIDs = append(leg.txIDs[:i], leg.txIDs[i+1:]...)
			leg.aggregateTotal -= tx.RemainingAmount
			break
		}
	}
}

// Rebuild discards all entries and reinserts from the current RTGS queue.
// Used once at startup or after a restore; incremental Insert/Remove is
// the steady-state path.
func (idx *PairIndex) Rebuild(state *domain.SimulationState) {
	idx.directional = make(map[pairKey]map[string]*pairEntry)
	for _, txID := range state.RTGSQueue {
		tx, ok := state.Transactions.Get(txID)
		if !ok || !tx.IsPending() {
			continue
		}
		idx.Insert(tx)
	}
}

// Pairs returns every unordered pair currently tracked with at least one
// queued transaction flowing in each direction.
func (idx *PairIndex) Pairs() []pairKey {
	var pairs []pairKey
	for key, legs := range idx.directional {
		if len(legs) < 2 {
			continue
		}
		hasBoth := true
		for _, side := range []string{key.Low, key.High} {
			if leg, ok := legs[side]; !ok || len(leg.txIDs) == 0 {
				hasBoth = false
				break
			}
		}
		if hasBoth {
			pairs = append(pairs, key)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Low != pairs[j].Low {
			return pairs[i].Low < pairs[j].Low
		}
		return pairs[i].High < pairs[j].High
	})
	return pairs
}

// BilateralOffsetResult records one pair's offsetting outcome.
type BilateralOffsetResult struct {
	AgentA, AgentB string
	SettledTxIDs   []string
	NetMovement    money.Cents // offset amount: min of the two legs' settled totals
}

// RunBilateralPass runs one offsetting pass over every eligible pair:
// for {A,B}, compute min(sum(A->B), sum(B->A)) restricted to queued
// transactions, settle whole transactions preferentially in
// deadline-ascending then arrival-ascending order, shrinking the pairing
// until the net debtor satisfies I1 for the residual net movement.
func RunBilateralPass(state *domain.SimulationState, idx *PairIndex, tick int) []BilateralOffsetResult {
	var results []BilateralOffsetResult

	for _, key := range idx.Pairs() {
		legs := idx.directional[key]
		legLow, okLow := legs[key.Low]
		legHigh, okHigh := legs[key.High]
		if !okLow || !okHigh || len(legLow.txIDs) == 0 || len(legHigh.txIDs) == 0 {
			continue
		}

		lowTxs := orderedTxs(state, legLow.txIDs)
		highTxs := orderedTxs(state, legHigh.txIDs)

		result, settledLow, settledHigh := offsetPair(state, key.Low, key.High, lowTxs, highTxs, tick)
		if result == nil {
			continue
		}

		toRemove := make(map[string]struct{}, len(settledLow)+len(settledHigh))
		for _, tx := range settledLow {
			toRemove[tx.ID] = struct{}{}
			idx.Remove(tx)
		}
		for _, tx := range settledHigh {
			toRemove[tx.ID] = struct{}{}
			idx.Remove(tx)
		}
		state.RemoveFromRTGS(toRemove)
		results = append(results, *result)
	}

	return results
}

func orderedTxs(state *domain.SimulationState, ids []string) []*domain.Transaction {
	txs := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		if tx, ok := state.Transactions.Get(id); ok && tx.IsPending() {
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].DeadlineTick != txs[j].DeadlineTick {
			return txs[i].DeadlineTick < txs[j].DeadlineTick
		}
		return txs[i].ArrivalTick < txs[j].ArrivalTick
	})
	return txs
}

// offsetPair starts from every queued transaction of both ordered lists,
// then checks whether the net debtor can cover the residual net movement;
// if not it shrinks the pairing by dropping the last (latest-deadline)
// transaction from the larger side and rechecks, until the debtor clears
// or nothing is left to offset.
func offsetPair(state *domain.SimulationState, agentA, agentB string, aToB, bToA []*domain.Transaction, tick int) (*BilateralOffsetResult, []*domain.Transaction, []*domain.Transaction) {
	for {
		var sumA, sumB money.Cents
		for _, tx := range aToB {
			sumA += tx.RemainingAmount
		}
		for _, tx := range bToA {
			sumB += tx.RemainingAmount
		}
		if sumA == 0 || sumB == 0 {
			return nil, nil, nil
		}

		agentAObj, errA := state.GetAgent(agentA)
		agentBObj, errB := state.GetAgent(agentB)
		if errA != nil || errB != nil {
			return nil, nil, nil
		}

		netMovement := money.Min(sumA, sumB)
		// Net movement direction: if sumA > sumB, A owes the residual to B.
		var netDebtor, netCreditor *domain.Agent
		var residual money.Cents
		switch {
		case sumA > sumB:
			netDebtor, netCreditor = agentAObj, agentBObj
			residual = sumA - sumB
		case sumB > sumA:
			netDebtor, netCreditor = agentBObj, agentAObj
			residual = sumB - sumA
		default:
			residual = 0
		}

		if residual > 0 && !netDebtor.CanPay(residual) {
			// Shrink: drop the transaction on the heavier side with the
			// latest deadline (least urgent) and retry.
			if sumA > sumB && len(aToB) > 0 {
				aToB = aToB[:len(aToB)-1]
			} else if len(bToA) > 0 {
				bToA = bToA[:len(bToA)-1]
			} else {
				return nil, nil, nil
			}
			continue
		}

		// Both sides clear: settle every transaction in both legs at full
		// remaining amount, then move the net residual.
		for _, tx := range aToB {
			settleOffsetLeg(agentAObj, agentBObj, tx, tick)
		}
		for _, tx := range bToA {
			settleOffsetLeg(agentBObj, agentAObj, tx, tick)
		}
		_ = netDebtor // residual already reflected by the per-transaction settles above

		state.LogEvent(tick, "bilateral_offset", map[string]interface{}{
			"agent_a":      agentA,
			"agent_b":      agentB,
			"net_movement": netMovement,
			"settled":      len(aToB) + len(bToA),
		})

		return &BilateralOffsetResult{
			AgentA:       agentA,
			AgentB:       agentB,
			SettledTxIDs: append(txIDs(aToB), txIDs(bToA)...),
			NetMovement:  netMovement,
		}, aToB, bToA
	}
}

// settleOffsetLeg moves money for one transaction within an offset pairing
// without going through TrySettle's independent I1 check — the pairing as
// a whole was already verified to clear for both participants.
func settleOffsetLeg(sender, receiver *domain.Agent, tx *domain.Transaction, tick int) {
	sender.Balance -= tx.RemainingAmount
	receiver.Balance += tx.RemainingAmount
	_ = tx.Settle(tx.RemainingAmount, tick)
}

func txIDs(txs []*domain.Transaction) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return ids
}
