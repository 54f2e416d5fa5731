package domain

import (
	simerrors "rtgssim/pkg/errors"
	"rtgssim/pkg/simcore/orderedmap"
)

// Event is a single entry in the tick-local event log: a settlement, a
// scenario effect, a policy decision, or a collateral action. Kind is a
// short machine-readable tag; Data carries kind-specific fields for the
// observation surface and for tests.
type Event struct {
	Tick int
	Kind string
	Data map[string]interface{}
}

// SimulationState is the single mutable container the orchestrator advances
// one tick at a time. Agents and transactions are insertion-ordered maps so
// every phase that iterates them produces a deterministic traversal (§4.1
// ordering guarantees); rtgs_queue and per_agent_queue1 are plain ordered
// slices of transaction ids.
type SimulationState struct {
	Agents       *orderedmap.Map[*Agent]
	Transactions *orderedmap.Map[*Transaction]

	RTGSQueue      []string
	PerAgentQueue1 map[string][]string

	EventLog []Event

	// TickStats accumulates per-tick metrics cleared at end-of-day.
	TickStats map[string]float64
}

// NewSimulationState builds a state from an ordered list of agents. Agent
// insertion order becomes the canonical iteration order for the episode.
func NewSimulationState(agents []*Agent) *SimulationState {
	s := &SimulationState{
		Agents:         orderedmap.New[*Agent](),
		Transactions:   orderedmap.New[*Transaction](),
		PerAgentQueue1: make(map[string][]string),
		TickStats:      make(map[string]float64),
	}
	for _, a := range agents {
		s.Agents.Set(a.ID, a)
		s.PerAgentQueue1[a.ID] = nil
	}
	return s
}

// GetAgent returns the agent with the given id.
func (s *SimulationState) GetAgent(id string) (*Agent, error) {
	a, ok := s.Agents.Get(id)
	if !ok {
		return nil, simerrors.ErrUnknownAgent
	}
	return a, nil
}

// GetTransaction returns the transaction with the given id.
func (s *SimulationState) GetTransaction(id string) (*Transaction, error) {
	t, ok := s.Transactions.Get(id)
	if !ok {
		return nil, simerrors.ErrUnknownTransaction
	}
	return t, nil
}

// AddTransaction registers a new transaction in the canonical transaction
// map. It does not enqueue it anywhere; callers place it into Queue 1 or
// the RTGS queue separately.
func (s *SimulationState) AddTransaction(t *Transaction) {
	s.Transactions.Set(t.ID, t)
}

// LogEvent appends an entry to the tick-local event log.
func (s *SimulationState) LogEvent(tick int, kind string, data map[string]interface{}) {
	s.EventLog = append(s.EventLog, Event{Tick: tick, Kind: kind, Data: data})
}

// EnqueueRTGS appends a transaction id to the back of the RTGS queue (Queue
// 2). Callers are responsible for removing it from Queue 1 first.
func (s *SimulationState) EnqueueRTGS(txID string) {
	s.RTGSQueue = append(s.RTGSQueue, txID)
}

// RemoveFromRTGS removes every id in toRemove from the RTGS queue in a
// single retain-pass, preserving the relative order of what remains. This
// is the batch-removal pattern §4.1/§4.4.2 require to avoid mutating the
// queue mid-iteration.
func (s *SimulationState) RemoveFromRTGS(toRemove map[string]struct{}) {
	if len(toRemove) == 0 {
		return
	}
	kept := s.RTGSQueue[:0:0]
	for _, id := range s.RTGSQueue {
		if _, drop := toRemove[id]; !drop {
			kept = append(kept, id)
		}
	}
	s.RTGSQueue = kept
}

// EnqueueQueue1 appends a transaction id to the back of agentID's Queue 1.
func (s *SimulationState) EnqueueQueue1(agentID, txID string) {
	s.PerAgentQueue1[agentID] = append(s.PerAgentQueue1[agentID], txID)
}

// PopQueue1Head removes and returns the transaction id at the head of
// agentID's Queue 1, or "" if empty.
func (s *SimulationState) PopQueue1Head(agentID string) string {
	q := s.PerAgentQueue1[agentID]
	if len(q) == 0 {
		return ""
	}
	head := q[0]
	s.PerAgentQueue1[agentID] = q[1:]
	return head
}

// ResetTickStats clears the per-tick metrics map, done at end-of-day.
func (s *SimulationState) ResetTickStats() {
	s.TickStats = make(map[string]float64)
}
