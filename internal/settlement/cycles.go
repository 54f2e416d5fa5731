package settlement

import (
	"sort"
	"strings"

	"rtgssim/internal/domain"
	"rtgssim/pkg/simcore/money"
)

// PriorityMode selects how competing candidate cycles are ordered for
// settlement within one pass, per §4.4.2.
type PriorityMode int

const (
	// PriorityByValue orders candidates by aggregated cycle value, descending.
	PriorityByValue PriorityMode = iota
	// PriorityByTxCount orders candidates by number of transactions carried, descending.
	PriorityByTxCount
	// PriorityByDeadline orders candidates by earliest deadline among their
	// transactions, ascending, tie-broken by lexicographically smallest
	// agent sequence.
	PriorityByDeadline
)

// CycleConfig bounds multilateral cycle search, per lsm_config in SPEC_FULL.md §1.
type CycleConfig struct {
	MaxCycleLength int
	PriorityMode   PriorityMode
	MaxIterations  int
}

// DefaultCycleConfig matches the spec's stated default.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{MaxCycleLength: 4, PriorityMode: PriorityByValue, MaxIterations: 8}
}

// edge is one directed aggregated edge of the graph: the remaining-amount
// sum of every queued transaction from Sender to Receiver, plus the ids
// that compose it.
type edge struct {
	TxIDs  []string
	Amount money.Cents
}

// graph is the aggregated multigraph collapsed to one edge per ordered
// agent pair, built fresh from the live RTGS queue at the start of each
// cycle-detection pass.
type graph struct {
	adj map[string]map[string]*edge // adj[sender][receiver]
}

func buildGraph(state *domain.SimulationState) *graph {
	g := &graph{adj: make(map[string]map[string]*edge)}
	for _, txID := range state.RTGSQueue {
		tx, ok := state.Transactions.Get(txID)
		if !ok || !tx.IsPending() {
			continue
		}
		receivers, ok := g.adj[tx.Sender]
		if !ok {
			receivers = make(map[string]*edge)
			g.adj[tx.Sender] = receivers
		}
		e, ok := receivers[tx.Receiver]
		if !ok {
			e = &edge{}
			receivers[tx.Receiver] = e
		}
		e.TxIDs = append(e.TxIDs, tx.ID)
		e.Amount += tx.RemainingAmount
	}
	return g
}

func (g *graph) nodes() []string {
	set := make(map[string]struct{})
	for sender, receivers := range g.adj {
		set[sender] = struct{}{}
		for receiver := range receivers {
			set[receiver] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// tarjanSCC returns the strongly connected components of g with size >= 3,
// the minimum that can host a cycle involving three or more distinct
// agents. Singletons and trivial 2-cycles are not multilateral cycles in
// this engine's sense (they belong to bilateral offsetting).
func tarjanSCC(g *graph) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var result [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		receivers := make([]string, 0, len(g.adj[v]))
		for r := range g.adj[v] {
			receivers = append(receivers, r)
		}
		sort.Strings(receivers)

		for _, w := range receivers {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) >= 3 {
				sort.Strings(component)
				result = append(result, component)
			}
		}
	}

	for _, v := range g.nodes() {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}
	return result
}

// candidateCycle is a simple cycle v0 -> v1 -> ... -> v0 found within one
// SCC, along with its per-edge amounts and composing transaction ids.
type candidateCycle struct {
	Agents      []string // v0..v(k-1), closing edge is back to Agents[0]
	EdgeAmounts []money.Cents
	EdgeTxIDs   [][]string
	MinAmount   money.Cents
	EarliestDeadline int
}

// enumerateSimpleCycles finds every simple directed cycle within the SCC's
// induced subgraph of length 3..maxLen, using bounded DFS from each node
// (only cycles whose smallest-index node is the start are kept, to avoid
// enumerating each cycle maxLen times under rotation).
func enumerateSimpleCycles(g *graph, scc []string, maxLen int, state *domain.SimulationState) []candidateCycle {
	memberSet := make(map[string]bool, len(scc))
	for _, a := range scc {
		memberSet[a] = true
	}
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)

	var cycles []candidateCycle
	var path []string
	onPath := make(map[string]bool)

	var dfs func(start, current string)
	dfs = func(start, current string) {
		if len(path) > maxLen {
			return
		}
		receivers := make([]string, 0, len(g.adj[current]))
		for r := range g.adj[current] {
			if memberSet[r] {
				receivers = append(receivers, r)
			}
		}
		sort.Strings(receivers)

		for _, next := range receivers {
			if next == start && len(path) >= 3 {
				cycles = append(cycles, makeCandidateCycle(g, append([]string(nil), path...), state))
				continue
			}
			if onPath[next] || next < start {
				continue
			}
			if len(path) == maxLen {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			dfs(start, next)
			onPath[next] = false
			path = path[:len(path)-1]
		}
	}

	for _, start := range sorted {
		path = []string{start}
		onPath[start] = true
		dfs(start, start)
		onPath[start] = false
	}

	return cycles
}

func makeCandidateCycle(g *graph, agents []string, state *domain.SimulationState) candidateCycle {
	n := len(agents)
	amounts := make([]money.Cents, n)
	txLists := make([][]string, n)
	minAmount := money.Cents(0)
	earliest := -1

	for i := 0; i < n; i++ {
		sender := agents[i]
		receiver := agents[(i+1)%n]
		e := g.adj[sender][receiver]
		amounts[i] = e.Amount
		txLists[i] = e.TxIDs
		if i == 0 || e.Amount < minAmount {
			minAmount = e.Amount
		}
		for _, txID := range e.TxIDs {
			if tx, ok := state.Transactions.Get(txID); ok {
				if earliest == -1 || tx.DeadlineTick < earliest {
					earliest = tx.DeadlineTick
				}
			}
		}
	}

	return candidateCycle{
		Agents:           agents,
		EdgeAmounts:      amounts,
		EdgeTxIDs:        txLists,
		MinAmount:        minAmount,
		EarliestDeadline: earliest,
	}
}

func orderCandidates(cycles []candidateCycle, mode PriorityMode) {
	sort.SliceStable(cycles, func(i, j int) bool {
		a, b := cycles[i], cycles[j]
		switch mode {
		case PriorityByTxCount:
			ca, cb := countTxs(a), countTxs(b)
			if ca != cb {
				return ca > cb
			}
		case PriorityByDeadline:
			if a.EarliestDeadline != b.EarliestDeadline {
				return a.EarliestDeadline < b.EarliestDeadline
			}
		default: // PriorityByValue
			va, vb := aggregatedValue(a), aggregatedValue(b)
			if va != vb {
				return va > vb
			}
		}
		return strings.Join(a.Agents, ",") < strings.Join(b.Agents, ",")
	})
}

func countTxs(c candidateCycle) int {
	n := 0
	for _, txs := range c.EdgeTxIDs {
		n += len(txs)
	}
	return n
}

func aggregatedValue(c candidateCycle) money.Cents {
	var total money.Cents
	for _, a := range c.EdgeAmounts {
		total += a
	}
	return total
}

// netPositions computes, for each agent in the cycle, outgoing minus
// incoming restricted to the cycle's own edges.
func netPositions(c candidateCycle) map[string]money.Cents {
	net := make(map[string]money.Cents, len(c.Agents))
	n := len(c.Agents)
	for i := 0; i < n; i++ {
		sender := c.Agents[i]
		receiver := c.Agents[(i+1)%n]
		net[sender] -= c.EdgeAmounts[i]
		net[receiver] += c.EdgeAmounts[i]
	}
	return net
}

// settleCycle attempts T2-compliant settlement of one candidate: every
// participant must cover its net outgoing position from current
// available liquidity. On success every transaction on the cycle settles
// at full remaining amount atomically and the ids are returned for batch
// removal; on failure nothing is mutated and ok is false.
func settleCycle(state *domain.SimulationState, c candidateCycle, tick int) (settledIDs []string, ok bool) {
	net := netPositions(c)

	agents := make(map[string]*domain.Agent, len(c.Agents))
	for _, id := range c.Agents {
		a, err := state.GetAgent(id)
		if err != nil {
			return nil, false
		}
		agents[id] = a
	}

	for id, position := range net {
		if position < 0 {
			if !agents[id].CanPay(-position) {
				return nil, false
			}
		}
	}

	n := len(c.Agents)
	for i := 0; i < n; i++ {
		sender := agents[c.Agents[i]]
		receiver := agents[c.Agents[(i+1)%n]]
		amount := c.EdgeAmounts[i]
		sender.Balance -= amount
		receiver.Balance += amount
		for _, txID := range c.EdgeTxIDs[i] {
			if tx, err := state.GetTransaction(txID); err == nil {
				_ = tx.Settle(tx.RemainingAmount, tick)
				settledIDs = append(settledIDs, txID)
			}
		}
	}

	state.LogEvent(tick, "cycle_settlement", map[string]interface{}{
		"agents": c.Agents,
		"value":  aggregatedValue(c),
		"count":  countTxs(c),
	})

	return settledIDs, true
}

// RunCyclePass runs one multilateral cycle-detection-and-settlement pass:
// build the aggregated graph from the live RTGS queue, find SCCs of size
// >= 3, enumerate simple cycles up to cfg.MaxCycleLength within each,
// order all candidates by cfg.PriorityMode, and settle greedily — once a
// transaction id has been consumed by a settled cycle, any later
// candidate referencing it is skipped. Settled ids are removed from the
// RTGS queue and the pair index in one batch at the end.
func RunCyclePass(state *domain.SimulationState, idx *PairIndex, cfg CycleConfig, tick int) []string {
	g := buildGraph(state)
	sccs := tarjanSCC(g)

	var candidates []candidateCycle
	for _, scc := range sccs {
		candidates = append(candidates, enumerateSimpleCycles(g, scc, cfg.MaxCycleLength, state)...)
	}
	orderCandidates(candidates, cfg.PriorityMode)

	consumed := make(map[string]struct{})
	var allSettled []string

	for _, c := range candidates {
		if cycleUsesConsumed(c, consumed) {
			continue
		}
		settledIDs, ok := settleCycle(state, c, tick)
		if !ok {
			continue
		}
		for _, id := range settledIDs {
			consumed[id] = struct{}{}
		}
		allSettled = append(allSettled, settledIDs...)
	}

	if len(allSettled) > 0 {
		toRemove := make(map[string]struct{}, len(allSettled))
		for _, id := range allSettled {
			toRemove[id] = struct{}{}
			if tx, ok := state.Transactions.Get(id); ok {
				idx.Remove(tx)
			}
		}
		state.RemoveFromRTGS(toRemove)
	}

	return allSettled
}

func cycleUsesConsumed(c candidateCycle, consumed map[string]struct{}) bool {
	for _, txs := range c.EdgeTxIDs {
		for _, id := range txs {
			if _, done := consumed[id]; done {
				return true
			}
		}
	}
	return false
}
