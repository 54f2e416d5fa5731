package orchestrator

import (
	"math"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/costs"
	"rtgssim/internal/domain"
	"rtgssim/internal/events"
	"rtgssim/internal/policy"
	"rtgssim/internal/queueindex"
	"rtgssim/internal/settlement"
	"rtgssim/internal/simrng"
	"rtgssim/internal/simtime"
	"rtgssim/internal/snapshot"
	simerrors "rtgssim/pkg/errors"
)

// TickResult summarizes one tick(t) call for the caller, per §6's
// observation surface.
type TickResult struct {
	Tick                int
	NumArrivals         int
	NumGrossSettlements int
	NumBilateralOffsets int
	NumCycleSettlements int
	NumDropped          int
	NumOverdueMarked    int
	EndOfDay            bool
}

// Orchestrator owns the full episode: state, time, RNG, every component,
// and the tick loop that sequences them per §4.1.
type Orchestrator struct {
	cfg Config

	state *domain.SimulationState
	time  *simtime.Manager
	rng   *simrng.Manager

	arrivalGen *arrivals.Generator
	qidx       *queueindex.Index
	pairIdx    *settlement.PairIndex
	costAcc    *costs.Accumulator

	policies map[string]*policy.DecisionTreeDef

	// releaseBudgetsRemaining is reset every tick by the bank-tree phase and
	// drawn down during gross settlement.
	releaseBudgetsRemaining map[string]int64

	// releaseBudgetFocus narrows a sender's release budget to a single
	// counterparty for the tick: when set, only transactions to that
	// counterparty draw on the budget, and all others settle unrestricted.
	releaseBudgetFocus map[string]string

	totalArrivals    int
	totalSettlements int
}

// New constructs an orchestrator from a validated configuration. Every
// agent's policy must already be validated (policy.Validate) by the
// caller — per §7, PolicyValidationError is fatal before the orchestrator
// ever starts.
func New(cfg Config) *Orchestrator {
	agents := make([]*domain.Agent, 0, len(cfg.Agents))
	policies := make(map[string]*policy.DecisionTreeDef, len(cfg.Agents))
	arrivalConfigs := make([]arrivals.Config, 0, len(cfg.Agents))

	for _, ac := range cfg.Agents {
		a := domain.NewAgent(ac.ID, ac.OpeningBalance)
		a.UnsecuredCap = ac.UnsecuredCap
		a.PostedCollateral = ac.PostedCollateral
		a.Haircut = ac.CollateralHaircut
		a.MaxCollateralCapacity = ac.MaxCollateralCapacity
		a.LiquidityPool = ac.LiquidityPool
		a.LiquidityAllocationFraction = ac.LiquidityAllocationFraction
		a.MaxSingleTransactionAmount = ac.Limits.MaxSingleTransactionAmount
		a.MaxDailyVolume = ac.Limits.MaxDailyVolume
		a.ApplyLiquidityPoolAllocation()
		agents = append(agents, a)

		if ac.Policy != nil {
			policies[ac.ID] = ac.Policy
		}
		if ac.Arrival != nil {
			arrCfg := *ac.Arrival
			arrCfg.AgentID = ac.ID
			arrivalConfigs = append(arrivalConfigs, arrCfg)
		} else {
			arrivalConfigs = append(arrivalConfigs, arrivals.Config{AgentID: ac.ID})
		}
	}

	o := &Orchestrator{
		cfg:        cfg,
		state:      domain.NewSimulationState(agents),
		time:       simtime.NewManager(cfg.TicksPerDay),
		rng:        simrng.NewManager(cfg.RNGSeed),
		arrivalGen: arrivals.NewGenerator(arrivalConfigs),
		qidx:       queueindex.New(),
		pairIdx:    settlement.NewPairIndex(),
		costAcc:    costs.NewAccumulator(cfg.CostRates),
		policies:   policies,
	}
	return o
}

// agentConfigByID looks up the per-agent collateral tuning parameters.
func (o *Orchestrator) agentConfigByID(id string) AgentConfig {
	for _, ac := range o.cfg.Agents {
		if ac.ID == id {
			return ac
		}
	}
	return AgentConfig{}
}

// Tick runs one full tick of the §4.1 phase sequence and advances time.
func (o *Orchestrator) Tick() TickResult {
	t := o.time.CurrentTick()
	tickOfDay := o.time.TickWithinDay()
	dayEndTick := o.time.DayEndTick(t)
	result := TickResult{Tick: t}

	// Phase 1: arrivals.
	result.NumArrivals = arrivals.Generate(o.state, o.arrivalGen, o.rng, t, tickOfDay, dayEndTick, o.cfg.DeadlineCapAtEOD)
	o.totalArrivals += result.NumArrivals

	// Phase 2: scenario events.
	for _, se := range o.cfg.ScenarioEvents {
		if se.Schedule.ShouldExecute(t) {
			_ = events.Apply(o.state, se.Event, t, o.arrivalGen)
		}
	}

	// Phase 3: index rebuild.
	o.qidx.Rebuild(o.state.RTGSQueue, queueindex.FromState(o.state))

	publicSignals := o.computePublicSignals()

	// Phase 4: policy evaluation - payments.
	for _, agentID := range o.state.Agents.Keys() {
		result.NumDropped += o.evaluatePaymentHead(agentID, t, publicSignals)
	}

	// Phase 5: policy evaluation - bank-level.
	o.releaseBudgetsRemaining = make(map[string]int64, o.state.Agents.Len())
	o.releaseBudgetFocus = make(map[string]string, o.state.Agents.Len())
	for _, agentID := range o.state.Agents.Keys() {
		o.evaluateBankTree(agentID, t, publicSignals)
	}

	// Phase 6: policy evaluation - strategic collateral.
	for _, agentID := range o.state.Agents.Keys() {
		o.evaluateStrategicCollateral(agentID, t, publicSignals)
	}

	// Phase 7: RTGS gross settlement.
	queueOrder := o.filterByBudget(o.state.RTGSQueue)
	settledIDs := settlement.RunGrossPass(o.state, queueOrder, t, o.cfg.DeferredCrediting)
	for _, id := range settledIDs {
		if tx, ok := o.state.Transactions.Get(id); ok {
			o.pairIdx.Remove(tx)
		}
	}
	result.NumGrossSettlements = len(settledIDs)
	o.totalSettlements += len(settledIDs)

	// Phase 8: LSM pass.
	if o.cfg.BilateralEnabled || o.cfg.CycleDetectionEnabled {
		maxIter := o.cfg.LSM.MaxIterations
		if maxIter <= 0 {
			maxIter = 8
		}
		for i := 0; i < maxIter; i++ {
			progress := 0
			if o.cfg.BilateralEnabled {
				bilateral := settlement.RunBilateralPass(o.state, o.pairIdx, t)
				result.NumBilateralOffsets += len(bilateral)
				progress += len(bilateral)
			}
			if o.cfg.CycleDetectionEnabled {
				cycleSettled := settlement.RunCyclePass(o.state, o.pairIdx, o.cfg.LSM, t)
				result.NumCycleSettlements += len(cycleSettled)
				progress += len(cycleSettled)
			}
			if progress == 0 {
				break
			}
		}
	}
	o.totalSettlements += result.NumBilateralOffsets + result.NumCycleSettlements

	// Phase 9: end-of-tick collateral.
	for _, agentID := range o.state.Agents.Keys() {
		o.evaluateEndOfTickCollateral(agentID, t, publicSignals)
	}

	// Phase 10: deferred credits.
	if o.cfg.DeferredCrediting {
		for _, agentID := range o.state.Agents.Keys() {
			agent, _ := o.state.GetAgent(agentID)
			agent.ApplyDeferredCredit()
		}
	}

	// Phase 11: overdue marking.
	result.NumOverdueMarked = o.markOverdue(t)

	// Phase 12: cost accrual.
	o.accrueCosts(t)

	// Phase 13: end-of-day.
	if o.time.IsEndOfDay() {
		o.finalizeEndOfDay(t)
		result.EndOfDay = true
	}

	// Phase 14: time advance.
	o.time.Advance()

	return result
}

// evaluatePaymentHead evaluates the payment tree for one agent's selected
// Queue 1 head (per configured ordering) and applies the decision. It
// returns 1 if a Drop action was taken, else 0.
func (o *Orchestrator) evaluatePaymentHead(agentID string, t int, pub policy.PublicSignals) int {
	idx, txID := o.pickQueue1Head(agentID)
	if txID == "" {
		return 0
	}
	def, ok := o.policies[agentID]
	if !ok || def.PaymentTree == nil {
		return 0
	}

	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0
	}
	tx, err := o.state.GetTransaction(txID)
	if err != nil || !tx.IsPending() {
		o.removeQueue1At(agentID, idx)
		return 0
	}

	ctx := o.buildContext(agent, tx, t, pub)

	if applied := o.applyStateActionIfAny(def.PaymentTree, ctx, agent); applied {
		return 0
	}

	decision, err := policy.TraversePaymentTree(def.PaymentTree, ctx)
	if err != nil {
		decision = policy.PaymentDecision{Action: policy.ActionHold}
	}

	switch decision.Action {
	case policy.ActionHold:
		return 0
	case policy.ActionDrop:
		o.removeQueue1At(agentID, idx)
		tx.Drop(t)
		o.state.LogEvent(t, "drop", map[string]interface{}{"tx_id": tx.ID, "agent": agentID})
		return 1
	case policy.ActionSubmit:
		o.removeQueue1At(agentID, idx)
		o.submitToRTGS(tx)
		return 0
	case policy.ActionRelease:
		if decision.Priority != nil {
			tx.Priority = *decision.Priority
		}
		if decision.TargetTick != nil && *decision.TargetTick <= t {
			o.removeQueue1At(agentID, idx)
			o.submitToRTGS(tx)
		}
		return 0
	case policy.ActionSubmitPartial:
		o.applySubmitPartial(agentID, idx, tx, decision.Fraction, t)
		return 0
	}
	return 0
}

func (o *Orchestrator) applySubmitPartial(agentID string, idx int, tx *domain.Transaction, fraction float64, t int) {
	if !tx.Divisible || fraction <= 0 || fraction >= 1 {
		return
	}
	childA, childB, err := tx.Split(fraction, t)
	if err != nil {
		return
	}
	o.costAcc.ChargeSplitFriction(tx.Sender, 2)

	o.state.AddTransaction(childA)
	o.state.AddTransaction(childB)
	o.submitToRTGS(childA)

	q := o.state.PerAgentQueue1[agentID]
	q[idx] = childB.ID
	o.state.PerAgentQueue1[agentID] = q

	o.state.LogEvent(t, "split", map[string]interface{}{
		"parent_id": tx.ID, "child_submitted": childA.ID, "child_queued": childB.ID,
	})
}

func (o *Orchestrator) submitToRTGS(tx *domain.Transaction) {
	o.state.EnqueueRTGS(tx.ID)
	o.pairIdx.Insert(tx)
}

func (o *Orchestrator) evaluateBankTree(agentID string, t int, pub policy.PublicSignals) {
	def, ok := o.policies[agentID]
	if !ok || def.BankTree == nil {
		o.releaseBudgetsRemaining[agentID] = math.MaxInt64
		return
	}
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return
	}
	ctx := o.buildContext(agent, nil, t, pub)

	if o.applyStateActionIfAny(def.BankTree, ctx, agent) {
		o.releaseBudgetsRemaining[agentID] = math.MaxInt64
		return
	}

	decision, err := policy.TraverseBankTree(def.BankTree, ctx)
	if err != nil || decision.ReleaseBudget <= 0 {
		o.releaseBudgetsRemaining[agentID] = math.MaxInt64
		return
	}
	o.releaseBudgetsRemaining[agentID] = decision.ReleaseBudget
	if decision.Focus != "" {
		o.releaseBudgetFocus[agentID] = decision.Focus
	}
}

func (o *Orchestrator) evaluateStrategicCollateral(agentID string, t int, pub policy.PublicSignals) {
	def, ok := o.policies[agentID]
	if !ok || def.StrategicCollateralTree == nil {
		return
	}
	o.evaluateCollateralTree(def.StrategicCollateralTree, agentID, t, pub)
}

func (o *Orchestrator) evaluateEndOfTickCollateral(agentID string, t int, pub policy.PublicSignals) {
	ac := o.agentConfigByID(agentID)
	agent, err := o.state.GetAgent(agentID)
	if err == nil {
		withdrawn := agent.ProcessTimers(t, ac.CollateralMinHoldingTicks, ac.CollateralSafetyBuffer)
		if withdrawn > 0 {
			o.logCollateralEvent(t, agentID, "withdraw", withdrawn, "scheduled")
		}
	}

	def, ok := o.policies[agentID]
	if !ok || def.EndOfTickCollateralTree == nil {
		return
	}
	o.evaluateCollateralTree(def.EndOfTickCollateralTree, agentID, t, pub)
}

func (o *Orchestrator) evaluateCollateralTree(root *policy.TreeNode, agentID string, t int, pub policy.PublicSignals) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return
	}
	ctx := o.buildContext(agent, nil, t, pub)

	if o.applyStateActionIfAny(root, ctx, agent) {
		return
	}

	decision, err := policy.TraverseCollateralTree(root, ctx)
	if err != nil {
		return
	}

	ac := o.agentConfigByID(agentID)
	switch decision.Action {
	case policy.ActionPostCollateral:
		if decision.Amount <= 0 {
			return
		}
		posted := agent.PostCollateral(decision.Amount, t)
		if posted < decision.Amount {
			o.logCollateralEvent(t, agentID, "post_clamped", posted, decision.Reason)
			return
		}
		o.logCollateralEvent(t, agentID, "post", posted, decision.Reason)
	case policy.ActionWithdrawCollateral:
		if decision.Amount <= 0 {
			return
		}
		if decision.ScheduleAt != nil {
			agent.ScheduleCollateralWithdrawal(*decision.ScheduleAt, decision.Amount, decision.Reason)
			o.logCollateralEvent(t, agentID, "withdraw_scheduled", decision.Amount, decision.Reason)
			return
		}
		withdrawn := agent.TryWithdrawCollateralGuarded(decision.Amount, t, ac.CollateralMinHoldingTicks, ac.CollateralSafetyBuffer)
		o.logCollateralEvent(t, agentID, "withdraw", withdrawn, decision.Reason)
	case policy.ActionHoldCollateral:
		return
	}
}

func (o *Orchestrator) logCollateralEvent(t int, agentID, kind string, amount int64, reason string) {
	o.state.LogEvent(t, "collateral_event", map[string]interface{}{
		"agent": agentID, "kind": kind, "amount": amount, "reason": reason, "day": o.time.CurrentDay(),
	})
}

func (o *Orchestrator) applyStateActionIfAny(root *policy.TreeNode, ctx *policy.EvalContext, agent *domain.Agent) bool {
	action, err := policy.TraverseStateActions(root, ctx)
	if err != nil || action == nil {
		return false
	}
	value := action.Value
	if action.IsAdd {
		value = agent.StateRegisters[action.Key] + action.Value
	}
	_ = agent.SetStateRegister(action.Key, value)
	return true
}

// filterByBudget returns the subset of queueOrder each sender can still
// afford under its release budget for this tick, consuming budget as it
// goes (in queue order, so the head of each agent's queue is served
// first). Senders with no configured budget are unlimited.
func (o *Orchestrator) filterByBudget(queueOrder []string) []string {
	remaining := make(map[string]int64, len(o.releaseBudgetsRemaining))
	for k, v := range o.releaseBudgetsRemaining {
		remaining[k] = v
	}
	filtered := make([]string, 0, len(queueOrder))
	for _, txID := range queueOrder {
		tx, ok := o.state.Transactions.Get(txID)
		if !ok {
			continue
		}
		budget, tracked := remaining[tx.Sender]
		if !tracked {
			filtered = append(filtered, txID)
			continue
		}
		if focus, ok := o.releaseBudgetFocus[tx.Sender]; ok && focus != tx.Receiver {
			filtered = append(filtered, txID)
			continue
		}
		if budget <= 0 {
			continue
		}
		if tx.RemainingAmount > budget {
			continue
		}
		remaining[tx.Sender] = budget - tx.RemainingAmount
		filtered = append(filtered, txID)
	}
	return filtered
}

func (o *Orchestrator) markOverdue(t int) int {
	count := 0
	mark := func(txID string) {
		tx, ok := o.state.Transactions.Get(txID)
		if !ok || !tx.IsPending() || !tx.IsPastDeadline(t) {
			return
		}
		wasOverdue := tx.OverdueSince != nil
		tx.MarkOverdue(t)
		if !wasOverdue {
			count++
			o.costAcc.ChargeDeadlinePenalty(tx.Sender)
			o.state.LogEvent(t, "overdue", map[string]interface{}{"tx_id": tx.ID, "agent": tx.Sender})
		}
	}
	for _, agentID := range o.state.Agents.Keys() {
		for _, txID := range o.state.PerAgentQueue1[agentID] {
			mark(txID)
		}
	}
	for _, txID := range o.state.RTGSQueue {
		mark(txID)
	}
	return count
}

func (o *Orchestrator) accrueCosts(t int) {
	for _, agentID := range o.state.Agents.Keys() {
		agent, _ := o.state.GetAgent(agentID)
		queue1 := o.state.PerAgentQueue1[agentID]
		q2 := o.qidx.GetMetrics(agentID)
		o.costAcc.AccrueTick(agent, queue1, o.lookupTx, q2, t)
	}
}

func (o *Orchestrator) finalizeEndOfDay(t int) {
	queuedCounts := make(map[string]int)
	for _, q := range o.state.PerAgentQueue1 {
		for _, txID := range q {
			if tx, ok := o.state.Transactions.Get(txID); ok && tx.IsPending() {
				queuedCounts[tx.Sender]++
			}
		}
	}
	for _, txID := range o.state.RTGSQueue {
		if tx, ok := o.state.Transactions.Get(txID); ok && tx.IsPending() {
			queuedCounts[tx.Sender]++
		}
	}
	for agentID, n := range queuedCounts {
		o.costAcc.ChargeEODPenalty(agentID, n)
	}

	if o.cfg.DropOverdueAtEOD {
		toRemove := make(map[string]struct{})
		for _, txID := range o.state.RTGSQueue {
			tx, ok := o.state.Transactions.Get(txID)
			if ok && tx.IsPending() && tx.IsPastDeadline(t) {
				tx.Drop(t)
				toRemove[txID] = struct{}{}
				o.pairIdx.Remove(tx)
			}
		}
		o.state.RemoveFromRTGS(toRemove)

		for agentID, q := range o.state.PerAgentQueue1 {
			kept := q[:0:0]
			for _, txID := range q {
				tx, ok := o.state.Transactions.Get(txID)
				if ok && tx.IsPending() && tx.IsPastDeadline(t) {
					tx.Drop(t)
					continue
				}
				kept = append(kept, txID)
			}
			o.state.PerAgentQueue1[agentID] = kept
		}
	}

	for _, agentID := range o.state.Agents.Keys() {
		agent, _ := o.state.GetAgent(agentID)
		agent.ResetStateRegisters()
		agent.ResetDailyVolume()
	}
	o.state.ResetTickStats()
	o.costAcc.ResetDay()
}

func (o *Orchestrator) lookupTx(id string) (*domain.Transaction, bool) {
	return o.state.Transactions.Get(id)
}

func (o *Orchestrator) computePublicSignals() policy.PublicSignals {
	totalQueued := len(o.state.RTGSQueue)
	for _, q := range o.state.PerAgentQueue1 {
		totalQueued += len(q)
	}
	n := o.state.Agents.Len()
	pressure := 0.0
	if n > 0 {
		pressure = math.Min(1.0, float64(totalQueued)/float64(n*10))
	}
	runRate := 0.0
	if o.totalArrivals > 0 {
		runRate = float64(o.totalSettlements) / float64(o.totalArrivals)
	}
	dayProgress := float64(o.time.TickWithinDay()) / float64(o.time.TicksPerDay())

	return policy.PublicSignals{
		SystemPressure:     pressure,
		LSMRunRate:         runRate,
		ThroughputProgress: runRate,
		DayProgress:        dayProgress,
	}
}

func (o *Orchestrator) buildContext(agent *domain.Agent, tx *domain.Transaction, t int, pub policy.PublicSignals) *policy.EvalContext {
	q2 := o.qidx.GetMetrics(agent.ID)
	queue1 := o.state.PerAgentQueue1[agent.ID]

	var incoming, outgoing float64
	if tx != nil {
		for _, id := range o.qidx.GetAgentTransactions(tx.Receiver) {
			if other, ok := o.state.Transactions.Get(id); ok && other.Sender == agent.ID {
				outgoing += float64(other.RemainingAmount)
			}
		}
		for _, id := range o.qidx.GetAgentTransactions(agent.ID) {
			if other, ok := o.state.Transactions.Get(id); ok && other.Receiver == tx.Receiver {
				incoming += float64(other.RemainingAmount)
			}
		}
	}

	rates := o.costRateFields()
	if def, ok := o.policies[agent.ID]; ok && def != nil {
		for name, v := range def.Parameters {
			rates[name] = v
		}
	}
	return policy.BuildContext(agent, tx, t, rates, q2, queue1, o.lookupTx, pub, incoming, outgoing)
}

func (o *Orchestrator) costRateFields() policy.CostRatesFields {
	r := o.cfg.CostRates
	return policy.CostRatesFields{
		"overdraft_bps_per_tick":       r.OverdraftBpsPerTick,
		"delay_cost_per_tick_per_cent": r.DelayCostPerTickPerCent,
		"overdue_delay_multiplier":     r.OverdueDelayMultiplier,
		"collateral_cost_per_tick_bps": r.CollateralCostPerTickBps,
		"liquidity_cost_per_tick_bps":  r.LiquidityCostPerTickBps,
		"split_friction_cost":          r.SplitFrictionCost,
		"deadline_penalty":             r.DeadlinePenalty,
		"eod_penalty_per_transaction":  r.EODPenaltyPerTransaction,
	}
}

// pickQueue1Head selects the index and id of the transaction to evaluate
// this tick for agentID, per the configured Queue1Ordering, without
// mutating the queue.
func (o *Orchestrator) pickQueue1Head(agentID string) (int, string) {
	q := o.state.PerAgentQueue1[agentID]
	if len(q) == 0 {
		return -1, ""
	}
	switch o.cfg.Queue1Ordering {
	case OrderingPriority:
		bestIdx, bestPriority := 0, -1
		for i, id := range q {
			tx, ok := o.state.Transactions.Get(id)
			if !ok {
				continue
			}
			if tx.Priority > bestPriority {
				bestPriority = tx.Priority
				bestIdx = i
			}
		}
		return bestIdx, q[bestIdx]
	case OrderingDeadline:
		bestIdx, bestDeadline := 0, math.MaxInt64
		for i, id := range q {
			tx, ok := o.state.Transactions.Get(id)
			if !ok {
				continue
			}
			if tx.DeadlineTick < bestDeadline {
				bestDeadline = tx.DeadlineTick
				bestIdx = i
			}
		}
		return bestIdx, q[bestIdx]
	default: // OrderingFIFO
		return 0, q[0]
	}
}

func (o *Orchestrator) removeQueue1At(agentID string, idx int) {
	q := o.state.PerAgentQueue1[agentID]
	if idx < 0 || idx >= len(q) {
		return
	}
	q = append(q[:idx], q[idx+1:]...)
	o.state.PerAgentQueue1[agentID] = q
}

// SubmitTransaction creates a new transaction directly (bypassing
// arrivals) and enqueues it into the sender's Queue 1, per the
// submit_transaction observation-surface call.
func (o *Orchestrator) SubmitTransaction(sender, receiver string, amount int64, deadlineTick, priority int, divisible bool) (string, error) {
	senderAgent, err := o.state.GetAgent(sender)
	if err != nil {
		return "", err
	}
	if _, err := o.state.GetAgent(receiver); err != nil {
		return "", err
	}
	now := o.time.CurrentTick()
	if amount <= 0 || deadlineTick <= now {
		return "", simerrors.Wrap(simerrors.ErrInvalidTransaction, "amount must be positive and deadline after the current tick")
	}
	if !senderAgent.WithinLimits(amount) {
		return "", simerrors.Wrap(simerrors.ErrInvalidTransaction, "amount exceeds sender's submission limits")
	}
	tx := domain.NewTransaction(sender, receiver, amount, now, deadlineTick).WithPriority(priority)
	if divisible {
		tx = tx.WithDivisible()
	}
	senderAgent.RecordDailyVolume(amount)
	o.state.AddTransaction(tx)
	o.state.EnqueueQueue1(sender, tx.ID)
	return tx.ID, nil
}

// Snapshot captures the full episode state for checkpointing.
func (o *Orchestrator) Snapshot() snapshot.StateSnapshot {
	costSnap := snapshot.CostSnapshot{
		PerAgentTick:  o.perAgentCostMap(o.costAcc.PerAgentTick),
		PerAgentDay:   o.perAgentCostMap(o.costAcc.PerAgentDay),
		PerAgentTotal: o.perAgentCostMap(o.costAcc.PerAgentTotal),
		DayTotal:      o.costAcc.DayTotal(),
		EpisodeTotal:  o.costAcc.EpisodeTotal(),
	}
	return snapshot.Capture(o.state, o.time, o.rng, costSnap, o.cfg.ConfigHash)
}

func (o *Orchestrator) perAgentCostMap(get func(string) int64) map[string]int64 {
	out := make(map[string]int64, o.state.Agents.Len())
	for _, id := range o.state.Agents.Keys() {
		out[id] = get(id)
	}
	return out
}

// Restore replaces live state from a previously captured snapshot.
func (o *Orchestrator) Restore(snap snapshot.StateSnapshot) error {
	_, err := snapshot.Restore(o.state, o.time, o.rng, snap, o.cfg.ConfigHash)
	if err != nil {
		return err
	}
	o.qidx.Rebuild(o.state.RTGSQueue, queueindex.FromState(o.state))
	o.pairIdx.Rebuild(o.state)
	return nil
}

// GetTransaction returns the transaction with the given id.
func (o *Orchestrator) GetTransaction(id string) (*domain.Transaction, error) {
	return o.state.GetTransaction(id)
}

// GetRTGSQueueContents returns the current RTGS queue in settlement order.
func (o *Orchestrator) GetRTGSQueueContents() []string {
	return append([]string(nil), o.state.RTGSQueue...)
}

// GetQueue1Contents returns an agent's Queue 1 contents in current order.
func (o *Orchestrator) GetQueue1Contents(agentID string) []string {
	return append([]string(nil), o.state.PerAgentQueue1[agentID]...)
}

// GetTickEvents returns every event logged during the given tick.
func (o *Orchestrator) GetTickEvents(tick int) []domain.Event {
	var out []domain.Event
	for _, ev := range o.state.EventLog {
		if ev.Tick == tick {
			out = append(out, ev)
		}
	}
	return out
}

// GetCollateralEventsForDay returns every collateral_event logged during
// the given day, in log order.
func (o *Orchestrator) GetCollateralEventsForDay(day int) []domain.Event {
	var out []domain.Event
	for _, ev := range o.state.EventLog {
		if ev.Kind != "collateral_event" {
			continue
		}
		if d, ok := ev.Data["day"].(int); ok && d == day {
			out = append(out, ev)
		}
	}
	return out
}

// GetAgentBalance returns the agent's current settled balance.
func (o *Orchestrator) GetAgentBalance(agentID string) (int64, error) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.Balance, nil
}

// GetAgentUnsecuredCap returns the agent's configured unsecured overdraft cap.
func (o *Orchestrator) GetAgentUnsecuredCap(agentID string) (int64, error) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.UnsecuredCap, nil
}

// GetAgentPostedCollateral returns the agent's currently posted collateral.
func (o *Orchestrator) GetAgentPostedCollateral(agentID string) (int64, error) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.PostedCollateral, nil
}

// GetAgentAvailableLiquidity returns the agent's current available liquidity
// (non-negative balance plus unsecured cap plus effective collateral).
func (o *Orchestrator) GetAgentAvailableLiquidity(agentID string) (int64, error) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.AvailableLiquidity(), nil
}

// GetAgentStateRegister returns the value of a named state register,
// defaulting to 0 if it has never been set.
func (o *Orchestrator) GetAgentStateRegister(agentID, key string) (float64, error) {
	agent, err := o.state.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.StateRegisters[key], nil
}

// CurrentTick returns the tick about to execute (or just executed, between
// calls to Tick).
func (o *Orchestrator) CurrentTick() int {
	return o.time.CurrentTick()
}

// CurrentDay returns the simulation day containing the current tick.
func (o *Orchestrator) CurrentDay() int {
	return o.time.CurrentDay()
}
