// Package arrivals implements the Arrival Generator (§2/§4.1 item 1,
// supplemented per SPEC_FULL.md §8 with time-of-day arrival bands and
// probabilistic counterparty weighting). It consumes the RNG manager in
// agent order, once per tick, and emits new pending transactions into
// each agent's Queue 1.
package arrivals

import (
	"sort"

	"rtgssim/internal/domain"
	"rtgssim/internal/events"
	"rtgssim/internal/simrng"
	"rtgssim/pkg/simcore/money"
)

// ArrivalBand is a time-of-day-varying rate window: during
// [StartTick, EndTick) within a day, an agent generates a transaction with
// probability RatePerTick x Multiplier per tick (one Bernoulli draw per
// agent per tick, so at most one arrival per agent per tick).
type ArrivalBand struct {
	StartTick   int
	EndTick     int
	RatePerTick float64
}

// Config is one agent's arrival configuration.
type Config struct {
	AgentID             string
	Bands               []ArrivalBand // time-of-day bands; flat rate is a single all-day band
	Multiplier          float64       // scenario-adjustable global/per-agent multiplier, starts at 1.0
	CounterpartyWeights map[string]float64
	MinAmount           money.Cents
	MaxAmount           money.Cents
	MinDeadlineTicks    int
	MaxDeadlineTicks    int
	DivisibleFraction   float64 // probability a generated transaction is marked divisible
	PriorityMin         int
	PriorityMax         int
}

// rateAt returns the configured rate for tickOfDay, or 0 if no band covers it.
func (c Config) rateAt(tickOfDay int) float64 {
	for _, b := range c.Bands {
		if tickOfDay >= b.StartTick && tickOfDay < b.EndTick {
			return b.RatePerTick
		}
	}
	return 0
}

// Generator holds every agent's arrival configuration and implements
// events.RateAdjuster so scenario events can mutate rates and weights
// in place.
type Generator struct {
	configs map[string]*Config
	order   []string
}

// NewGenerator builds a generator from an ordered list of configs. Order
// is preserved as the canonical per-tick generation order.
func NewGenerator(configs []Config) *Generator {
	g := &Generator{configs: make(map[string]*Config, len(configs))}
	for i := range configs {
		c := configs[i]
		if c.Multiplier == 0 {
			c.Multiplier = 1.0
		}
		g.configs[c.AgentID] = &c
		g.order = append(g.order, c.AgentID)
	}
	return g
}

// SetGlobalMultiplier implements events.RateAdjuster: sets every agent's
// multiplier to multiplier, replacing (not compounding) its previous value.
func (g *Generator) SetGlobalMultiplier(multiplier float64) {
	for _, id := range g.order {
		g.configs[id].Multiplier = multiplier
	}
}

// SetAgentMultiplier implements events.RateAdjuster for a single agent.
func (g *Generator) SetAgentMultiplier(agentID string, multiplier float64) {
	if c, ok := g.configs[agentID]; ok {
		c.Multiplier = multiplier
	}
}

// SetCounterpartyWeight implements events.RateAdjuster: sets one weight,
// rescaling the others proportionally to still sum to 1.0 when
// autoBalanceOthers is set.
func (g *Generator) SetCounterpartyWeight(agentID, counterparty string, weight float64, autoBalanceOthers bool) {
	c, ok := g.configs[agentID]
	if !ok {
		return
	}
	if c.CounterpartyWeights == nil {
		c.CounterpartyWeights = make(map[string]float64)
	}
	oldWeight := c.CounterpartyWeights[counterparty]
	c.CounterpartyWeights[counterparty] = weight

	if !autoBalanceOthers {
		return
	}
	remainder := 1.0 - weight
	oldRemainder := 1.0 - oldWeight
	if oldRemainder <= 0 {
		return
	}
	for cp, w := range c.CounterpartyWeights {
		if cp == counterparty {
			continue
		}
		c.CounterpartyWeights[cp] = w * remainder / oldRemainder
	}
}

// SetDeadlineMultipliers implements events.RateAdjuster: rescales every
// agent's deadline window by the given multipliers (nil leaves that
// bound unchanged).
func (g *Generator) SetDeadlineMultipliers(min, max *float64) {
	for _, id := range g.order {
		c := g.configs[id]
		if min != nil {
			c.MinDeadlineTicks = int(float64(c.MinDeadlineTicks) * *min)
		}
		if max != nil {
			c.MaxDeadlineTicks = int(float64(c.MaxDeadlineTicks) * *max)
		}
	}
}

var _ events.RateAdjuster = (*Generator)(nil)

// Generate runs one tick's worth of arrivals: for each agent in
// configured order, sample whether a transaction arrives (rate-scaled
// Bernoulli draw), and if so build it with a sampled amount, deadline,
// priority, divisibility and counterparty. tickOfDay and dayEndTick
// support deadline_cap_at_eod; a transaction whose capped deadline would
// not exceed t is not emitted this tick. Newly created transactions are
// registered in state and enqueued into the sender's Queue 1.
func Generate(state *domain.SimulationState, g *Generator, rng *simrng.Manager, t, tickOfDay, dayEndTick int, deadlineCapAtEOD bool) int {
	count := 0
	for _, agentID := range g.order {
		c := g.configs[agentID]
		rate := c.rateAt(tickOfDay) * c.Multiplier
		if rate <= 0 {
			continue
		}
		if !rng.Bernoulli(rate) {
			continue
		}

		receiver := pickCounterparty(c, rng)
		if receiver == "" {
			continue
		}

		amount := sampleAmount(c, rng)
		if amount <= 0 {
			continue
		}

		deadline := sampleDeadline(c, rng, t)
		if deadlineCapAtEOD && deadline > dayEndTick {
			deadline = dayEndTick
		}
		if deadline <= t {
			continue
		}

		priority := samplePriority(c, rng)
		tx := domain.NewTransaction(agentID, receiver, amount, t, deadline).WithPriority(priority)
		if c.DivisibleFraction > 0 && rng.Bernoulli(c.DivisibleFraction) {
			tx = tx.WithDivisible()
		}

		state.AddTransaction(tx)
		state.EnqueueQueue1(agentID, tx.ID)
		count++
	}
	return count
}

func pickCounterparty(c *Config, rng *simrng.Manager) string {
	if len(c.CounterpartyWeights) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.CounterpartyWeights))
	for cp := range c.CounterpartyWeights {
		names = append(names, cp)
	}
	sort.Strings(names)

	var total float64
	for _, cp := range names {
		total += c.CounterpartyWeights[cp]
	}
	if total <= 0 {
		return ""
	}

	roll := rng.Float64() * total
	var cursor float64
	for _, cp := range names {
		cursor += c.CounterpartyWeights[cp]
		if roll < cursor {
			return cp
		}
	}
	return names[len(names)-1]
}

func sampleAmount(c *Config, rng *simrng.Manager) money.Cents {
	if c.MaxAmount <= c.MinAmount {
		return c.MinAmount
	}
	return rng.Range(int64(c.MinAmount), int64(c.MaxAmount))
}

func sampleDeadline(c *Config, rng *simrng.Manager, t int) int {
	minT, maxT := c.MinDeadlineTicks, c.MaxDeadlineTicks
	if minT <= 0 {
		minT = 1
	}
	if maxT <= minT {
		return t + minT
	}
	return t + int(rng.Range(int64(minT), int64(maxT)))
}

func samplePriority(c *Config, rng *simrng.Manager) int {
	lo, hi := c.PriorityMin, c.PriorityMax
	if hi <= lo {
		return lo
	}
	return int(rng.Range(int64(lo), int64(hi+1)))
}
