// Package orchestrator wires every component — time, RNG, arrivals,
// policy interpreter, settlement engine, cost accumulator, scenario
// events, and collateral lifecycle — into the single tick(t) loop of
// §4.1, and exposes the observation surface of §6.
package orchestrator

import (
	"rtgssim/internal/arrivals"
	"rtgssim/internal/costs"
	"rtgssim/internal/events"
	"rtgssim/internal/policy"
	"rtgssim/internal/settlement"
)

// Queue1Ordering selects how each agent's Queue 1 head is chosen for
// policy evaluation.
type Queue1Ordering int

const (
	OrderingFIFO Queue1Ordering = iota
	OrderingPriority
	OrderingDeadline
)

// AgentConfig is one entry of the agent_configs list.
type AgentConfig struct {
	ID                        string
	OpeningBalance            int64
	UnsecuredCap              int64
	Policy                    *policy.DecisionTreeDef
	Arrival                   *arrivals.Config
	PostedCollateral          int64
	CollateralHaircut         float64
	MaxCollateralCapacity     int64
	CollateralMinHoldingTicks int
	CollateralSafetyBuffer    int64

	// LiquidityPool and LiquidityAllocationFraction model the BIS Period-0
	// funding decision: the agent allocates this fraction of an external
	// liquidity pool into the settlement system at construction, added to
	// OpeningBalance. Zero fraction (the default) means no allocation.
	LiquidityPool               int64
	LiquidityAllocationFraction float64

	// Limits, when set (non-zero), bound what SubmitTransaction accepts
	// from this agent.
	Limits AgentLimits
}

// AgentLimits bounds per-transaction and per-day submission volume for one
// agent. Zero fields mean unlimited.
type AgentLimits struct {
	MaxSingleTransactionAmount int64
	MaxDailyVolume             int64
}

// Config is the full SimulationConfig recognized by the orchestrator, per
// spec.md §6's Configuration section.
type Config struct {
	TicksPerDay      int
	NumDays          int
	EODRushThreshold float64
	RNGSeed          uint64

	Agents []AgentConfig

	CostRates             costs.Rates
	LSM                   settlement.CycleConfig
	BilateralEnabled      bool
	CycleDetectionEnabled bool

	ScenarioEvents []events.ScheduledEvent

	Queue1Ordering    Queue1Ordering
	DeferredCrediting bool
	DeadlineCapAtEOD  bool
	DropOverdueAtEOD  bool

	// ConfigHash is computed by the caller (e.g. from the serialized
	// config) and embedded in every snapshot; restore rejects a mismatch.
	ConfigHash string
}
