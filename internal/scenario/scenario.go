// Package scenario loads a SimulationConfig from a JSON scenario file, the
// JSON-loadable counterpart to internal/orchestrator.Config described in
// spec.md §6. It is the one place a snake_case wire format exists for the
// engine's own configuration — agent policies embedded in the document are
// handed to internal/policy's own two-stage JSON loader unchanged.
package scenario

import (
	"encoding/json"
	"os"

	"rtgssim/internal/arrivals"
	"rtgssim/internal/costs"
	"rtgssim/internal/events"
	"rtgssim/internal/orchestrator"
	"rtgssim/internal/policy"
	"rtgssim/internal/settlement"
	simerrors "rtgssim/pkg/errors"
)

type doc struct {
	TicksPerDay      int     `json:"ticks_per_day"`
	NumDays          int     `json:"num_days"`
	EODRushThreshold float64 `json:"eod_rush_threshold"`
	RNGSeed          uint64  `json:"rng_seed"`

	AgentConfigs []agentDoc `json:"agent_configs"`

	CostRates             costRatesDoc    `json:"cost_rates"`
	LSMConfig             lsmConfigDoc    `json:"lsm_config"`
	BilateralEnabled      bool            `json:"bilateral_enabled"`
	CycleDetectionEnabled bool            `json:"cycle_detection_enabled"`
	ScenarioEvents        []scenarioEvent `json:"scenario_events"`

	Queue1Ordering    string `json:"queue1_ordering"`
	DeferredCrediting bool   `json:"deferred_crediting"`
	DeadlineCapAtEOD  bool   `json:"deadline_cap_at_eod"`
	DropOverdueAtEOD  bool   `json:"drop_overdue_at_eod"`

	ConfigHash string `json:"config_hash"`
}

type agentDoc struct {
	ID                        string          `json:"id"`
	OpeningBalance            int64           `json:"opening_balance"`
	UnsecuredCap              int64           `json:"unsecured_cap"`
	Policy                    json.RawMessage `json:"policy"`
	Arrival                   *arrivalDoc     `json:"arrival"`
	PostedCollateral          int64           `json:"posted_collateral"`
	CollateralHaircut         float64         `json:"collateral_haircut"`
	MaxCollateralCapacity     int64           `json:"max_collateral_capacity"`
	CollateralMinHoldingTicks int             `json:"collateral_min_holding_ticks"`
	CollateralSafetyBuffer    int64           `json:"collateral_safety_buffer"`

	// LiquidityPool and LiquidityAllocationFraction model the BIS Period-0
	// funding decision (the external pool an agent draws into the system
	// at construction).
	LiquidityPool               int64          `json:"liquidity_pool"`
	LiquidityAllocationFraction float64        `json:"liquidity_allocation_fraction"`
	Limits                      *agentLimitsDoc `json:"limits"`
}

type agentLimitsDoc struct {
	MaxSingleTransactionAmount int64 `json:"max_single_transaction_amount"`
	MaxDailyVolume             int64 `json:"max_daily_volume"`
}

type arrivalBandDoc struct {
	StartTick   int     `json:"start_tick"`
	EndTick     int     `json:"end_tick"`
	RatePerTick float64 `json:"rate_per_tick"`
}

type arrivalDoc struct {
	Bands               []arrivalBandDoc   `json:"bands"`
	Multiplier          float64            `json:"multiplier"`
	CounterpartyWeights map[string]float64 `json:"counterparty_weights"`
	MinAmount           int64              `json:"min_amount"`
	MaxAmount           int64              `json:"max_amount"`
	MinDeadlineTicks    int                `json:"min_deadline_ticks"`
	MaxDeadlineTicks    int                `json:"max_deadline_ticks"`
	DivisibleFraction   float64            `json:"divisible_fraction"`
	PriorityMin         int                `json:"priority_min"`
	PriorityMax         int                `json:"priority_max"`
}

type costRatesDoc struct {
	OverdraftBpsPerTick      float64         `json:"overdraft_bps_per_tick"`
	DelayCostPerTickPerCent  float64         `json:"delay_cost_per_tick_per_cent"`
	OverdueDelayMultiplier   float64         `json:"overdue_delay_multiplier"`
	CollateralCostPerTickBps float64         `json:"collateral_cost_per_tick_bps"`
	LiquidityCostPerTickBps  float64         `json:"liquidity_cost_per_tick_bps"`
	SplitFrictionCost        float64         `json:"split_friction_cost"`
	DeadlinePenalty          float64         `json:"deadline_penalty"`
	EODPenaltyPerTransaction float64         `json:"eod_penalty_per_transaction"`
	PriorityDelayMultipliers map[int]float64 `json:"priority_delay_multipliers"`
}

type lsmConfigDoc struct {
	MaxCycleLength int    `json:"max_cycle_length"`
	PriorityMode   string `json:"priority_mode"`
	MaxIterations  int    `json:"max_iterations"`
}

type scenarioEvent struct {
	Tick           int                `json:"tick"`
	StartTick      int                `json:"start_tick"`
	Interval       int                `json:"interval"`
	Kind           string             `json:"kind"`
	DirectTransfer *directTransferDoc `json:"direct_transfer"`
}

type directTransferDoc struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Amount    int64  `json:"amount"`
}

// Load reads and converts a scenario file at path into an
// orchestrator.Config ready for orchestrator.New.
func Load(path string) (orchestrator.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Config{}, simerrors.Wrap(err, "failed to read scenario file")
	}
	return Parse(raw)
}

// Parse converts raw scenario JSON into an orchestrator.Config.
func Parse(raw []byte) (orchestrator.Config, error) {
	var d doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return orchestrator.Config{}, simerrors.Wrap(err, "failed to parse scenario JSON")
	}

	agents := make([]orchestrator.AgentConfig, len(d.AgentConfigs))
	for i, ad := range d.AgentConfigs {
		var tree *policy.DecisionTreeDef
		if len(ad.Policy) > 0 {
			parsed, _, err := policy.LoadFromJSON(ad.Policy)
			if err != nil {
				return orchestrator.Config{}, simerrors.Wrap(err, "invalid policy for agent "+ad.ID)
			}
			tree = parsed
		}

		var arrival *arrivalDocConfig
		if ad.Arrival != nil {
			arrival = &arrivalDocConfig{doc: *ad.Arrival}
		}

		var limits orchestrator.AgentLimits
		if ad.Limits != nil {
			limits = orchestrator.AgentLimits{
				MaxSingleTransactionAmount: ad.Limits.MaxSingleTransactionAmount,
				MaxDailyVolume:             ad.Limits.MaxDailyVolume,
			}
		}

		agents[i] = orchestrator.AgentConfig{
			ID:                          ad.ID,
			OpeningBalance:              ad.OpeningBalance,
			UnsecuredCap:                ad.UnsecuredCap,
			Policy:                      tree,
			Arrival:                     arrival.toArrivalsConfig(ad.ID),
			PostedCollateral:            ad.PostedCollateral,
			CollateralHaircut:           ad.CollateralHaircut,
			MaxCollateralCapacity:       ad.MaxCollateralCapacity,
			CollateralMinHoldingTicks:   ad.CollateralMinHoldingTicks,
			CollateralSafetyBuffer:      ad.CollateralSafetyBuffer,
			LiquidityPool:               ad.LiquidityPool,
			LiquidityAllocationFraction: ad.LiquidityAllocationFraction,
			Limits:                      limits,
		}
	}

	priorityMultipliers := make(map[costs.PriorityBand]float64, len(d.CostRates.PriorityDelayMultipliers))
	for band, mult := range d.CostRates.PriorityDelayMultipliers {
		priorityMultipliers[costs.PriorityBand(band)] = mult
	}

	scenarioEvents := make([]events.ScheduledEvent, len(d.ScenarioEvents))
	for i, se := range d.ScenarioEvents {
		ev := events.Event{Kind: kindFromString(se.Kind)}
		if se.DirectTransfer != nil {
			ev.DirectTransfer = &events.DirectTransfer{
				FromAgent: se.DirectTransfer.FromAgent,
				ToAgent:   se.DirectTransfer.ToAgent,
				Amount:    se.DirectTransfer.Amount,
			}
		}
		scenarioEvents[i] = events.ScheduledEvent{
			Event:    ev,
			Schedule: events.Schedule{Tick: se.Tick, StartTick: se.StartTick, Interval: se.Interval},
		}
	}

	cfg := orchestrator.Config{
		TicksPerDay:      d.TicksPerDay,
		NumDays:          d.NumDays,
		EODRushThreshold: d.EODRushThreshold,
		RNGSeed:          d.RNGSeed,
		Agents:           agents,
		CostRates: costs.Rates{
			OverdraftBpsPerTick:      d.CostRates.OverdraftBpsPerTick,
			DelayCostPerTickPerCent:  d.CostRates.DelayCostPerTickPerCent,
			OverdueDelayMultiplier:   d.CostRates.OverdueDelayMultiplier,
			CollateralCostPerTickBps: d.CostRates.CollateralCostPerTickBps,
			LiquidityCostPerTickBps:  d.CostRates.LiquidityCostPerTickBps,
			SplitFrictionCost:        d.CostRates.SplitFrictionCost,
			DeadlinePenalty:          d.CostRates.DeadlinePenalty,
			EODPenaltyPerTransaction: d.CostRates.EODPenaltyPerTransaction,
			PriorityDelayMultipliers: priorityMultipliers,
		},
		LSM: settlement.CycleConfig{
			MaxCycleLength: d.LSMConfig.MaxCycleLength,
			PriorityMode:   priorityModeFromString(d.LSMConfig.PriorityMode),
			MaxIterations:  d.LSMConfig.MaxIterations,
		},
		BilateralEnabled:      d.BilateralEnabled,
		CycleDetectionEnabled: d.CycleDetectionEnabled,
		ScenarioEvents:        scenarioEvents,
		Queue1Ordering:        queue1OrderingFromString(d.Queue1Ordering),
		DeferredCrediting:     d.DeferredCrediting,
		DeadlineCapAtEOD:      d.DeadlineCapAtEOD,
		DropOverdueAtEOD:      d.DropOverdueAtEOD,
		ConfigHash:            d.ConfigHash,
	}
	return cfg, nil
}

// arrivalDocConfig adapts the embedded arrivalDoc into arrivals.Config,
// filling in the agent id the arrivals package expects as part of Config.
type arrivalDocConfig struct {
	doc arrivalDoc
}

func (a *arrivalDocConfig) toArrivalsConfig(agentID string) *arrivals.Config {
	if a == nil {
		return nil
	}
	bands := make([]arrivals.ArrivalBand, len(a.doc.Bands))
	for i, b := range a.doc.Bands {
		bands[i] = arrivals.ArrivalBand{StartTick: b.StartTick, EndTick: b.EndTick, RatePerTick: b.RatePerTick}
	}
	return &arrivals.Config{
		AgentID:             agentID,
		Bands:               bands,
		Multiplier:          a.doc.Multiplier,
		CounterpartyWeights: a.doc.CounterpartyWeights,
		MinAmount:           a.doc.MinAmount,
		MaxAmount:           a.doc.MaxAmount,
		MinDeadlineTicks:    a.doc.MinDeadlineTicks,
		MaxDeadlineTicks:    a.doc.MaxDeadlineTicks,
		DivisibleFraction:   a.doc.DivisibleFraction,
		PriorityMin:         a.doc.PriorityMin,
		PriorityMax:         a.doc.PriorityMax,
	}
}

func kindFromString(s string) events.Kind {
	switch s {
	case "direct_transfer":
		return events.KindDirectTransfer
	case "collateral_adjustment":
		return events.KindCollateralAdjustment
	case "global_arrival_rate_change":
		return events.KindGlobalArrivalRateChange
	case "agent_arrival_rate_change":
		return events.KindAgentArrivalRateChange
	case "counterparty_weight_change":
		return events.KindCounterpartyWeightChange
	case "deadline_window_change":
		return events.KindDeadlineWindowChange
	case "scheduled_settlement":
		return events.KindScheduledSettlement
	default:
		return events.KindDirectTransfer
	}
}

func priorityModeFromString(s string) settlement.PriorityMode {
	switch s {
	case "by_tx_count":
		return settlement.PriorityByTxCount
	case "by_deadline":
		return settlement.PriorityByDeadline
	default:
		return settlement.PriorityByValue
	}
}

func queue1OrderingFromString(s string) orchestrator.Queue1Ordering {
	switch s {
	case "priority":
		return orchestrator.OrderingPriority
	case "deadline":
		return orchestrator.OrderingDeadline
	default:
		return orchestrator.OrderingFIFO
	}
}
