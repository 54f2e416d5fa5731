package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/orchestrator"
	"rtgssim/internal/settlement"
)

const sampleScenario = `{
	"ticks_per_day": 10,
	"num_days": 2,
	"eod_rush_threshold": 0.8,
	"rng_seed": 42,
	"agent_configs": [
		{
			"id": "A",
			"opening_balance": 1000000,
			"unsecured_cap": 500000,
			"policy": {
				"policy_id": "a",
				"version": "1",
				"payment_tree": {"type": "action", "node_id": "submit", "action": "Submit"}
			},
			"arrival": {
				"bands": [{"start_tick": 0, "end_tick": 10, "rate_per_tick": 0.5}],
				"multiplier": 1.0,
				"counterparty_weights": {"B": 1.0},
				"min_amount": 1000,
				"max_amount": 5000,
				"min_deadline_ticks": 1,
				"max_deadline_ticks": 5,
				"priority_min": 0,
				"priority_max": 10
			}
		},
		{
			"id": "B",
			"opening_balance": 1000000,
			"unsecured_cap": 500000,
			"policy": {
				"policy_id": "b",
				"version": "1",
				"payment_tree": {"type": "action", "node_id": "submit", "action": "Submit"}
			}
		}
	],
	"cost_rates": {
		"overdraft_bps_per_tick": 5,
		"delay_cost_per_tick_per_cent": 0.01,
		"priority_delay_multipliers": {"2": 1.5}
	},
	"lsm_config": {"max_cycle_length": 4, "priority_mode": "by_value", "max_iterations": 8},
	"bilateral_enabled": true,
	"cycle_detection_enabled": true,
	"scenario_events": [
		{"tick": 3, "kind": "direct_transfer", "direct_transfer": {"from_agent": "A", "to_agent": "B", "amount": 2000}}
	],
	"queue1_ordering": "fifo",
	"deferred_crediting": true,
	"deadline_cap_at_eod": true,
	"drop_overdue_at_eod": true,
	"config_hash": "sample-hash"
}`

func TestParse_BuildsOrchestratorConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleScenario))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.TicksPerDay)
	assert.Equal(t, 2, cfg.NumDays)
	assert.Equal(t, uint64(42), cfg.RNGSeed)
	assert.Equal(t, "sample-hash", cfg.ConfigHash)
	require.Len(t, cfg.Agents, 2)

	agentA := cfg.Agents[0]
	assert.Equal(t, "A", agentA.ID)
	assert.Equal(t, int64(1_000_000), agentA.OpeningBalance)
	require.NotNil(t, agentA.Policy)
	assert.Equal(t, "a", agentA.Policy.PolicyID)
	require.NotNil(t, agentA.Arrival)
	assert.Equal(t, "A", agentA.Arrival.AgentID)
	require.Len(t, agentA.Arrival.Bands, 1)

	agentB := cfg.Agents[1]
	assert.Nil(t, agentB.Arrival)

	assert.Equal(t, 4, cfg.LSM.MaxCycleLength)
	assert.Equal(t, settlement.PriorityByValue, cfg.LSM.PriorityMode)
	assert.Equal(t, orchestrator.OrderingFIFO, cfg.Queue1Ordering)
	require.Len(t, cfg.ScenarioEvents, 1)
	assert.Equal(t, "A", cfg.ScenarioEvents[0].Event.DirectTransfer.FromAgent)
}

func TestParse_InvalidPolicyReturnsError(t *testing.T) {
	const bad = `{
		"agent_configs": [
			{"id": "A", "policy": {"version": "1"}}
		]
	}`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestParse_EmptyDocumentHasNoAgents(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Agents)
}

func TestParse_LiquidityPoolAndLimits(t *testing.T) {
	const doc = `{
		"agent_configs": [
			{
				"id": "A",
				"opening_balance": 1000,
				"liquidity_pool": 1000000,
				"liquidity_allocation_fraction": 0.25,
				"limits": {"max_single_transaction_amount": 5000, "max_daily_volume": 20000}
			},
			{"id": "B", "opening_balance": 1000}
		]
	}`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 2)

	a := cfg.Agents[0]
	assert.Equal(t, int64(1_000_000), a.LiquidityPool)
	assert.Equal(t, 0.25, a.LiquidityAllocationFraction)
	assert.Equal(t, int64(5000), a.Limits.MaxSingleTransactionAmount)
	assert.Equal(t, int64(20000), a.Limits.MaxDailyVolume)

	b := cfg.Agents[1]
	assert.Zero(t, b.LiquidityPool)
	assert.Zero(t, b.Limits.MaxSingleTransactionAmount)
}
