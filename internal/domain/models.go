// Package domain re-exports core simulation entity types so internal code
// can import `rtgssim/internal/domain` while using the canonical
// definitions from `rtgssim/pkg/simcore/domain`.
package domain

import pkg "rtgssim/pkg/simcore/domain"

// Agent represents a participant bank in the payment system.
type Agent = pkg.Agent

// WithdrawalTimer represents a scheduled collateral withdrawal.
type WithdrawalTimer = pkg.WithdrawalTimer

// Transaction represents a single payment obligation.
type Transaction = pkg.Transaction

// TransactionStatus represents transaction lifecycle states.
type TransactionStatus = pkg.TransactionStatus

// SimulationState represents the full mutable episode state.
type SimulationState = pkg.SimulationState

// Event represents a tick-local log entry.
type Event = pkg.Event

// Re-exported transaction statuses.
const (
	StatusPending          = pkg.StatusPending
	StatusPartiallySettled = pkg.StatusPartiallySettled
	StatusSettled          = pkg.StatusSettled
	StatusDropped          = pkg.StatusDropped
)

// NewAgent constructs an agent with the given opening balance.
var NewAgent = pkg.NewAgent

// NewTransaction constructs a pending transaction.
var NewTransaction = pkg.NewTransaction

// NewSimulationState builds a state from an ordered list of agents.
var NewSimulationState = pkg.NewSimulationState
