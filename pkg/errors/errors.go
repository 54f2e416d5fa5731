// Package errors provides common, reusable error values and helpers for the
// simulation core. Error kinds mirror the resolution levels in spec §7:
// some are recovered locally by the engine and only ever logged, others are
// fatal at construction or restore time and are returned to the caller.
package errors

import (
	"errors"
	"fmt"
)

// Recoverable errors. The orchestrator absorbs these: the tick loop itself
// never fails because of them.
var (
	ErrInsufficientLiquidity      = errors.New("insufficient liquidity")
	ErrCollateralCapacityExceeded = errors.New("collateral capacity exceeded")
	ErrWithdrawalBlocked          = errors.New("withdrawal blocked")
	ErrDivisionByZero             = errors.New("division by zero")
)

// Fatal errors. These stop construction, policy loading, or restore.
var (
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrPolicyValidationError = errors.New("policy validation error")
	ErrSnapshotMismatch      = errors.New("snapshot config hash mismatch")
)

// Not-found errors from the observation surface. No state change occurs.
var (
	ErrUnknownAgent       = errors.New("unknown agent")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// New returns a new error with the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
