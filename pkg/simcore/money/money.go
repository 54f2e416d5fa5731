// Package money implements invariant M: every monetary quantity in the
// simulator is a signed 64-bit integer of minor units (cents). Rates and
// multipliers are float64; applying one to money always rounds toward zero.
package money

import "math"

// Cents is a monetary amount in integer minor units. Never use float64 or
// decimal types for money anywhere in a component's public signature.
type Cents = int64

// BpsToRate converts basis points to a fraction: bps / 10_000.
func BpsToRate(bps float64) float64 {
	return bps / 10_000.0
}

// ApplyBps applies a basis-points rate to an amount, rounding the result
// toward zero to the nearest cent.
func ApplyBps(amount Cents, bps float64) Cents {
	return RoundToCents(float64(amount) * BpsToRate(bps))
}

// ApplyRate applies a plain fractional rate (already divided, not bps) to
// an amount, rounding toward zero.
func ApplyRate(amount Cents, rate float64) Cents {
	return RoundToCents(float64(amount) * rate)
}

// RoundToCents rounds a float64 toward zero to the nearest integer cent.
func RoundToCents(v float64) Cents {
	return Cents(math.Trunc(v))
}

// Max returns the larger of two amounts.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of two amounts.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// Abs returns the absolute value of an amount.
func Abs(a Cents) Cents {
	if a < 0 {
		return -a
	}
	return a
}
