// Package fixed provides fixed-precision decimal arithmetic for currency values.
//
// All prices, quantities and fees in the system are quantized to a fixed
// number of fractional digits with ties rounded away from zero. The precision
// is an explicit value threaded through every component; there is no global
// rounding context.
package fixed

import "github.com/shopspring/decimal"

// DefaultDigits is the number of fractional digits used for currency values.
const DefaultDigits int32 = 8

// Precision describes a fixed decimal precision (digit count, half-up rounding).
type Precision struct {
	Digits int32
}

// Default returns the standard currency precision.
func Default() Precision {
	return Precision{Digits: DefaultDigits}
}

// Round quantizes d to the configured number of fractional digits,
// rounding ties away from zero. Idempotent on already-rounded values.
func (p Precision) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(p.Digits)
}

// MulRound returns round(a * b).
func (p Precision) MulRound(a, b decimal.Decimal) decimal.Decimal {
	return p.Round(a.Mul(b))
}

// DivRound returns round(a / b).
func (p Precision) DivRound(a, b decimal.Decimal) decimal.Decimal {
	return p.Round(a.Div(b))
}

// Key maps a rounded value to its scaled integer representation,
// suitable for use as an ordered tree key. Values must fit in an int64
// after scaling by 10^Digits.
func (p Precision) Key(d decimal.Decimal) int64 {
	return d.Shift(p.Digits).IntPart()
}
