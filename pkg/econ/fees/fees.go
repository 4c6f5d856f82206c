// Package fees defines the per-currency transfer fee schedule applied to
// every settlement leg.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// Schedule holds proportional transfer fee rates per currency.
type Schedule struct {
	prec  fixed.Precision
	rates [3]decimal.Decimal
}

// DefaultRate is the flat transfer fee rate applied when no override is given.
var DefaultRate = decimal.NewFromFloat(0.005)

// NewSchedule builds a schedule with one flat rate for every currency.
func NewSchedule(prec fixed.Precision, rate decimal.Decimal) *Schedule {
	s := &Schedule{prec: prec}
	for i := range s.rates {
		s.rates[i] = rate
	}
	return s
}

// SetRate overrides the rate for one currency.
func (s *Schedule) SetRate(c ledger.Currency, rate decimal.Decimal) {
	s.rates[c] = rate
}

// Rate returns the transfer fee rate for c.
func (s *Schedule) Rate(c ledger.Currency) decimal.Decimal {
	return s.rates[c]
}

// TransferFee returns the fee charged on top of sending value of c.
func (s *Schedule) TransferFee(c ledger.Currency, value decimal.Decimal) decimal.Decimal {
	return s.prec.MulRound(value, s.rates[c])
}

// TransferPlusFee returns the total deducted from a sender moving value of c.
func (s *Schedule) TransferPlusFee(c ledger.Currency, value decimal.Decimal) decimal.Decimal {
	return value.Add(s.TransferFee(c, value))
}

// ReceivedQuantity returns the amount of c deliverable when spending total,
// fee included: the q solving q + q*rate = total.
func (s *Schedule) ReceivedQuantity(c ledger.Currency, total decimal.Decimal) decimal.Decimal {
	return s.prec.DivRound(total, decimal.NewFromInt(1).Add(s.rates[c]))
}
