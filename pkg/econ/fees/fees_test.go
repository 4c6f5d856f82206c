package fees

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransferFee(t *testing.T) {
	s := NewSchedule(fixed.Default(), DefaultRate)

	if got := s.TransferFee(ledger.Fiat, dec("200")); !got.Equal(dec("1")) {
		t.Fatalf("fee on 200 = %s, want 1", got)
	}
	if got := s.TransferPlusFee(ledger.Fiat, dec("200")); !got.Equal(dec("201")) {
		t.Fatalf("total on 200 = %s, want 201", got)
	}
}

func TestPerCurrencyOverride(t *testing.T) {
	s := NewSchedule(fixed.Default(), DefaultRate)
	s.SetRate(ledger.Stable, dec("0.01"))

	if got := s.TransferFee(ledger.Stable, dec("100")); !got.Equal(dec("1")) {
		t.Fatalf("stable fee = %s, want 1", got)
	}
	if got := s.TransferFee(ledger.Coin, dec("100")); !got.Equal(dec("0.5")) {
		t.Fatalf("coin fee = %s, want 0.5", got)
	}
}

func TestReceivedQuantityInvertsFee(t *testing.T) {
	s := NewSchedule(fixed.Default(), DefaultRate)

	// Spending q + fee(q) in total should deliver q.
	q := s.ReceivedQuantity(ledger.Fiat, dec("201"))
	if !q.Equal(dec("200")) {
		t.Fatalf("received from 201 = %s, want 200", q)
	}
	if got := s.TransferPlusFee(ledger.Fiat, q); !got.Equal(dec("201")) {
		t.Fatalf("round trip = %s, want 201", got)
	}
}
