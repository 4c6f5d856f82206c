package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger() (*Ledger, AccountID, AccountID) {
	l := New(fixed.Default())
	alice := l.CreateAccount("alice", dec("100"), dec("50"), dec("1000"))
	bob := l.CreateAccount("bob", dec("0"), dec("0"), dec("0"))
	return l, alice, bob
}

func TestAvailableSubtractsReservations(t *testing.T) {
	l, alice, _ := newTestLedger()

	l.Reserve(alice, Fiat, dec("400"))
	if got := l.Available(alice, Fiat); !got.Equal(dec("600")) {
		t.Fatalf("available fiat = %s, want 600", got)
	}
	l.Release(alice, Fiat, dec("400"))
	if got := l.Available(alice, Fiat); !got.Equal(dec("1000")) {
		t.Fatalf("available fiat after release = %s, want 1000", got)
	}
}

func TestAvailableCoinSubtractsEscrow(t *testing.T) {
	l, alice, _ := newTestLedger()

	if !l.Escrow(alice, dec("60")) {
		t.Fatal("escrow refused")
	}
	if got := l.Available(alice, Coin); !got.Equal(dec("40")) {
		t.Fatalf("available coin = %s, want 40", got)
	}
	// Escrow does not constrain the other currencies.
	if got := l.Available(alice, Fiat); !got.Equal(dec("1000")) {
		t.Fatalf("available fiat = %s, want 1000", got)
	}
	if l.Escrow(alice, dec("41")) {
		t.Fatal("escrow beyond available coin should be refused")
	}
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	l, alice, _ := newTestLedger()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on negative reservation")
		}
	}()
	l.Release(alice, Coin, dec("1"))
}

func TestTransferConservesAndAccruesFee(t *testing.T) {
	l, alice, bob := newTestLedger()

	before := l.Balance(alice, Fiat).Add(l.Balance(bob, Fiat)).Add(l.FeePool(Fiat))
	if !l.Transfer(alice, bob, Fiat, dec("100"), dec("0.5")) {
		t.Fatal("transfer refused")
	}
	if got := l.Balance(alice, Fiat); !got.Equal(dec("899.5")) {
		t.Fatalf("sender balance = %s, want 899.5", got)
	}
	if got := l.Balance(bob, Fiat); !got.Equal(dec("100")) {
		t.Fatalf("recipient balance = %s, want 100", got)
	}
	if got := l.FeePool(Fiat); !got.Equal(dec("0.5")) {
		t.Fatalf("fee pool = %s, want 0.5", got)
	}
	after := l.Balance(alice, Fiat).Add(l.Balance(bob, Fiat)).Add(l.FeePool(Fiat))
	if !before.Equal(after) {
		t.Fatalf("fiat not conserved: %s -> %s", before, after)
	}
}

func TestTransferAgainstTotalBalance(t *testing.T) {
	l, alice, bob := newTestLedger()

	// A reservation does not block settlement; the test is total balance.
	l.Reserve(alice, Fiat, dec("1000"))
	if !l.CanTransfer(alice, Fiat, dec("999"), dec("1")) {
		t.Fatal("transfer within total balance refused")
	}
	if l.CanTransfer(alice, Fiat, dec("999.5"), dec("1")) {
		t.Fatal("transfer beyond total balance allowed")
	}
	if l.Transfer(alice, bob, Fiat, dec("1000"), dec("0.01")) {
		t.Fatal("overdraw allowed")
	}
	if got := l.Balance(alice, Fiat); !got.Equal(dec("1000")) {
		t.Fatalf("failed transfer moved funds: %s", got)
	}
}

func TestIssueAndBurnStable(t *testing.T) {
	l, alice, _ := newTestLedger()

	supply := l.StableSupply()
	l.IssueStable(alice, dec("20"))
	if got := l.Account(alice).Issued(); !got.Equal(dec("20")) {
		t.Fatalf("issued = %s, want 20", got)
	}
	if got := l.StableSupply(); !got.Equal(supply.Add(dec("20"))) {
		t.Fatalf("supply = %s, want %s", got, supply.Add(dec("20")))
	}
	l.BurnStable(alice, dec("20"))
	if got := l.Account(alice).Issued(); !got.IsZero() {
		t.Fatalf("issued after burn = %s, want 0", got)
	}
	if got := l.StableSupply(); !got.Equal(supply) {
		t.Fatalf("supply after burn = %s, want %s", got, supply)
	}
}

func TestCreditAndDebitTrackSupply(t *testing.T) {
	l, alice, _ := newTestLedger()

	supply := l.CoinSupply()
	l.Credit(alice, Coin, dec("10"))
	if got := l.CoinSupply(); !got.Equal(supply.Add(dec("10"))) {
		t.Fatalf("supply after credit = %s, want %s", got, supply.Add(dec("10")))
	}
	if !l.Debit(alice, Coin, dec("110")) {
		t.Fatal("debit of full balance refused")
	}
	if got := l.CoinSupply(); !got.Equal(supply.Sub(dec("100"))) {
		t.Fatalf("supply after debit = %s, want %s", got, supply.Sub(dec("100")))
	}
	if l.Debit(alice, Coin, dec("1")) {
		t.Fatal("debit into negative balance accepted")
	}
}

func TestFeePoolPayout(t *testing.T) {
	l, alice, bob := newTestLedger()
	l.Transfer(alice, bob, Fiat, dec("100"), dec("2"))

	l.PayFromPool(bob, Fiat, dec("2"))
	if got := l.FeePool(Fiat); !got.IsZero() {
		t.Fatalf("pool = %s, want 0", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overdrawn pool")
		}
	}()
	l.PayFromPool(bob, Fiat, dec("1"))
}
