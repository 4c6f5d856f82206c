package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountID is an arena index into the ledger's account table.
type AccountID uint32

// Account tracks one participant's holdings. Per-currency amounts are held in
// enum-indexed arrays; reserved amounts are commitments to open orders and are
// released when the order is cancelled or filled.
type Account struct {
	id   AccountID
	name string

	balances [numCurrencies]decimal.Decimal
	reserved [numCurrencies]decimal.Decimal

	// Coin escrowed against stable issuance, and the stable issued against it.
	escrowed decimal.Decimal
	issued   decimal.Decimal
}

// ID returns the account's arena index.
func (a *Account) ID() AccountID { return a.id }

// Name returns the human-readable account label.
func (a *Account) Name() string { return a.name }

// Balance returns the total holding of c, including reserved amounts.
func (a *Account) Balance(c Currency) decimal.Decimal { return a.balances[c] }

// Reserved returns the amount of c committed to open orders.
func (a *Account) Reserved(c Currency) decimal.Decimal { return a.reserved[c] }

// Escrowed returns the coin locked as issuance collateral.
func (a *Account) Escrowed() decimal.Decimal { return a.escrowed }

// Issued returns the stable issued against this account's escrow.
func (a *Account) Issued() decimal.Decimal { return a.issued }

// Validate checks account invariants.
func (a *Account) Validate() error {
	for _, c := range Currencies() {
		if a.balances[c].IsNegative() {
			return fmt.Errorf("account %s: negative %s balance: %s", a.name, c, a.balances[c])
		}
		if a.reserved[c].IsNegative() {
			return fmt.Errorf("account %s: negative %s reservation: %s", a.name, c, a.reserved[c])
		}
	}
	if a.escrowed.IsNegative() {
		return fmt.Errorf("account %s: negative escrow: %s", a.name, a.escrowed)
	}
	if a.issued.IsNegative() {
		return fmt.Errorf("account %s: negative issuance: %s", a.name, a.issued)
	}
	return nil
}

func (a *Account) String() string {
	return fmt.Sprintf("%s [coin=%s stable=%s fiat=%s]",
		a.name, a.balances[Coin], a.balances[Stable], a.balances[Fiat])
}
