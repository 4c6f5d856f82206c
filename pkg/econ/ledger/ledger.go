// Package ledger holds the balance sheet of every market participant.
//
// Books never mutate balances directly: submission reserves funds here,
// cancellation releases them, and settlement moves them through Transfer.
// Fees charged on transfers accrue to a system pool per currency.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
)

// Ledger owns all accounts, the system fee pools, and the aggregate supplies.
type Ledger struct {
	prec fixed.Precision

	accounts []*Account

	pool [numCurrencies]decimal.Decimal

	coinSupply    decimal.Decimal
	stableSupply  decimal.Decimal
	escrowedTotal decimal.Decimal
}

// New creates an empty ledger with the given precision.
func New(prec fixed.Precision) *Ledger {
	return &Ledger{prec: prec}
}

// Precision returns the ledger's fixed decimal precision.
func (l *Ledger) Precision() fixed.Precision { return l.prec }

// CreateAccount registers a new account endowed with the given balances and
// returns its id. Endowments increase the tracked supplies.
func (l *Ledger) CreateAccount(name string, coin, stable, fiat decimal.Decimal) AccountID {
	id := AccountID(len(l.accounts))
	a := &Account{id: id, name: name}
	a.balances[Coin] = l.prec.Round(coin)
	a.balances[Stable] = l.prec.Round(stable)
	a.balances[Fiat] = l.prec.Round(fiat)
	l.accounts = append(l.accounts, a)
	l.coinSupply = l.coinSupply.Add(a.balances[Coin])
	l.stableSupply = l.stableSupply.Add(a.balances[Stable])
	return id
}

// Account resolves an account id. Unknown ids are a programming error.
func (l *Ledger) Account(id AccountID) *Account {
	if int(id) >= len(l.accounts) {
		panic(fmt.Sprintf("ledger: unknown account id %d", id))
	}
	return l.accounts[id]
}

// Accounts returns all registered accounts.
func (l *Ledger) Accounts() []*Account { return l.accounts }

// Balance returns the total holding of c for an account.
func (l *Ledger) Balance(id AccountID, c Currency) decimal.Decimal {
	return l.Account(id).balances[c]
}

// Available returns the balance of c not committed to open orders.
// For coin, escrowed collateral is unavailable as well.
func (l *Ledger) Available(id AccountID, c Currency) decimal.Decimal {
	a := l.Account(id)
	avail := a.balances[c].Sub(a.reserved[c])
	if c == Coin {
		avail = avail.Sub(a.escrowed)
	}
	return l.prec.Round(avail)
}

// Reserve commits amount of c against the account's open orders.
func (l *Ledger) Reserve(id AccountID, c Currency, amount decimal.Decimal) {
	a := l.Account(id)
	a.reserved[c] = a.reserved[c].Add(amount)
}

// Release frees a previously reserved amount. Releasing more than is
// reserved indicates corrupted order bookkeeping and is fatal.
func (l *Ledger) Release(id AccountID, c Currency, amount decimal.Decimal) {
	a := l.Account(id)
	a.reserved[c] = a.reserved[c].Sub(amount)
	if a.reserved[c].IsNegative() {
		panic(fmt.Sprintf("ledger: %s reservation of %s went negative (%s)",
			c, a.name, a.reserved[c]))
	}
}

// CanTransfer reports whether the account could send quantity of c plus fee.
// The test is against the total balance: the caller is expected to free any
// reservation held by the order being settled.
func (l *Ledger) CanTransfer(id AccountID, c Currency, quantity, fee decimal.Decimal) bool {
	total := quantity.Add(fee)
	if total.IsNegative() {
		return false
	}
	return total.Cmp(l.prec.Round(l.Balance(id, c))) <= 0
}

// Transfer moves quantity of c from one account to another, charging fee to
// the sender and accruing it to the system pool. Returns false and leaves all
// balances untouched if the sender cannot cover quantity plus fee.
func (l *Ledger) Transfer(from, to AccountID, c Currency, quantity, fee decimal.Decimal) bool {
	if !l.CanTransfer(from, c, quantity, fee) {
		return false
	}
	sender, recipient := l.Account(from), l.Account(to)
	sender.balances[c] = sender.balances[c].Sub(quantity).Sub(fee)
	recipient.balances[c] = recipient.balances[c].Add(quantity)
	l.pool[c] = l.pool[c].Add(fee)
	return true
}

// Credit grants amount of c to an account, growing the tracked supply.
func (l *Ledger) Credit(id AccountID, c Currency, amount decimal.Decimal) {
	a := l.Account(id)
	a.balances[c] = a.balances[c].Add(amount)
	switch c {
	case Coin:
		l.coinSupply = l.coinSupply.Add(amount)
	case Stable:
		l.stableSupply = l.stableSupply.Add(amount)
	}
}

// Debit removes amount of c from an account, shrinking the tracked supply.
// Returns false and leaves the balance untouched if it would go negative.
func (l *Ledger) Debit(id AccountID, c Currency, amount decimal.Decimal) bool {
	a := l.Account(id)
	if amount.IsNegative() || a.balances[c].Cmp(amount) < 0 {
		return false
	}
	a.balances[c] = a.balances[c].Sub(amount)
	switch c {
	case Coin:
		l.coinSupply = l.coinSupply.Sub(amount)
	case Stable:
		l.stableSupply = l.stableSupply.Sub(amount)
	}
	return true
}

// FeePool returns the accrued fees in c.
func (l *Ledger) FeePool(c Currency) decimal.Decimal { return l.pool[c] }

// DrainFeePool withdraws and returns the entire fee pool for c.
// Used by periodic fee distribution.
func (l *Ledger) DrainFeePool(c Currency) decimal.Decimal {
	out := l.pool[c]
	l.pool[c] = decimal.Zero
	return out
}

// PayFromPool moves amount of c from the fee pool to an account.
// The pool must cover the amount.
func (l *Ledger) PayFromPool(id AccountID, c Currency, amount decimal.Decimal) {
	l.pool[c] = l.pool[c].Sub(amount)
	if l.pool[c].IsNegative() {
		panic(fmt.Sprintf("ledger: %s fee pool went negative (%s)", c, l.pool[c]))
	}
	a := l.Account(id)
	a.balances[c] = a.balances[c].Add(amount)
}

// CoinSupply returns the total coin endowed into the system.
func (l *Ledger) CoinSupply() decimal.Decimal { return l.coinSupply }

// StableSupply returns the outstanding stable supply.
func (l *Ledger) StableSupply() decimal.Decimal { return l.stableSupply }

// EscrowedTotal returns the system-wide escrowed coin.
func (l *Ledger) EscrowedTotal() decimal.Decimal { return l.escrowedTotal }

// Escrow locks amount of the account's available coin as issuance collateral.
func (l *Ledger) Escrow(id AccountID, amount decimal.Decimal) bool {
	if amount.IsNegative() || l.Available(id, Coin).Cmp(amount) < 0 {
		return false
	}
	a := l.Account(id)
	a.escrowed = a.escrowed.Add(amount)
	l.escrowedTotal = l.escrowedTotal.Add(amount)
	return true
}

// Unescrow frees locked coin. The caller enforces issuance policy; the
// ledger only refuses to free more than is locked.
func (l *Ledger) Unescrow(id AccountID, amount decimal.Decimal) bool {
	a := l.Account(id)
	if amount.IsNegative() || amount.Cmp(a.escrowed) > 0 {
		return false
	}
	a.escrowed = a.escrowed.Sub(amount)
	l.escrowedTotal = l.escrowedTotal.Sub(amount)
	return true
}

// IssueStable mints stable to the account and records it against its escrow.
func (l *Ledger) IssueStable(id AccountID, amount decimal.Decimal) {
	a := l.Account(id)
	a.issued = a.issued.Add(amount)
	a.balances[Stable] = a.balances[Stable].Add(amount)
	l.stableSupply = l.stableSupply.Add(amount)
}

// BurnStable destroys stable held by the account and reduces its issuance.
func (l *Ledger) BurnStable(id AccountID, amount decimal.Decimal) {
	a := l.Account(id)
	a.issued = a.issued.Sub(amount)
	a.balances[Stable] = a.balances[Stable].Sub(amount)
	l.stableSupply = l.stableSupply.Sub(amount)
}
