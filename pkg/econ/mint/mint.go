// Package mint controls stable issuance: accounts escrow coin as collateral
// and may issue stable against it up to a utilisation ceiling, burning stable
// to free the collateral again.
package mint

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/market"
)

// DefaultUtilisationRatio caps issuance at a quarter of the escrowed
// collateral's stable value.
var DefaultUtilisationRatio = decimal.NewFromFloat(0.25)

// Mint enforces issuance policy on top of the ledger's escrow primitives.
type Mint struct {
	prec        fixed.Precision
	led         *ledger.Ledger
	markets     *market.Manager
	utilisation decimal.Decimal
}

// New creates a mint with the given utilisation ceiling.
func New(prec fixed.Precision, led *ledger.Ledger, markets *market.Manager, utilisation decimal.Decimal) *Mint {
	return &Mint{prec: prec, led: led, markets: markets, utilisation: utilisation}
}

// Escrow locks available coin as issuance collateral.
func (m *Mint) Escrow(id ledger.AccountID, value decimal.Decimal) bool {
	return m.led.Escrow(id, value)
}

// Unescrow frees escrowed coin not locked by outstanding issuance.
func (m *Mint) Unescrow(id ledger.AccountID, value decimal.Decimal) bool {
	if value.IsNegative() || value.Cmp(m.AvailableEscrowed(id)) > 0 {
		return false
	}
	return m.led.Unescrow(id, value)
}

// stableValueOfCoin converts coin to stable through the fiat prices of both.
func (m *Mint) stableValueOfCoin(v decimal.Decimal) decimal.Decimal {
	return m.markets.FiatToStable(m.markets.CoinToFiat(v))
}

// coinValueOfStable converts stable to coin through the fiat prices of both.
func (m *Mint) coinValueOfStable(v decimal.Decimal) decimal.Decimal {
	return m.markets.FiatToCoin(m.markets.StableToFiat(v))
}

// LockedEscrowed returns the escrowed coin backing the account's outstanding
// issuance at current prices. May exceed the total escrowed amount.
func (m *Mint) LockedEscrowed(id ledger.AccountID) decimal.Decimal {
	return m.coinValueOfStable(m.led.Account(id).Issued())
}

// AvailableEscrowed returns the escrowed coin not locked by outstanding
// issuance. May be negative after prices move.
func (m *Mint) AvailableEscrowed(id ledger.AccountID) decimal.Decimal {
	return m.led.Account(id).Escrowed().Sub(m.LockedEscrowed(id))
}

// MaxIssuanceRights returns the total stable the account may have
// outstanding against its escrow at current prices.
func (m *Mint) MaxIssuanceRights(id ledger.AccountID) decimal.Decimal {
	escrowed := m.led.Account(id).Escrowed()
	return m.prec.MulRound(m.stableValueOfCoin(escrowed), m.utilisation)
}

// RemainingIssuanceRights returns the stable the account can still issue.
// May be negative after prices move.
func (m *Mint) RemainingIssuanceRights(id ledger.AccountID) decimal.Decimal {
	return m.MaxIssuanceRights(id).Sub(m.led.Account(id).Issued())
}

// Issue mints stable to the account, bounded by its remaining rights.
func (m *Mint) Issue(id ledger.AccountID, value decimal.Decimal) bool {
	if value.IsNegative() || value.Cmp(m.RemainingIssuanceRights(id)) > 0 {
		return false
	}
	m.led.IssueStable(id, value)
	return true
}

// Burn destroys stable the account holds, reducing its outstanding issuance.
func (m *Mint) Burn(id ledger.AccountID, value decimal.Decimal) bool {
	a := m.led.Account(id)
	if value.IsNegative() ||
		value.Cmp(m.led.Available(id, ledger.Stable)) > 0 ||
		value.Cmp(a.Issued()) > 0 {
		return false
	}
	m.led.BurnStable(id, value)
	return true
}
