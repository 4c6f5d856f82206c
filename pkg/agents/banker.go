package agents

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// Banker accumulates coin, escrows it, and issues stable against it in
// order to collect a share of distributed fees.
type Banker struct {
	*Trader

	// rate is the fraction of free fiat converted to coin each step.
	rate decimal.Decimal

	fiatCoinOrder   *book.Order
	stableFiatOrder *book.Order
}

func NewBanker(t *Trader) *Banker {
	return &Banker{
		Trader: t,
		rate:   decimal.NewFromFloat(t.Rand().Float64() * 0.05),
	}
}

// Setup endows the banker with fiat only; coin is acquired on-market.
func (b *Banker) Setup(initialValue decimal.Decimal) {
	b.Markets().Ledger().Credit(b.ID(), ledger.Fiat, initialValue)
	b.ResetInitialWealth()
}

func (b *Banker) Step() {
	m := b.Markets()

	if fiat := b.Available(ledger.Fiat); fiat.Sign() > 0 {
		if b.fiatCoinOrder != nil && b.fiatCoinOrder.Active {
			b.fiatCoinOrder.Book().Cancel(b.fiatCoinOrder)
		}
		spend := m.Fees().ReceivedQuantity(ledger.Fiat, fiat.Mul(b.rate))
		b.fiatCoinOrder = b.SellQuoted(m.CoinFiatMarket(), spend)
	}

	// Issued stable is sold for fiat to fund the next round of coin buying.
	if stable := b.Available(ledger.Stable); stable.Sign() > 0 {
		if b.stableFiatOrder != nil && b.stableFiatOrder.Active {
			b.stableFiatOrder.Book().Cancel(b.stableFiatOrder)
		}
		sell := m.Fees().ReceivedQuantity(ledger.Stable, stable)
		b.stableFiatOrder = b.SellBase(m.StableFiatMarket(), sell)
	}

	if coin := b.Available(ledger.Coin); coin.Sign() > 0 {
		b.Mint().Escrow(b.ID(), coin)
	}

	if issuable := b.Mint().RemainingIssuanceRights(b.ID()); issuable.Sign() > 0 {
		b.Mint().Issue(b.ID(), issuable)
	}
}
