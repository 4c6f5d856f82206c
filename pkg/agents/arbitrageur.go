package agents

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// Arbitrageur hunts for profitable cycles across the three markets and
// trades them, pulling the cross rates back into line.
//
// The only cycles are coin -> fiat -> stable -> coin, its rotations and
// their reverses, so it is enough to test the two directions at the
// current best prices, fees included.
type Arbitrageur struct {
	*Trader

	// MinimalGain is the multiple a cycle must beat to be worth trading.
	MinimalGain decimal.Decimal
}

func NewArbitrageur(t *Trader) *Arbitrageur {
	return &Arbitrageur{Trader: t, MinimalGain: decimal.NewFromInt(1)}
}

// Setup endows the arbitrageur equally in all three currencies.
func (a *Arbitrageur) Setup(initialValue decimal.Decimal) {
	led := a.Markets().Ledger()
	led.Credit(a.ID(), ledger.Fiat, initialValue)
	led.Credit(a.ID(), ledger.Coin, a.Markets().FiatToCoin(initialValue))
	led.Credit(a.ID(), ledger.Stable, a.Markets().FiatToStable(initialValue))
	a.ResetInitialWealth()
}

func (a *Arbitrageur) Step() {
	forward := a.forwardMultiple()
	reverse := a.reverseMultiple()
	switch {
	case forward.Cmp(a.MinimalGain) > 0:
		a.tradeForward()
	case reverse.Cmp(a.MinimalGain) > 0:
		a.tradeReverse()
	}
}

// cycleFeeRate compounds the three transfer fee rates; dividing a cycle's
// raw multiple by it gives the net gain after one traversal.
func (a *Arbitrageur) cycleFeeRate() decimal.Decimal {
	one := decimal.NewFromInt(1)
	f := a.Markets().Fees()
	return one.Add(f.Rate(ledger.Coin)).
		Mul(one.Add(f.Rate(ledger.Stable))).
		Mul(one.Add(f.Rate(ledger.Fiat)))
}

// forwardMultiple is the gain of coin -> fiat -> stable -> coin.
func (a *Arbitrageur) forwardMultiple() decimal.Decimal {
	m := a.Markets()
	// Sell coin at the coin/fiat bid, buy stable at the stable/fiat ask,
	// buy coin at the coin/stable ask.
	denom := m.StableFiatMarket().LowestAskPrice().Mul(m.CoinStableMarket().LowestAskPrice())
	if denom.Sign() <= 0 {
		return decimal.Zero
	}
	raw := m.CoinFiatMarket().HighestBidPrice().Div(denom)
	return raw.Div(a.cycleFeeRate())
}

// reverseMultiple is the gain of coin -> stable -> fiat -> coin.
func (a *Arbitrageur) reverseMultiple() decimal.Decimal {
	m := a.Markets()
	ask := m.CoinFiatMarket().LowestAskPrice()
	if ask.Sign() <= 0 {
		return decimal.Zero
	}
	raw := m.CoinStableMarket().HighestBidPrice().
		Mul(m.StableFiatMarket().HighestBidPrice()).
		Div(ask)
	return raw.Div(a.cycleFeeRate())
}

func (a *Arbitrageur) tradeForward() {
	m := a.Markets()
	coin := decimal.Min(a.Available(ledger.Coin),
		m.CoinFiatMarket().HighestBidQuantity())
	if coin.Sign() > 0 {
		a.SellBase(m.CoinFiatMarket(), coin)
	}

	stableDepth := m.StableFiatMarket().LowestAskQuantity()
	fiatForStable := m.StableFiatMarket().LowestAskPrice().Mul(stableDepth)
	fiat := decimal.Min(a.Available(ledger.Fiat), fiatForStable)
	if fiat.Sign() > 0 {
		a.SellQuoted(m.StableFiatMarket(), fiat)
	}

	coinDepth := m.CoinStableMarket().LowestAskQuantity()
	stableForCoin := m.CoinStableMarket().LowestAskPrice().Mul(coinDepth)
	stable := decimal.Min(a.Available(ledger.Stable), stableForCoin)
	if stable.Sign() > 0 {
		a.SellQuoted(m.CoinStableMarket(), stable)
	}
}

func (a *Arbitrageur) tradeReverse() {
	m := a.Markets()
	coin := decimal.Min(a.Available(ledger.Coin),
		m.CoinStableMarket().HighestBidQuantity())
	if coin.Sign() > 0 {
		a.SellBase(m.CoinStableMarket(), coin)
	}

	stable := decimal.Min(a.Available(ledger.Stable),
		m.StableFiatMarket().HighestBidQuantity())
	if stable.Sign() > 0 {
		a.SellBase(m.StableFiatMarket(), stable)
	}

	coinDepth := m.CoinFiatMarket().LowestAskQuantity()
	fiatForCoin := m.CoinFiatMarket().LowestAskPrice().Mul(coinDepth)
	fiat := decimal.Min(a.Available(ledger.Fiat), fiatForCoin)
	if fiat.Sign() > 0 {
		a.SellQuoted(m.CoinFiatMarket(), fiat)
	}
}
