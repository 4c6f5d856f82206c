package agents

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// MarketMaker quotes both sides of the coin/fiat market in timed bets.
// It extrapolates the rolling price gradient, brackets the predicted price
// with a bid below and an ask above, and narrows the margin linearly as
// the bet ages, so its spread vanishes over the bet's life.
type MarketMaker struct {
	*Trader

	// MinimalWait is how long the maker sits out between bets.
	MinimalWait int64
	// BetDuration is how long a bet's quotes are maintained.
	BetDuration int64
	// InitialMargin and EndingMargin bound the quoted half-spread.
	InitialMargin decimal.Decimal
	EndingMargin  decimal.Decimal
	// BetFraction is the share of free funds committed per side.
	BetFraction decimal.Decimal

	betStart  int64
	inBet     bool
	lastPrice decimal.Decimal

	bid *book.Order
	ask *book.Order
}

func NewMarketMaker(t *Trader) *MarketMaker {
	return &MarketMaker{
		Trader:        t,
		MinimalWait:   10,
		BetDuration:   30,
		InitialMargin: decimal.NewFromFloat(0.05),
		EndingMargin:  decimal.NewFromFloat(0.01),
		BetFraction:   decimal.NewFromFloat(0.5),
		// desynchronise makers so they do not all bet on the same ticks
		betStart: int64(t.Rand().Intn(31)) - 20,
	}
}

// Setup endows the maker with fiat and an equal fiat value of coin.
func (mm *MarketMaker) Setup(initialValue decimal.Decimal) {
	led := mm.Markets().Ledger()
	led.Credit(mm.ID(), ledger.Fiat, initialValue)
	led.Credit(mm.ID(), ledger.Coin, mm.Markets().FiatToCoin(initialValue))
	mm.ResetInitialWealth()
}

func (mm *MarketMaker) Step() {
	now := mm.Markets().Tick()
	b := mm.Markets().CoinFiatMarket()
	price := b.Price()

	if !mm.inBet {
		if now-mm.betStart < mm.MinimalWait {
			mm.lastPrice = price
			return
		}
		mm.inBet = true
		mm.betStart = now
	} else if now-mm.betStart >= mm.BetDuration {
		mm.endBet(now)
		mm.lastPrice = price
		return
	}

	gradient := decimal.Zero
	if !mm.lastPrice.IsZero() {
		gradient = price.Sub(mm.lastPrice)
	}
	predicted := price.Add(gradient)
	margin := mm.margin(now)

	mm.requote(b, predicted, margin)
	mm.lastPrice = price
}

func (mm *MarketMaker) endBet(now int64) {
	mm.inBet = false
	mm.betStart = now
	if mm.bid != nil {
		mm.bid.Book().Cancel(mm.bid)
		mm.bid = nil
	}
	if mm.ask != nil {
		mm.ask.Book().Cancel(mm.ask)
		mm.ask = nil
	}
}

// margin interpolates from the initial to the ending half-spread over the
// bet duration.
func (mm *MarketMaker) margin(now int64) decimal.Decimal {
	elapsed := decimal.NewFromInt(now - mm.betStart)
	duration := decimal.NewFromInt(mm.BetDuration)
	span := mm.InitialMargin.Sub(mm.EndingMargin)
	return mm.InitialMargin.Sub(span.Mul(elapsed).Div(duration))
}

func (mm *MarketMaker) requote(b *book.OrderBook, predicted, margin decimal.Decimal) {
	one := decimal.NewFromInt(1)
	bidPrice := predicted.Mul(one.Sub(margin))
	askPrice := predicted.Mul(one.Add(margin))
	if bidPrice.Sign() <= 0 || askPrice.Sign() <= 0 {
		return
	}

	if mm.bid != nil && mm.bid.Active {
		b.Cancel(mm.bid)
	}
	if mm.ask != nil && mm.ask.Active {
		b.Cancel(mm.ask)
	}

	fiat := mm.Available(ledger.Fiat).Mul(mm.BetFraction)
	spend := mm.Markets().Fees().ReceivedQuantity(ledger.Fiat, fiat)
	if qty := mm.prec.DivRound(spend, bidPrice); qty.Sign() > 0 {
		mm.bid = mm.PlaceBid(b, bidPrice, qty)
	}

	coin := mm.Available(ledger.Coin).Mul(mm.BetFraction)
	sell := mm.Markets().Fees().ReceivedQuantity(ledger.Coin, coin)
	if sell.Sign() > 0 {
		mm.ask = mm.PlaceAsk(b, askPrice, sell)
	}
}
