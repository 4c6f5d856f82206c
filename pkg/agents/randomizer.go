package agents

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

var (
	three = decimal.NewFromInt(3)
	ten   = decimal.NewFromInt(10)
)

// Randomizer places random bids and asks near the going rates, providing
// baseline liquidity and noise.
type Randomizer struct {
	*Trader

	// Orders land within (+/-)variance of the rolling price.
	Variance decimal.Decimal
	// Orders older than this many book events are cancelled.
	OrderLifetime int64
	// No more than this many orders rest at once.
	MaxOrders int
}

// NewRandomizer uses the original tuning: 2% variance, 30-event lifetime,
// at most 10 resting orders.
func NewRandomizer(t *Trader) *Randomizer {
	return &Randomizer{
		Trader:        t,
		Variance:      decimal.NewFromFloat(0.02),
		OrderLifetime: 30,
		MaxOrders:     10,
	}
}

// Setup endows the randomizer with fiat and three times its value in coin.
func (r *Randomizer) Setup(initialValue decimal.Decimal) {
	led := r.Markets().Ledger()
	led.Credit(r.ID(), ledger.Fiat, initialValue)
	led.Credit(r.ID(), ledger.Coin, r.Markets().FiatToCoin(three.Mul(initialValue)))
	r.ResetInitialWealth()
}

func (r *Randomizer) Step() {
	for _, o := range r.OpenOrders() {
		if o.Book().Time() > o.Time+r.OrderLifetime {
			o.Book().Cancel(o)
		}
	}
	if r.OrderCount() >= r.MaxOrders {
		return
	}

	switch r.Rand().Intn(6) {
	case 0:
		r.bid(r.Markets().CoinFiatMarket(), ledger.Fiat)
	case 1:
		r.ask(r.Markets().CoinFiatMarket(), ledger.Coin)
	case 2:
		r.bid(r.Markets().StableFiatMarket(), ledger.Fiat)
	case 3:
		r.ask(r.Markets().StableFiatMarket(), ledger.Stable)
	case 4:
		r.bid(r.Markets().CoinStableMarket(), ledger.Stable)
	case 5:
		r.ask(r.Markets().CoinStableMarket(), ledger.Coin)
	}
}

// jitter perturbs a price by up to +/-variance of itself.
func (r *Randomizer) jitter(price decimal.Decimal) decimal.Decimal {
	u := decimal.NewFromFloat(2*r.Rand().Float64() - 1)
	return price.Add(price.Mul(u).Mul(r.Variance))
}

func (r *Randomizer) bid(b *book.OrderBook, spend ledger.Currency) {
	price := r.jitter(b.Price())
	if price.Sign() <= 0 {
		return
	}
	budget := r.Fraction(r.Available(spend), ten, decimal.NewFromInt(1))
	r.PlaceBid(b, price, r.prec.DivRound(budget, price))
}

func (r *Randomizer) ask(b *book.OrderBook, spend ledger.Currency) {
	price := r.jitter(b.Price())
	if price.Sign() <= 0 {
		return
	}
	r.PlaceAsk(b, price, r.Fraction(r.Available(spend), ten, decimal.NewFromInt(1)))
}
