// Package agents implements the market participants that drive the
// simulation: random traders, arbitrageurs, market makers and bankers.
// Each agent owns a ledger account and interacts with the markets only
// through orders, escrow and issuance.
package agents

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/market"
	"github.com/stablesim/stablesim/pkg/econ/mint"
)

// Agent is one market participant stepped by the model each tick.
type Agent interface {
	market.Issuer
	ID() ledger.AccountID
	Name() string
	// Setup endows the agent relative to the model's wealth parameter.
	Setup(initialValue decimal.Decimal)
	Step()
	// Wealth values the agent's portfolio in fiat at rolling prices.
	Wealth() decimal.Decimal
}

// Trader carries the state and order plumbing shared by all agents.
type Trader struct {
	id      ledger.AccountID
	name    string
	markets *market.Manager
	mint    *mint.Mint
	led     *ledger.Ledger
	prec    fixed.Precision
	rng     *rand.Rand

	orders        map[*book.Order]struct{}
	tradeCount    int
	initialWealth decimal.Decimal
}

// NewTrader wires a trader to its account and the model services. The RNG
// is agent-local so runs are reproducible regardless of step interleaving.
func NewTrader(name string, id ledger.AccountID, markets *market.Manager, mnt *mint.Mint, rng *rand.Rand) *Trader {
	return &Trader{
		id:      id,
		name:    name,
		markets: markets,
		mint:    mnt,
		led:     markets.Ledger(),
		prec:    markets.Ledger().Precision(),
		rng:     rng,
		orders:  make(map[*book.Order]struct{}),
	}
}

func (t *Trader) ID() ledger.AccountID { return t.id }
func (t *Trader) Name() string         { return t.name }

// Markets returns the model's market manager.
func (t *Trader) Markets() *market.Manager { return t.markets }

// Mint returns the model's issuance controller.
func (t *Trader) Mint() *mint.Mint { return t.mint }

// Rand returns the agent-local RNG.
func (t *Trader) Rand() *rand.Rand { return t.rng }

// Balance returns the agent's total holding of c.
func (t *Trader) Balance(c ledger.Currency) decimal.Decimal {
	return t.led.Balance(t.id, c)
}

// Available returns the agent's holding of c not committed to orders
// or escrow.
func (t *Trader) Available(c ledger.Currency) decimal.Decimal {
	return t.led.Available(t.id, c)
}

// OrderCancelled implements market.Issuer. Fills that exhaust an order
// arrive here too, since a filled order leaves the book by cancellation.
func (t *Trader) OrderCancelled(o *book.Order) {
	delete(t.orders, o)
}

// TradeSettled implements market.Issuer.
func (t *Trader) TradeSettled(rec *book.TradeRecord) {
	t.tradeCount++
}

// TradeCount returns the number of settlements this agent was party to.
func (t *Trader) TradeCount() int { return t.tradeCount }

// OpenOrders returns the agent's resting orders.
func (t *Trader) OpenOrders() []*book.Order {
	out := make([]*book.Order, 0, len(t.orders))
	for o := range t.orders {
		out = append(out, o)
	}
	return out
}

// OrderCount returns the number of resting orders.
func (t *Trader) OrderCount() int { return len(t.orders) }

// CancelOrders cancels every resting order this agent has.
func (t *Trader) CancelOrders() {
	for o := range t.orders {
		o.Book().Cancel(o)
	}
}

// track remembers a freshly placed order; nil (rejected) is ignored.
func (t *Trader) track(o *book.Order) *book.Order {
	if o != nil && o.Active {
		t.orders[o] = struct{}{}
	}
	return o
}

// PlaceBid submits a bid into the given book on this agent's account.
func (t *Trader) PlaceBid(b *book.OrderBook, price, quantity decimal.Decimal) *book.Order {
	return t.track(b.Bid(price, quantity, t.id))
}

// PlaceAsk submits an ask into the given book on this agent's account.
func (t *Trader) PlaceAsk(b *book.OrderBook, price, quantity decimal.Decimal) *book.Order {
	return t.track(b.Ask(price, quantity, t.id))
}

// SellBase sells a quantity of the book's base currency at the
// depth-weighted price.
func (t *Trader) SellBase(b *book.OrderBook, quantity decimal.Decimal) *book.Order {
	return t.track(b.Sell(quantity, t.id))
}

// SellQuoted spends a quantity of the book's quoted currency buying base
// at the best ask price.
func (t *Trader) SellQuoted(b *book.OrderBook, quantity decimal.Decimal) *book.Order {
	price := b.LowestAskPrice()
	return t.track(b.Bid(price, t.prec.DivRound(quantity, price), t.id))
}

// Fraction returns qty/divisor with a floor of min(minimum, qty).
// Used for depleting reserves gradually.
func (t *Trader) Fraction(qty, divisor, minimum decimal.Decimal) decimal.Decimal {
	part := t.prec.DivRound(qty, divisor)
	floor := decimal.Min(minimum, qty)
	return decimal.Max(part, floor)
}

// Wealth values the agent's portfolio in fiat at rolling prices. Issued
// stable counts as debt; coin debt beyond escrow is ignored.
func (t *Trader) Wealth() decimal.Decimal {
	a := t.led.Account(t.id)
	escrowed := a.Escrowed()
	coin := t.Balance(ledger.Coin).Sub(escrowed)
	if coin.IsNegative() {
		escrowed = t.Balance(ledger.Coin)
		coin = decimal.Zero
	}
	stable := t.Balance(ledger.Stable).Sub(a.Issued())
	return t.prec.Round(t.markets.CoinToFiat(coin.Add(escrowed)).
		Add(t.markets.StableToFiat(stable)).
		Add(t.Balance(ledger.Fiat)))
}

// Setup gives a default endowment of fiat. Concrete agents override this.
func (t *Trader) Setup(initialValue decimal.Decimal) {
	t.led.Credit(t.id, ledger.Fiat, initialValue)
	t.ResetInitialWealth()
}

// ResetInitialWealth rebases profit measurement at the current wealth.
func (t *Trader) ResetInitialWealth() decimal.Decimal {
	t.initialWealth = t.Wealth()
	return t.initialWealth
}

// Profit returns wealth gained since the last rebase.
func (t *Trader) Profit() decimal.Decimal {
	return t.Wealth().Sub(t.initialWealth)
}
