// Package book implements a limit order book with strict price-time priority.
//
// The book holds two ordered collections of orders: bids (highest price
// first) and asks (lowest price first), ties broken oldest-first by a
// book-local logical clock that advances on every mutation. Each price level
// doubles as a depth bucket whose quantity always equals the sum of the
// active orders resting at that price.
//
// Balances live in an external ledger: submission reserves funds, matching
// settles through a pluggable Matcher, and the book never touches balances
// directly. Rejected submissions (insufficient funds, non-positive quantity)
// return nil rather than an error; invariant violations panic.
package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/stats"
)

// Ledger is the balance-sheet surface the book consumes. Reserve and Release
// track order commitments; notifications are fire-and-forget callbacks routed
// to the order's issuer.
type Ledger interface {
	Available(id ledger.AccountID, c ledger.Currency) decimal.Decimal
	Reserve(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal)
	Release(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal)
	NotifyCancelled(id ledger.AccountID, o *Order)
	NotifyTrade(id ledger.AccountID, rec *TradeRecord)
}

// TickSource supplies the model-wide tick used for trade completion times
// and rolling statistics. Distinct from the book's own mutation clock.
type TickSource interface {
	Tick() int64
}

// Matcher settles the current best bid/ask pair, returning the resulting
// trade or nil if no transfer took place. A matcher that fails a side must
// cancel that order so the matching loop can make progress.
type Matcher func(b *OrderBook, bid, ask *Order) *TradeRecord

// FeeFunc computes a fee (or a net received amount) from a notional value.
type FeeFunc func(decimal.Decimal) decimal.Decimal

// Config wires one currency pair's book.
type Config struct {
	Base, Quote ledger.Currency

	Matcher Matcher

	// Fee on the quoted notional paid by buyers, and on the base quantity
	// paid by sellers.
	QuotedFee, BaseFee FeeFunc
	// Net amounts received after fees, used for depth planning by callers.
	QuotedReceived, BaseReceived FeeFunc

	// MatchOnOrder runs the matching loop after every submission; otherwise
	// the caller batches matching once per tick.
	MatchOnOrder bool

	Precision fixed.Precision
	Stats     stats.Config
}

// OrderBook is the order matching and settlement engine for one pair.
type OrderBook struct {
	base, quote ledger.Currency
	prec        fixed.Precision

	led   Ledger
	ticks TickSource

	matcher                      Matcher
	quotedFee, baseFee           FeeFunc
	quotedReceived, baseReceived FeeFunc
	matchOnOrder                 bool

	bids *levelTree
	asks *levelTree

	time   int64
	nextID OrderID

	history []*TradeRecord
	series  *stats.Series
}

// New creates an empty book for cfg.Base priced in cfg.Quote.
func New(cfg Config, led Ledger, ticks TickSource) *OrderBook {
	return &OrderBook{
		base:           cfg.Base,
		quote:          cfg.Quote,
		prec:           cfg.Precision,
		led:            led,
		ticks:          ticks,
		matcher:        cfg.Matcher,
		quotedFee:      cfg.QuotedFee,
		baseFee:        cfg.BaseFee,
		quotedReceived: cfg.QuotedReceived,
		baseReceived:   cfg.BaseReceived,
		matchOnOrder:   cfg.MatchOnOrder,
		bids:           newLevelTree(true),
		asks:           newLevelTree(false),
		series:         stats.New(cfg.Stats),
	}
}

// Name returns the pair label, e.g. "coin/fiat".
func (b *OrderBook) Name() string { return fmt.Sprintf("%s/%s", b.base, b.quote) }

// Base returns the currency being traded.
func (b *OrderBook) Base() ledger.Currency { return b.base }

// Quote returns the currency prices are denominated in.
func (b *OrderBook) Quote() ledger.Currency { return b.quote }

// Time returns the book's logical mutation clock.
func (b *OrderBook) Time() int64 { return b.time }

// every mutation advances time, totally ordering events for tie-breaking
func (b *OrderBook) step() { b.time++ }

// Series exposes the book's derived statistics.
func (b *OrderBook) Series() *stats.Series { return b.series }

// History returns the append-only trade log.
func (b *OrderBook) History() []*TradeRecord { return b.history }

// Price returns the rolling average price, recomputed at most once per tick.
func (b *OrderBook) Price() decimal.Decimal {
	return b.series.Price(b.ticks.Tick())
}

// BuyerFee is the fee paid on the quoted end for a bid of the given size.
func (b *OrderBook) BuyerFee(price, quantity decimal.Decimal) decimal.Decimal {
	return b.quotedFee(b.prec.MulRound(price, quantity))
}

// SellerFee is the fee paid on the base end for an ask of the given size.
func (b *OrderBook) SellerFee(price, quantity decimal.Decimal) decimal.Decimal {
	return b.baseFee(quantity)
}

// SellerReceivedQuantity is the quoted currency a seller nets after fees.
func (b *OrderBook) SellerReceivedQuantity(price, quantity decimal.Decimal) decimal.Decimal {
	return b.quotedReceived(b.prec.MulRound(price, quantity))
}

// BuyerReceivedQuantity is the base currency a buyer nets after fees.
func (b *OrderBook) BuyerReceivedQuantity(price, quantity decimal.Decimal) decimal.Decimal {
	return b.baseReceived(quantity)
}

// Bid submits a buy order. Returns nil without error when the quantity is
// not positive or the issuer's available quote balance cannot cover the
// rounded notional plus fee.
func (b *OrderBook) Bid(price, quantity decimal.Decimal, issuer ledger.AccountID) *Order {
	price = b.prec.Round(price)
	quantity = b.prec.Round(quantity)
	if quantity.Sign() <= 0 {
		return nil
	}
	fee := b.BuyerFee(price, quantity)
	cost := b.prec.MulRound(price, quantity).Add(fee)
	if b.led.Available(issuer, b.quote).Cmp(cost) < 0 {
		return nil
	}

	o := b.newOrder(Bid, price, quantity, fee, issuer)
	b.led.Reserve(issuer, b.quote, cost)
	b.bids.insert(b.prec.Key(price), o)
	b.step()

	if b.matchOnOrder {
		b.Match()
	}
	return o
}

// Ask submits a sell order. Returns nil without error when the quantity is
// not positive or the issuer's available base balance cannot cover the
// quantity plus fee.
func (b *OrderBook) Ask(price, quantity decimal.Decimal, issuer ledger.AccountID) *Order {
	price = b.prec.Round(price)
	quantity = b.prec.Round(quantity)
	if quantity.Sign() <= 0 {
		return nil
	}
	fee := b.SellerFee(price, quantity)
	cost := quantity.Add(fee)
	if b.led.Available(issuer, b.base).Cmp(cost) < 0 {
		return nil
	}

	o := b.newOrder(Ask, price, quantity, fee, issuer)
	b.led.Reserve(issuer, b.base, cost)
	b.asks.insert(b.prec.Key(price), o)
	b.step()

	if b.matchOnOrder {
		b.Match()
	}
	return o
}

// Buy bids for a quantity at the current depth-weighted execution price.
func (b *OrderBook) Buy(quantity decimal.Decimal, issuer ledger.AccountID) *Order {
	return b.Bid(b.PriceToBuy(quantity), quantity, issuer)
}

// Sell asks for a quantity at the current depth-weighted execution price.
func (b *OrderBook) Sell(quantity decimal.Decimal, issuer ledger.AccountID) *Order {
	return b.Ask(b.PriceToSell(quantity), quantity, issuer)
}

func (b *OrderBook) newOrder(side Side, price, quantity, fee decimal.Decimal, issuer ledger.AccountID) *Order {
	o := &Order{
		ID:       b.nextID,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Fee:      fee,
		Time:     b.time,
		Issuer:   issuer,
		Active:   true,
		book:     b,
	}
	b.nextID++
	return o
}

// Cancel removes an order, releasing its reservation and notifying the
// issuer. Cancelling an inactive order is a no-op; inactive is terminal.
func (b *OrderBook) Cancel(o *Order) {
	if o == nil || !o.Active {
		return
	}
	b.releaseReservation(o)
	b.sideTree(o.Side).remove(b.prec.Key(o.Price), o)
	o.Active = false
	b.step()
	b.led.NotifyCancelled(o.Issuer, o)
}

// UpdatePrice reprices an order, recomputing its fee. A price change resets
// the order's time priority; an unchanged price is a no-op.
func (b *OrderBook) UpdatePrice(o *Order, price decimal.Decimal) {
	b.update(o, price, orZero(o).Quantity, decimal.Zero, false)
}

// UpdateQuantity resizes an order, recomputing its fee. Priority is
// preserved. A non-positive quantity cancels the order.
func (b *OrderBook) UpdateQuantity(o *Order, quantity decimal.Decimal) {
	b.update(o, orZero(o).Price, quantity, decimal.Zero, false)
}

// Fill shrinks an order by a matched quantity, charging the prorated fee.
// An order whose remaining quantity reaches zero is cancelled. Priority is
// preserved for partial fills.
func (b *OrderBook) Fill(o *Order, matchQty, feeCharged decimal.Decimal) {
	if o == nil || !o.Active {
		return
	}
	b.update(o, o.Price, o.Quantity.Sub(matchQty), o.Fee.Sub(feeCharged), true)
}

func orZero(o *Order) *Order {
	if o == nil {
		return &Order{}
	}
	return o
}

func (b *OrderBook) update(o *Order, newPrice, newQty, newFee decimal.Decimal, haveFee bool) {
	if o == nil || !o.Active {
		return
	}
	newPrice = b.prec.Round(newPrice)
	newQty = b.prec.Round(newQty)
	if haveFee {
		newFee = b.prec.Round(newFee)
	}

	if o.Price.Equal(newPrice) && o.Quantity.Equal(newQty) {
		if !haveFee || newFee.Equal(o.Fee) {
			return
		}
		panic(fmt.Sprintf("book: fee changed while price and quantity unchanged: %s", o))
	}

	if newQty.Sign() <= 0 {
		b.Cancel(o)
		return
	}

	if !haveFee {
		if o.Side == Bid {
			newFee = b.BuyerFee(newPrice, newQty)
		} else {
			newFee = b.SellerFee(newPrice, newQty)
		}
	}

	b.releaseReservation(o)

	oldKey := b.prec.Key(o.Price)
	newKey := b.prec.Key(newPrice)
	tree := b.sideTree(o.Side)
	if oldKey == newKey {
		// Same price: adjust the bucket and mutate in place. The order keeps
		// its position and timestamp, so partial fills preserve priority.
		delta := newQty.Sub(o.Quantity)
		o.level.Quantity = o.level.Quantity.Add(delta)
		if o.level.Quantity.IsNegative() {
			panic("book: price bucket went negative")
		}
		o.Quantity = newQty
		o.Fee = newFee
	} else {
		// Price change: reinsert under the new price. The order is stamped
		// with the current time, forfeiting its queue position.
		tree.remove(oldKey, o)
		o.Price = newPrice
		o.Quantity = newQty
		o.Fee = newFee
		o.Time = b.time
		tree.insert(newKey, o)
	}

	b.reserveFor(o)
	b.step()
}

func (b *OrderBook) sideTree(s Side) *levelTree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) reservation(o *Order) (ledger.Currency, decimal.Decimal) {
	if o.Side == Bid {
		return b.quote, b.prec.MulRound(o.Price, o.Quantity).Add(o.Fee)
	}
	return b.base, o.Quantity.Add(o.Fee)
}

func (b *OrderBook) reserveFor(o *Order) {
	c, amt := b.reservation(o)
	b.led.Reserve(o.Issuer, c, amt)
}

func (b *OrderBook) releaseReservation(o *Order) {
	c, amt := b.reservation(o)
	b.led.Release(o.Issuer, c, amt)
}

// Match repeatedly settles the best bid against the best ask while the book
// is crossed. The matcher must remove at least one of the pair (by filling
// or cancelling) each iteration; a repeat of the same unchanged pair means
// fee or quantity bookkeeping is broken and is fatal.
func (b *OrderBook) Match() {
	var prevBid, prevAsk *Order
	for b.bids.Orders() > 0 && b.asks.Orders() > 0 {
		bid, ask := b.bids.front(), b.asks.front()
		if bid.Price.Cmp(ask.Price) < 0 {
			break
		}
		if bid == prevBid && ask == prevAsk {
			panic(fmt.Sprintf("book %s: crossed book made no matching progress (bid %s, ask %s)",
				b.Name(), bid, ask))
		}
		prevBid, prevAsk = bid, ask

		if rec := b.matcher(b, bid, ask); rec != nil {
			b.recordTrade(rec)
		}
	}
}

// MatchOnce settles a single top-of-book pair, for stepwise inspection.
// Returns nil when the book is one-sided or the match did not trade.
func (b *OrderBook) MatchOnce() *TradeRecord {
	if b.bids.Orders() == 0 || b.asks.Orders() == 0 {
		return nil
	}
	rec := b.matcher(b, b.bids.front(), b.asks.front())
	if rec != nil {
		b.recordTrade(rec)
	}
	return rec
}

func (b *OrderBook) recordTrade(rec *TradeRecord) {
	b.history = append(b.history, rec)
	b.series.RecordTrade(rec.Price, rec.Quantity, rec.CompletionTime)
	b.led.NotifyTrade(rec.Buyer, rec)
	b.led.NotifyTrade(rec.Seller, rec)
}

// StepHistory closes the current tick's candle, volume and price entries.
// Called exactly once per tick by the model stepper.
func (b *OrderBook) StepHistory() {
	b.series.StepTick(b.ticks.Tick())
}

// HighestBidPrice returns the best buy price, falling back to the rolling
// price when there are no bids. Never zero.
func (b *OrderBook) HighestBidPrice() decimal.Decimal {
	if o := b.bids.front(); o != nil {
		return o.Price
	}
	return b.Price()
}

// LowestAskPrice returns the best sell price, falling back to the rolling
// price when there are no asks. Never zero.
func (b *OrderBook) LowestAskPrice() decimal.Decimal {
	if o := b.asks.front(); o != nil {
		return o.Price
	}
	return b.Price()
}

// Spread returns the gap between the best ask and best bid prices.
func (b *OrderBook) Spread() decimal.Decimal {
	return b.LowestAskPrice().Sub(b.HighestBidPrice())
}

// HighestBidQuantity returns the base quantity demanded at the best bid.
func (b *OrderBook) HighestBidQuantity() decimal.Decimal {
	if o := b.bids.front(); o != nil {
		return o.level.Quantity
	}
	return decimal.Zero
}

// LowestAskQuantity returns the base quantity supplied at the best ask.
func (b *OrderBook) LowestAskQuantity() decimal.Decimal {
	if o := b.asks.front(); o != nil {
		return o.level.Quantity
	}
	return decimal.Zero
}

// PriceToBuy returns the ask price needed to buy the given quantity,
// walking the ask buckets in priority order. An instantaneous metric;
// falls back to the rolling price when the ask side is empty.
func (b *OrderBook) PriceToBuy(quantity decimal.Decimal) decimal.Decimal {
	price := b.Price()
	cumulative := decimal.Zero
	b.asks.eachLevel(func(pl *priceLevel) bool {
		price = pl.Price
		cumulative = cumulative.Add(pl.Quantity)
		return cumulative.Cmp(quantity) < 0
	})
	return price
}

// PriceToSell returns the bid price needed to sell the given quantity,
// walking the bid buckets in priority order. Falls back to the rolling
// price when the bid side is empty.
func (b *OrderBook) PriceToSell(quantity decimal.Decimal) decimal.Decimal {
	price := b.Price()
	cumulative := decimal.Zero
	b.bids.eachLevel(func(pl *priceLevel) bool {
		price = pl.Price
		cumulative = cumulative.Add(pl.Quantity)
		return cumulative.Cmp(quantity) < 0
	})
	return price
}

// BidsNotLower returns the bids priced at or above the given price,
// in priority order.
func (b *OrderBook) BidsNotLower(price decimal.Decimal) []*Order {
	var out []*Order
	b.bids.eachOrder(func(o *Order) bool {
		if o.Price.Cmp(price) < 0 {
			return false
		}
		out = append(out, o)
		return true
	})
	return out
}

// AsksNotHigher returns the asks priced at or below the given price,
// in priority order.
func (b *OrderBook) AsksNotHigher(price decimal.Decimal) []*Order {
	var out []*Order
	b.asks.eachOrder(func(o *Order) bool {
		if o.Price.Cmp(price) > 0 {
			return false
		}
		out = append(out, o)
		return true
	})
	return out
}

// AsksNotHigherBaseQuantity returns the base quantity obtainable by lifting
// asks at or below price, optionally bounded by a quoted-currency budget.
// A nil budget is unbounded.
func (b *OrderBook) AsksNotHigherBaseQuantity(price decimal.Decimal, quotedCapital *decimal.Decimal) decimal.Decimal {
	bought := decimal.Zero
	sold := decimal.Zero
	for _, ask := range b.AsksNotHigher(price) {
		nextSold := b.prec.MulRound(ask.Price, ask.Quantity)
		if quotedCapital != nil && sold.Add(nextSold).Cmp(*quotedCapital) > 0 {
			bought = bought.Add(b.prec.Round(ask.Quantity.Mul(quotedCapital.Sub(sold)).Div(nextSold)))
			break
		}
		sold = sold.Add(nextSold)
		bought = bought.Add(ask.Quantity)
	}
	return bought
}

// BidsNotLowerQuotedQuantity returns the quoted quantity obtainable by
// hitting bids at or above price, optionally bounded by a base-currency
// budget. A nil budget is unbounded.
func (b *OrderBook) BidsNotLowerQuotedQuantity(price decimal.Decimal, baseCapital *decimal.Decimal) decimal.Decimal {
	bought := decimal.Zero
	sold := decimal.Zero
	for _, bid := range b.BidsNotLower(price) {
		if baseCapital != nil && sold.Add(bid.Quantity).Cmp(*baseCapital) > 0 {
			bought = bought.Add(b.prec.MulRound(baseCapital.Sub(sold), bid.Price))
			break
		}
		sold = sold.Add(bid.Quantity)
		bought = bought.Add(b.prec.MulRound(bid.Price, bid.Quantity))
	}
	return bought
}

// Level is a (price, aggregate quantity) depth snapshot entry.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BidLevels returns the bid depth, best (highest) price first.
func (b *OrderBook) BidLevels() []Level {
	out := make([]Level, 0, b.bids.Levels())
	b.bids.eachLevel(func(pl *priceLevel) bool {
		out = append(out, Level{Price: pl.Price, Quantity: pl.Quantity})
		return true
	})
	return out
}

// AskLevels returns the ask depth, best (lowest) price first.
func (b *OrderBook) AskLevels() []Level {
	out := make([]Level, 0, b.asks.Levels())
	b.asks.eachLevel(func(pl *priceLevel) bool {
		out = append(out, Level{Price: pl.Price, Quantity: pl.Quantity})
		return true
	})
	return out
}

// EachBid visits resting bids in priority order.
func (b *OrderBook) EachBid(fn func(*Order) bool) { b.bids.eachOrder(fn) }

// EachAsk visits resting asks in priority order.
func (b *OrderBook) EachAsk(fn func(*Order) bool) { b.asks.eachOrder(fn) }

// BidCount returns the number of resting bids.
func (b *OrderBook) BidCount() int { return b.bids.Orders() }

// AskCount returns the number of resting asks.
func (b *OrderBook) AskCount() int { return b.asks.Orders() }

// CheckConsistency verifies the bucket invariant: every level's quantity
// equals the sum of its resting orders' quantities, all of them active and
// positive, with levels strictly ordered by price.
func (b *OrderBook) CheckConsistency() error {
	for _, side := range []*levelTree{b.bids, b.asks} {
		var err error
		side.eachLevel(func(pl *priceLevel) bool {
			sum := decimal.Zero
			for o := pl.head; o != nil; o = o.next {
				if !o.Active {
					err = fmt.Errorf("book %s: inactive order in tree: %s", b.Name(), o)
					return false
				}
				if o.Quantity.Sign() <= 0 {
					err = fmt.Errorf("book %s: non-positive resting quantity: %s", b.Name(), o)
					return false
				}
				sum = sum.Add(o.Quantity)
			}
			if !sum.Equal(pl.Quantity) {
				err = fmt.Errorf("book %s: bucket %s holds %s, orders sum to %s",
					b.Name(), pl.Price, pl.Quantity, sum)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
