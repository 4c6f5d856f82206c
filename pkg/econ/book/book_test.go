package book_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/stats"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeTicks struct{ t int64 }

func (f *fakeTicks) Tick() int64 { return f.t }

// fakeLedger tracks balances and reservations without settlement.
type fakeLedger struct {
	balances  map[ledger.AccountID]map[ledger.Currency]decimal.Decimal
	reserved  map[ledger.AccountID]map[ledger.Currency]decimal.Decimal
	cancelled []*book.Order
	trades    []*book.TradeRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[ledger.AccountID]map[ledger.Currency]decimal.Decimal),
		reserved: make(map[ledger.AccountID]map[ledger.Currency]decimal.Decimal),
	}
}

func (f *fakeLedger) fund(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal) {
	if f.balances[id] == nil {
		f.balances[id] = make(map[ledger.Currency]decimal.Decimal)
		f.reserved[id] = make(map[ledger.Currency]decimal.Decimal)
	}
	f.balances[id][c] = f.balances[id][c].Add(amount)
}

func (f *fakeLedger) Available(id ledger.AccountID, c ledger.Currency) decimal.Decimal {
	return f.balances[id][c].Sub(f.reserved[id][c])
}

func (f *fakeLedger) Reserve(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal) {
	f.reserved[id][c] = f.reserved[id][c].Add(amount)
}

func (f *fakeLedger) Release(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal) {
	f.reserved[id][c] = f.reserved[id][c].Sub(amount)
	if f.reserved[id][c].IsNegative() {
		panic("fake ledger: negative reservation")
	}
}

func (f *fakeLedger) NotifyCancelled(id ledger.AccountID, o *book.Order) {
	f.cancelled = append(f.cancelled, o)
}

func (f *fakeLedger) NotifyTrade(id ledger.AccountID, rec *book.TradeRecord) {
	f.trades = append(f.trades, rec)
}

// fillMatcher settles at the earlier order's price with prorated fees,
// without moving balances.
func fillMatcher(prec fixed.Precision, ticks *fakeTicks) book.Matcher {
	return func(b *book.OrderBook, bid, ask *book.Order) *book.TradeRecord {
		price := bid.Price
		if ask.Time < bid.Time {
			price = ask.Price
		}
		qty := prec.Round(decimal.Min(ask.Quantity, bid.Quantity))
		askFee := prec.Round(ask.Fee.Mul(qty).Div(ask.Quantity))
		bidFee := prec.Round(bid.Fee.Mul(qty).Div(bid.Quantity))
		rec := &book.TradeRecord{
			Buyer: bid.Issuer, Seller: ask.Issuer, Pair: b.Name(),
			Price: price, Quantity: qty, BuyerFee: bidFee, SellerFee: askFee,
			CompletionTime: ticks.Tick(),
		}
		b.Fill(ask, qty, askFee)
		b.Fill(bid, qty, bidFee)
		return rec
	}
}

func feeRate(rate string) book.FeeFunc {
	r := dec(rate)
	return func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(r).Round(8)
	}
}

func newTestBook(led *fakeLedger, ticks *fakeTicks, matchOnOrder bool) *book.OrderBook {
	prec := fixed.Default()
	return book.New(book.Config{
		Base:           ledger.Coin,
		Quote:          ledger.Fiat,
		Matcher:        fillMatcher(prec, ticks),
		QuotedFee:      feeRate("0.005"),
		BaseFee:        feeRate("0.005"),
		QuotedReceived: feeRate("0.995"),
		BaseReceived:   feeRate("0.995"),
		MatchOnOrder:   matchOnOrder,
		Precision:      prec,
		Stats:          stats.Config{Window: 15, Precision: prec},
	}, led, ticks)
}

const (
	alice = ledger.AccountID(0)
	bob   = ledger.AccountID(1)
)

func fund(led *fakeLedger) {
	led.fund(alice, ledger.Fiat, dec("10000"))
	led.fund(alice, ledger.Coin, dec("10000"))
	led.fund(bob, ledger.Fiat, dec("10000"))
	led.fund(bob, ledger.Coin, dec("10000"))
}

func TestBidReservesQuotedPlusFee(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	o := b.Bid(dec("2"), dec("100"), alice)
	if o == nil {
		t.Fatal("bid rejected")
	}
	// 200 notional + 1 fee
	if got := led.reserved[alice][ledger.Fiat]; !got.Equal(dec("201")) {
		t.Fatalf("reserved = %s, want 201", got)
	}
	// One-sided book: the ask side falls back to the rolling price of 1.
	if got := b.Spread(); !got.Equal(dec("-1")) {
		t.Fatalf("spread = %s, want -1", got)
	}
}

func TestRejectedSubmissionsReturnNil(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	if o := b.Bid(dec("1"), dec("0"), alice); o != nil {
		t.Fatal("zero quantity accepted")
	}
	if o := b.Bid(dec("1"), dec("-5"), alice); o != nil {
		t.Fatal("negative quantity accepted")
	}
	if o := b.Bid(dec("1"), dec("100000"), alice); o != nil {
		t.Fatal("unfunded bid accepted")
	}
	if o := b.Ask(dec("1"), dec("100000"), alice); o != nil {
		t.Fatal("unfunded ask accepted")
	}
	if b.BidCount() != 0 || b.AskCount() != 0 {
		t.Fatal("rejected orders left residue")
	}
}

func TestExactFundingBoundary(t *testing.T) {
	led := newFakeLedger()
	led.fund(alice, ledger.Coin, dec("100.5")) // 100 * (1 + 0.005)
	b := newTestBook(led, &fakeTicks{}, false)

	if o := b.Ask(dec("1"), dec("100"), alice); o == nil {
		t.Fatal("exactly funded ask rejected")
	}
	if got := led.Available(alice, ledger.Coin); !got.IsZero() {
		t.Fatalf("available after exact ask = %s, want 0", got)
	}

	led2 := newFakeLedger()
	led2.fund(alice, ledger.Coin, dec("100.49999999"))
	b2 := newTestBook(led2, &fakeTicks{}, false)
	if o := b2.Ask(dec("1"), dec("100"), alice); o != nil {
		t.Fatal("underfunded ask accepted")
	}
}

func TestPriceTimePriority(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	ticks := &fakeTicks{}
	b := newTestBook(led, ticks, false)

	first := b.Bid(dec("1.10"), dec("10"), alice)
	second := b.Bid(dec("1.10"), dec("10"), bob)
	higher := b.Bid(dec("1.20"), dec("10"), bob)
	_ = second

	if got := b.HighestBidPrice(); !got.Equal(dec("1.20")) {
		t.Fatalf("best bid = %s, want 1.20", got)
	}

	// Matching consumes the higher price first, then FIFO at 1.10.
	b.Ask(dec("1.00"), dec("25"), bob)
	b.Match()

	hist := b.History()
	if len(hist) != 3 {
		t.Fatalf("trades = %d, want 3", len(hist))
	}
	if !hist[0].Price.Equal(dec("1.20")) || hist[0].Buyer != higher.Issuer {
		t.Fatalf("first trade %+v, want 1.20 against the high bid", hist[0])
	}
	if hist[1].Buyer != first.Issuer {
		t.Fatalf("second trade went to %d, want the older bid's issuer", hist[1].Buyer)
	}
	if err := b.CheckConsistency(); err != nil {
		t.Fatal(err)
	}
}

func TestBucketsAggregate(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	b.Bid(dec("1.10"), dec("10"), alice)
	b.Bid(dec("1.10"), dec("15"), bob)
	b.Bid(dec("1.05"), dec("5"), alice)

	levels := b.BidLevels()
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	if !levels[0].Price.Equal(dec("1.10")) || !levels[0].Quantity.Equal(dec("25")) {
		t.Fatalf("best level = %+v, want 25@1.10", levels[0])
	}
	if got := b.HighestBidQuantity(); !got.Equal(dec("25")) {
		t.Fatalf("highest bid quantity = %s, want 25", got)
	}
}

func TestUpdateQuantityPreservesPriority(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	first := b.Bid(dec("1.10"), dec("10"), alice)
	b.Bid(dec("1.10"), dec("10"), bob)

	b.UpdateQuantity(first, dec("5"))

	b.Ask(dec("1.10"), dec("5"), bob)
	b.Match()
	hist := b.History()
	if len(hist) != 1 || hist[0].Buyer != alice {
		t.Fatalf("resized order lost its queue position: %+v", hist)
	}
	if err := b.CheckConsistency(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdatePriceForfeitsPriority(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	first := b.Bid(dec("1.10"), dec("10"), alice)
	b.Bid(dec("1.10"), dec("10"), bob)

	// Repricing to the same level through a different price re-stamps time.
	b.UpdatePrice(first, dec("1.20"))
	b.UpdatePrice(first, dec("1.10"))

	b.Ask(dec("1.10"), dec("10"), bob)
	b.Match()
	hist := b.History()
	if len(hist) != 1 || hist[0].Buyer != bob {
		t.Fatalf("repriced order kept its queue position: %+v", hist)
	}
}

func TestUpdateToNonPositiveCancels(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	o := b.Bid(dec("1.10"), dec("10"), alice)
	b.UpdateQuantity(o, dec("0"))
	if o.Active {
		t.Fatal("zero-quantity update left order active")
	}
	if got := led.reserved[alice][ledger.Fiat]; !got.IsZero() {
		t.Fatalf("reservation not released: %s", got)
	}
	if len(led.cancelled) != 1 {
		t.Fatalf("cancellations = %d, want 1", len(led.cancelled))
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	o := b.Bid(dec("1.10"), dec("10"), alice)
	b.Cancel(o)
	b.Cancel(o)
	if len(led.cancelled) != 1 {
		t.Fatalf("cancellations = %d, want 1", len(led.cancelled))
	}
	if got := led.reserved[alice][ledger.Fiat]; !got.IsZero() {
		t.Fatalf("reservation after double cancel: %s", got)
	}
	if b.BidCount() != 0 {
		t.Fatal("cancelled order still resting")
	}
}

func TestPartialFillShrinksFeeProportionally(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	bid := b.Bid(dec("1.10"), dec("200"), bob)
	originalFee := bid.Fee
	b.Ask(dec("1.10"), dec("100"), alice)
	b.Match()

	if !bid.Active {
		t.Fatal("partially filled bid removed")
	}
	if !bid.Quantity.Equal(dec("100")) {
		t.Fatalf("remaining quantity = %s, want 100", bid.Quantity)
	}
	wantFee := originalFee.Div(dec("2")).Round(8)
	if !bid.Fee.Equal(wantFee) {
		t.Fatalf("remaining fee = %s, want %s", bid.Fee, wantFee)
	}
	if b.AskCount() != 0 {
		t.Fatal("filled ask still resting")
	}
	if err := b.CheckConsistency(); err != nil {
		t.Fatal(err)
	}
}

func TestEarlierOrderSetsPrice(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	b.Bid(dec("1.10"), dec("100"), alice)
	b.Ask(dec("1.00"), dec("100"), bob)
	b.Match()

	hist := b.History()
	if len(hist) != 1 {
		t.Fatalf("trades = %d, want 1", len(hist))
	}
	if !hist[0].Price.Equal(dec("1.10")) {
		t.Fatalf("price = %s, want the earlier bid's 1.10", hist[0].Price)
	}
	if b.BidCount() != 0 || b.AskCount() != 0 {
		t.Fatal("filled orders still resting")
	}
}

func TestMatchOnOrderSettlesImmediately(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, true)

	b.Bid(dec("1.10"), dec("50"), alice)
	b.Ask(dec("1.00"), dec("50"), bob)
	if len(b.History()) != 1 {
		t.Fatalf("continuous matching did not settle: %d trades", len(b.History()))
	}
}

func TestPriceToBuyWalksDepth(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	b.Ask(dec("1.00"), dec("10"), alice)
	b.Ask(dec("1.05"), dec("10"), alice)
	b.Ask(dec("1.10"), dec("10"), alice)

	if got := b.PriceToBuy(dec("5")); !got.Equal(dec("1.00")) {
		t.Fatalf("price to buy 5 = %s, want 1.00", got)
	}
	if got := b.PriceToBuy(dec("15")); !got.Equal(dec("1.05")) {
		t.Fatalf("price to buy 15 = %s, want 1.05", got)
	}
	if got := b.PriceToBuy(dec("100")); !got.Equal(dec("1.10")) {
		t.Fatalf("price to buy 100 = %s, want deepest level 1.10", got)
	}
}

func TestEmptyBookPricesFallBack(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	// A fresh series is seeded at 1, so prices never come back zero.
	if got := b.HighestBidPrice(); !got.Equal(dec("1")) {
		t.Fatalf("empty best bid = %s, want 1", got)
	}
	if got := b.LowestAskPrice(); !got.Equal(dec("1")) {
		t.Fatalf("empty best ask = %s, want 1", got)
	}
	if got := b.PriceToSell(dec("10")); !got.Equal(dec("1")) {
		t.Fatalf("empty price to sell = %s, want 1", got)
	}
}

func TestCapitalBoundedDepthSums(t *testing.T) {
	led := newFakeLedger()
	fund(led)
	b := newTestBook(led, &fakeTicks{}, false)

	b.Ask(dec("1.00"), dec("10"), alice)
	b.Ask(dec("2.00"), dec("10"), alice)

	if got := b.AsksNotHigherBaseQuantity(dec("2.00"), nil); !got.Equal(dec("20")) {
		t.Fatalf("unbounded base quantity = %s, want 20", got)
	}
	// 10 fiat buys the whole first level; 5 more buys half the second.
	capital := dec("15")
	if got := b.AsksNotHigherBaseQuantity(dec("2.00"), &capital); !got.Equal(dec("12.5")) {
		t.Fatalf("bounded base quantity = %s, want 12.5", got)
	}
}
