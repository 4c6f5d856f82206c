// Package market wires the three currency-pair books to the shared ledger
// and implements order settlement between matched bids and asks.
package market

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/fees"
	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/stats"
)

// Issuer receives callbacks about the fate of its orders. Agents implement
// this to keep their local order lists in sync with the books.
type Issuer interface {
	OrderCancelled(o *book.Order)
	TradeSettled(rec *book.TradeRecord)
}

// Config selects precision, fee schedule and matching mode for all books.
type Config struct {
	Precision fixed.Precision
	Fees      *fees.Schedule

	// MatchOnOrder settles continuously on submission instead of batching
	// once per tick.
	MatchOnOrder bool

	Stats stats.Config
}

// Manager owns the coin/stable, coin/fiat and stable/fiat books, the model
// tick, and the issuer registry. It is the ledger surface the books consume.
type Manager struct {
	prec fixed.Precision
	led  *ledger.Ledger
	fees *fees.Schedule
	log  *zap.Logger

	tick int64

	issuers map[ledger.AccountID]Issuer

	coinStable *book.OrderBook
	coinFiat   *book.OrderBook
	stableFiat *book.OrderBook
}

// New creates a manager with three empty books over the given ledger.
func New(cfg Config, led *ledger.Ledger, log *zap.Logger) *Manager {
	m := &Manager{
		prec:    cfg.Precision,
		led:     led,
		fees:    cfg.Fees,
		log:     log,
		issuers: make(map[ledger.AccountID]Issuer),
	}
	m.coinStable = m.newBook(ledger.Coin, ledger.Stable, cfg)
	m.coinFiat = m.newBook(ledger.Coin, ledger.Fiat, cfg)
	m.stableFiat = m.newBook(ledger.Stable, ledger.Fiat, cfg)
	return m
}

func (m *Manager) newBook(base, quote ledger.Currency, cfg Config) *book.OrderBook {
	return book.New(book.Config{
		Base:    base,
		Quote:   quote,
		Matcher: m.settle,
		QuotedFee: func(v decimal.Decimal) decimal.Decimal {
			return m.fees.TransferFee(quote, v)
		},
		BaseFee: func(v decimal.Decimal) decimal.Decimal {
			return m.fees.TransferFee(base, v)
		},
		QuotedReceived: func(v decimal.Decimal) decimal.Decimal {
			return m.fees.ReceivedQuantity(quote, v)
		},
		BaseReceived: func(v decimal.Decimal) decimal.Decimal {
			return m.fees.ReceivedQuantity(base, v)
		},
		MatchOnOrder: cfg.MatchOnOrder,
		Precision:    cfg.Precision,
		Stats:        cfg.Stats,
	}, m, m)
}

// Ledger returns the underlying balance sheet.
func (m *Manager) Ledger() *ledger.Ledger { return m.led }

// Fees returns the transfer fee schedule.
func (m *Manager) Fees() *fees.Schedule { return m.fees }

// CoinStableMarket returns the coin book priced in stable.
func (m *Manager) CoinStableMarket() *book.OrderBook { return m.coinStable }

// CoinFiatMarket returns the coin book priced in fiat.
func (m *Manager) CoinFiatMarket() *book.OrderBook { return m.coinFiat }

// StableFiatMarket returns the stable book priced in fiat.
func (m *Manager) StableFiatMarket() *book.OrderBook { return m.stableFiat }

// Books returns all three books.
func (m *Manager) Books() []*book.OrderBook {
	return []*book.OrderBook{m.coinStable, m.coinFiat, m.stableFiat}
}

// Book resolves a pair label such as "coin/fiat". Nil if unknown.
func (m *Manager) Book(pair string) *book.OrderBook {
	for _, b := range m.Books() {
		if b.Name() == pair {
			return b
		}
	}
	return nil
}

// Tick returns the current model tick.
func (m *Manager) Tick() int64 { return m.tick }

// AdvanceTick moves the model forward one tick.
func (m *Manager) AdvanceTick() { m.tick++ }

// MatchAll runs the matching loop on every book. Used by batch mode once
// per tick after all agents have acted.
func (m *Manager) MatchAll() {
	for _, b := range m.Books() {
		b.Match()
	}
}

// StepHistory closes the current tick's statistics on every book.
func (m *Manager) StepHistory() {
	for _, b := range m.Books() {
		b.StepHistory()
	}
}

// RegisterIssuer routes order callbacks for an account to the given issuer.
func (m *Manager) RegisterIssuer(id ledger.AccountID, iss Issuer) {
	m.issuers[id] = iss
}

// Available implements book.Ledger.
func (m *Manager) Available(id ledger.AccountID, c ledger.Currency) decimal.Decimal {
	return m.led.Available(id, c)
}

// Reserve implements book.Ledger.
func (m *Manager) Reserve(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal) {
	m.led.Reserve(id, c, amount)
}

// Release implements book.Ledger.
func (m *Manager) Release(id ledger.AccountID, c ledger.Currency, amount decimal.Decimal) {
	m.led.Release(id, c, amount)
}

// NotifyCancelled implements book.Ledger.
func (m *Manager) NotifyCancelled(id ledger.AccountID, o *book.Order) {
	if iss, ok := m.issuers[id]; ok {
		iss.OrderCancelled(o)
	}
}

// NotifyTrade implements book.Ledger.
func (m *Manager) NotifyTrade(id ledger.AccountID, rec *book.TradeRecord) {
	if iss, ok := m.issuers[id]; ok {
		iss.TradeSettled(rec)
	}
}

// settle resolves one matched bid/ask pair.
//
// The earlier-posted order sets the execution price. The matched quantity is
// the rounded minimum of the two remainders, and each side is charged its
// resting fee prorated by the filled fraction. Each side must be able to pay
// out of its total balance (the settling order's own reservation covers the
// outflow); a side that cannot pay is cancelled and the match yields no
// trade. On success both legs transfer, both orders shrink in place, and the
// fully-filled side (or both) leaves the book.
func (m *Manager) settle(b *book.OrderBook, bid, ask *book.Order) *book.TradeRecord {
	var price decimal.Decimal
	if ask.Time < bid.Time {
		price = ask.Price
	} else {
		price = bid.Price
	}
	quantity := m.prec.Round(decimal.Min(ask.Quantity, bid.Quantity))
	buyVal := m.prec.MulRound(quantity, price)

	askFee := m.prec.Round(ask.Fee.Mul(quantity).Div(ask.Quantity))
	bidFee := m.prec.Round(bid.Fee.Mul(quantity).Div(bid.Quantity))

	if !m.led.CanTransfer(bid.Issuer, b.Quote(), buyVal, bidFee) {
		m.log.Debug("cancelling unfunded bid",
			zap.String("pair", b.Name()), zap.Stringer("order", bid))
		b.Cancel(bid)
		return nil
	}
	if !m.led.CanTransfer(ask.Issuer, b.Base(), quantity, askFee) {
		m.log.Debug("cancelling unfunded ask",
			zap.String("pair", b.Name()), zap.Stringer("order", ask))
		b.Cancel(ask)
		return nil
	}

	if !m.led.Transfer(bid.Issuer, ask.Issuer, b.Quote(), buyVal, bidFee) {
		panic(fmt.Sprintf("market %s: buyer transfer failed after funding check: %s", b.Name(), bid))
	}
	if !m.led.Transfer(ask.Issuer, bid.Issuer, b.Base(), quantity, askFee) {
		panic(fmt.Sprintf("market %s: seller transfer failed after funding check: %s", b.Name(), ask))
	}

	b.Fill(ask, quantity, askFee)
	b.Fill(bid, quantity, bidFee)

	rec := &book.TradeRecord{
		Buyer:          bid.Issuer,
		Seller:         ask.Issuer,
		Pair:           b.Name(),
		Price:          price,
		Quantity:       quantity,
		BuyerFee:       bidFee,
		SellerFee:      askFee,
		CompletionTime: m.tick,
	}
	m.log.Debug("trade settled", zap.Stringer("trade", rec))
	return rec
}

// CoinPriceInFiat returns the rolling coin/fiat price.
func (m *Manager) CoinPriceInFiat() decimal.Decimal { return m.coinFiat.Price() }

// StablePriceInFiat returns the rolling stable/fiat price.
func (m *Manager) StablePriceInFiat() decimal.Decimal { return m.stableFiat.Price() }

// CoinPriceInStable returns the rolling coin/stable price.
func (m *Manager) CoinPriceInStable() decimal.Decimal { return m.coinStable.Price() }

// CoinToFiat converts a coin amount at the rolling coin/fiat price.
func (m *Manager) CoinToFiat(v decimal.Decimal) decimal.Decimal {
	return m.prec.MulRound(v, m.coinFiat.Price())
}

// FiatToCoin converts a fiat amount at the rolling coin/fiat price.
func (m *Manager) FiatToCoin(v decimal.Decimal) decimal.Decimal {
	return m.prec.DivRound(v, m.coinFiat.Price())
}

// StableToFiat converts a stable amount at the rolling stable/fiat price.
func (m *Manager) StableToFiat(v decimal.Decimal) decimal.Decimal {
	return m.prec.MulRound(v, m.stableFiat.Price())
}

// FiatToStable converts a fiat amount at the rolling stable/fiat price.
func (m *Manager) FiatToStable(v decimal.Decimal) decimal.Decimal {
	return m.prec.DivRound(v, m.stableFiat.Price())
}

// CoinToStable converts a coin amount at the rolling coin/stable price.
func (m *Manager) CoinToStable(v decimal.Decimal) decimal.Decimal {
	return m.prec.MulRound(v, m.coinStable.Price())
}

// StableToCoin converts a stable amount at the rolling coin/stable price.
func (m *Manager) StableToCoin(v decimal.Decimal) decimal.Decimal {
	return m.prec.DivRound(v, m.coinStable.Price())
}
