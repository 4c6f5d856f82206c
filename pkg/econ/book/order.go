package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// Side tags an order as a buy (bid) or sell (ask) of the base currency.
type Side int8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// OrderID is a book-local handle for an order.
type OrderID uint64

// Order is a resting limit order. Identity is immutable; quantity, fee and
// price are mutated only through the owning book so that reservations and
// price buckets stay consistent. Active is terminal once false.
type Order struct {
	ID       OrderID
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
	Time     int64 // book-local logical timestamp; reset on reprice
	Issuer   ledger.AccountID
	Active   bool

	// intrusive FIFO links within the order's price level
	level      *priceLevel
	next, prev *Order

	book *OrderBook
}

// Book returns the book the order was submitted to.
func (o *Order) Book() *OrderBook { return o.book }

func (o *Order) String() string {
	return fmt.Sprintf("%s %s@%s f:%s t:%d by %d",
		o.Side, o.Quantity, o.Price, o.Fee, o.Time, o.Issuer)
}

// TradeRecord is an immutable entry in a book's trade history.
type TradeRecord struct {
	Buyer          ledger.AccountID `json:"buyer"`
	Seller         ledger.AccountID `json:"seller"`
	Pair           string           `json:"pair"`
	Price          decimal.Decimal  `json:"price"`
	Quantity       decimal.Decimal  `json:"quantity"`
	BuyerFee       decimal.Decimal  `json:"buyerFee"`
	SellerFee      decimal.Decimal  `json:"sellerFee"`
	CompletionTime int64            `json:"completionTime"` // model tick
}

func (r *TradeRecord) String() string {
	return fmt.Sprintf("%d -> %d : %s@%s + (%s, %s) t:%d %s",
		r.Buyer, r.Seller, r.Quantity, r.Price, r.BuyerFee, r.SellerFee,
		r.CompletionTime, r.Pair)
}
