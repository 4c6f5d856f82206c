package api

// API response types for REST endpoints and WebSocket messages

import (
	"github.com/shopspring/decimal"

	"github.com/stablesim/stablesim/pkg/econ/book"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

// MarketSummary is the per-pair header shown on the dashboard.
type MarketSummary struct {
	Pair          string          `json:"pair"`
	Price         decimal.Decimal `json:"price"`
	HighestBid    decimal.Decimal `json:"highestBid"`
	LowestAsk     decimal.Decimal `json:"lowestAsk"`
	Spread        decimal.Decimal `json:"spread"`
	BidCount      int             `json:"bidCount"`
	AskCount      int             `json:"askCount"`
	TradesSettled int             `json:"tradesSettled"`
}

// DepthSnapshot is the aggregated book depth at one tick.
type DepthSnapshot struct {
	Pair string       `json:"pair"`
	Bids []book.Level `json:"bids"` // highest price first
	Asks []book.Level `json:"asks"` // lowest price first
	Tick int64        `json:"tick"`
}

// AccountInfo is one agent's balance sheet.
type AccountInfo struct {
	ID              ledger.AccountID `json:"id"`
	Name            string           `json:"name"`
	Coin            decimal.Decimal  `json:"coin"`
	Stable          decimal.Decimal  `json:"stable"`
	Fiat            decimal.Decimal  `json:"fiat"`
	Escrowed        decimal.Decimal  `json:"escrowed"`
	Issued          decimal.Decimal  `json:"issued"`
	AvailableCoin   decimal.Decimal  `json:"availableCoin"`
	AvailableStable decimal.Decimal  `json:"availableStable"`
	AvailableFiat   decimal.Decimal  `json:"availableFiat"`
}

// StatusInfo summarises the run.
type StatusInfo struct {
	Tick            int64           `json:"tick"`
	Agents          int             `json:"agents"`
	CoinSupply      decimal.Decimal `json:"coinSupply"`
	StableSupply    decimal.Decimal `json:"stableSupply"`
	EscrowedCoin    decimal.Decimal `json:"escrowedCoin"`
	CoinFiatPrice   decimal.Decimal `json:"coinFiatPrice"`
	StableFiatPrice decimal.Decimal `json:"stableFiatPrice"`
	CoinStablePrice decimal.Decimal `json:"coinStablePrice"`
	Gini            decimal.Decimal `json:"gini"`
	TotalWealth     decimal.Decimal `json:"totalWealth"`
	FeesDistributed decimal.Decimal `json:"feesDistributed"`
}

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. {"op": "subscribe", "channels": ["ticks"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TickUpdate is broadcast on the "ticks" channel after every model step.
type TickUpdate struct {
	Type    string          `json:"type"` // "tick"
	Tick    int64           `json:"tick"`
	Markets []MarketSummary `json:"markets"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
