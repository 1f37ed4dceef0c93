// Package orderbook implements per-symbol continuous double auction books
// with price-time priority, lazy cancellation and bounded order age.
package orderbook

import "sync/atomic"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
)

// Order is a resting or incoming order. Market orders carry price 0.
type Order struct {
	ID        uint64  `json:"id"`
	AgentID   int64   `json:"agentId"`
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Type      Type    `json:"type"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Timestamp int64   `json:"timestamp"`
}

// Trade is one execution between a bid and an ask. Buyer/seller type tags
// are filled in by the engine, which knows the agent population.
type Trade struct {
	BuyOrderID  uint64  `json:"buyOrderId"`
	SellOrderID uint64  `json:"sellOrderId"`
	BuyerID     int64   `json:"buyerId"`
	SellerID    int64   `json:"sellerId"`
	BuyerType   string  `json:"buyerType"`
	SellerType  string  `json:"sellerType"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Timestamp   int64   `json:"timestamp"`
}

// PriceLevel aggregates resting quantity at one price.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int     `json:"orders"`
}

// Snapshot is a depth-limited aggregated view of one book.
type Snapshot struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// Order ids are monotone across all books in the process.
var nextOrderID atomic.Uint64

func allocateOrderID() uint64 { return nextOrderID.Add(1) }
