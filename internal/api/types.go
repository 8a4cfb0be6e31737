package api

import (
	. "matchbook/internal/common"
	"matchbook/internal/engine"
)

// OrderRequest is the body of POST /orders. Fields are pointers so that a
// missing field can be told apart from a zero value.
type OrderRequest struct {
	Side     *Side   `json:"side"`
	Price    *uint64 `json:"price"`
	Quantity *uint64 `json:"quantity"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// PlaceOrderResponse carries only the trades produced by the submitted order.
type PlaceOrderResponse struct {
	Status string  `json:"status"`
	Trades []Trade `json:"trades"`
}

type TradesResponse struct {
	Total  uint64  `json:"total"` // trades ever recorded, including evicted ones
	Trades []Trade `json:"trades"`
}

// SideDepth summarises one side of the book.
type SideDepth struct {
	Levels   int    `json:"levels"`
	Orders   int    `json:"orders"`
	Quantity uint64 `json:"quantity"`
}

type BookResponse struct {
	BestBid  *uint64                 `json:"best_bid"` // null when no bids rest
	BestAsk  *uint64                 `json:"best_ask"`
	BidDepth SideDepth               `json:"bid_depth"`
	AskDepth SideDepth               `json:"ask_depth"`
	Bids     []engine.FlatPriceLevel `json:"bids"` // highest price first
	Asks     []engine.FlatPriceLevel `json:"asks"` // lowest price first
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
