package common

import "fmt"

// Order is a limit order as received from a client. The book keeps its own
// working copy whose Quantity shrinks as it fills.
type Order struct {
	Side     Side   `json:"side"`
	Price    uint64 `json:"price"`    // Limit price
	Quantity uint64 `json:"quantity"` // Remaining quantity
}

func (order Order) String() string {
	return fmt.Sprintf("%s %d@%d", order.Side, order.Quantity, order.Price)
}
