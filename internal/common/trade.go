package common

import "fmt"

// Trade is a single fill. Price is always the resting (maker) order's price.
type Trade struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

func (t Trade) String() string {
	return fmt.Sprintf("%d@%d", t.Quantity, t.Price)
}
