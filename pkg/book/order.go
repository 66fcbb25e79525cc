// Package book implements a simulated limit order book per instrument and
// the derived market data views served to subscribers: order-level (MBO)
// and price-level (MBP).
package book

import "time"

type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

func (s Side) Valid() bool { return s == Bid || s == Ask }

// Order is a resident limit order. It is owned exclusively by the Store of
// its instrument; callers hand in values and never hold references into the
// book.
type Order struct {
	ID       string
	Side     Side
	Price    float64
	Quantity int64
	// OriginalQuantity is fixed at creation and never mutated.
	OriginalQuantity int64
	CreatedAt        time.Time
	// TouchedAt is reset on every quantity change and is the time-priority
	// key at a price level: any update forfeits queue position.
	TouchedAt time.Time
}

// NewOrder builds an order stamped at ts with original quantity recorded.
func NewOrder(id string, side Side, price float64, quantity int64, ts time.Time) Order {
	return Order{
		ID:               id,
		Side:             side,
		Price:            price,
		Quantity:         quantity,
		OriginalQuantity: quantity,
		CreatedAt:        ts,
		TouchedAt:        ts,
	}
}

// AgeMillis returns how long the order has stood unchanged, in milliseconds.
// Never negative, even with a backdated clock.
func (o *Order) AgeMillis(now time.Time) int64 {
	ms := now.Sub(o.TouchedAt).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
