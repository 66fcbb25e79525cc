package book

import (
	"math"
	"sort"
	"time"
)

// ViewKind selects which derived read model a subscription receives.
type ViewKind string

const (
	// OrderLevel is market-by-order: individual resident orders.
	OrderLevel ViewKind = "order_level"
	// PriceLevel is market-by-price: orders aggregated per price bucket.
	PriceLevel ViewKind = "price_level"
)

func (k ViewKind) Valid() bool { return k == OrderLevel || k == PriceLevel }

// OrderSnapshot is one resident order as seen by an order-level view.
type OrderSnapshot struct {
	OrderID   string    `json:"order_id"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
	AgeMs     int64     `json:"age_ms"`
}

// LevelSnapshot aggregates one price bucket for a price-level view.
type LevelSnapshot struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count"`
	Side       Side    `json:"side"`
	// TotalQuantity accumulates quantity from the best level down to this one.
	TotalQuantity int64 `json:"total_quantity"`
	AvgAgeMs      int64 `json:"avg_age_ms"`
}

// Snapshot is one side-pair view of a book at a single sequence number.
type Snapshot struct {
	Symbol    string
	Kind      ViewKind
	Sequence  uint64
	Timestamp time.Time

	OrderBids []OrderSnapshot
	OrderAsks []OrderSnapshot
	LevelBids []LevelSnapshot
	LevelAsks []LevelSnapshot
}

// Snapshot derives the requested view of both sides under a single read
// lock, so every field reflects the same sequence number.
func (s *Store) Snapshot(kind ViewKind, depth int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	snap := Snapshot{
		Symbol:    s.symbol,
		Kind:      kind,
		Sequence:  s.seq,
		Timestamp: now,
	}

	switch kind {
	case PriceLevel:
		snap.LevelBids = s.priceViewLocked(Bid, depth, now)
		snap.LevelAsks = s.priceViewLocked(Ask, depth, now)
	default:
		snap.OrderBids = s.orderViewLocked(Bid, depth, now)
		snap.OrderAsks = s.orderViewLocked(Ask, depth, now)
	}
	return snap
}

// OrderView lists resident orders on one side: price buckets in priority
// order (bids high to low, asks low to high), orders within a bucket oldest
// untouched first. At most depth buckets and depth*3 orders total.
func (s *Store) OrderView(side Side, depth int) []OrderSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderViewLocked(side, depth, s.clock.Now())
}

// PriceView aggregates up to depth buckets on one side in priority order.
func (s *Store) PriceView(side Side, depth int) []LevelSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priceViewLocked(side, depth, s.clock.Now())
}

func (s *Store) orderViewLocked(side Side, depth int, now time.Time) []OrderSnapshot {
	buckets := s.bucketsFor(side)
	prices := sortedPrices(buckets, side == Bid)
	if len(prices) > depth {
		prices = prices[:depth]
	}

	var result []OrderSnapshot
	for _, price := range prices {
		orders := make([]*Order, 0, len(buckets[price]))
		for _, id := range buckets[price] {
			orders = append(orders, s.orders[id])
		}
		// Time priority is computed at read time from the last-touched
		// timestamp, not from insertion order.
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].TouchedAt.Before(orders[j].TouchedAt)
		})
		for _, o := range orders {
			result = append(result, OrderSnapshot{
				OrderID:   o.ID,
				Price:     o.Price,
				Quantity:  o.Quantity,
				Side:      o.Side,
				Timestamp: o.TouchedAt,
				AgeMs:     o.AgeMillis(now),
			})
		}
	}

	// Payload-size guard: a full depth of buckets may be cut mid-bucket.
	if limit := depth * 3; len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *Store) priceViewLocked(side Side, depth int, now time.Time) []LevelSnapshot {
	buckets := s.bucketsFor(side)
	prices := sortedPrices(buckets, side == Bid)
	if len(prices) > depth {
		prices = prices[:depth]
	}

	var result []LevelSnapshot
	var cumulative int64
	for _, price := range prices {
		ids := buckets[price]
		var quantity, ageSum int64
		for _, id := range ids {
			o := s.orders[id]
			quantity += o.Quantity
			ageSum += o.AgeMillis(now)
		}
		cumulative += quantity

		result = append(result, LevelSnapshot{
			Price:         price,
			Quantity:      quantity,
			OrderCount:    len(ids),
			Side:          side,
			TotalQuantity: cumulative,
			AvgAgeMs:      int64(math.Round(float64(ageSum) / float64(len(ids)))),
		})
	}
	return result
}

func sortedPrices(buckets map[float64][]string, descending bool) []float64 {
	prices := make([]float64, 0, len(buckets))
	for price := range buckets {
		prices = append(prices, price)
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	return prices
}
