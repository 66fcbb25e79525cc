// Package sim generates synthetic order flow against a book.Store. The
// random source and clock are injected so runs are reproducible under test.
package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/uhyunpark/marketfeed/pkg/book"
	"github.com/uhyunpark/marketfeed/pkg/util"
)

type ActivityType string

const (
	Add    ActivityType = "add"
	Update ActivityType = "update"
	Cancel ActivityType = "cancel"
)

// Activity records one applied mutation. Price/Quantity/Side are only
// meaningful for the types that carry them.
type Activity struct {
	Type     ActivityType
	OrderID  string
	Symbol   string
	Price    float64
	Quantity int64
	Side     book.Side
	Time     time.Time
}

const (
	minBatch = 5
	maxBatch = 15

	// Add pricing: bounded perturbation around the side's best price,
	// floored at one cent.
	priceJitter = 0.2
	minPrice    = 0.01

	minAddQty   = 1000
	addQtySpan  = 5000 // quantities drawn from [1000, 6000)
	updateShift = 2000 // update deltas drawn from [-2000, 1000]
	updateSpan  = 3001
)

// Simulator mutates a single instrument's book with randomized add, update
// and cancel steps. It is not safe for concurrent use; the hub invokes it
// only from the tick loop.
type Simulator struct {
	rng         *rand.Rand
	clock       util.Clock
	fallbackMid float64
}

func New(rng *rand.Rand, clock util.Clock, fallbackMid float64) *Simulator {
	return &Simulator{rng: rng, clock: clock, fallbackMid: fallbackMid}
}

// Batch applies between 5 and 15 activities, each taking effect immediately:
// a later step in the same batch sees the effects of earlier ones.
func (s *Simulator) Batch(store *book.Store) []Activity {
	n := minBatch + s.rng.Intn(maxBatch-minBatch+1)
	activities := make([]Activity, 0, n)
	for i := 0; i < n; i++ {
		activities = append(activities, s.step(store))
	}
	return activities
}

func (s *Simulator) step(store *book.Store) Activity {
	r := s.rng.Float64()
	switch {
	case r < 0.4:
		return s.add(store)
	case r < 0.7:
		if store.Len() == 0 {
			// Nothing to update: keep the book moving.
			return s.add(store)
		}
		return s.update(store)
	default:
		if store.Len() == 0 {
			return s.add(store)
		}
		return s.cancel(store)
	}
}

func (s *Simulator) add(store *book.Store) Activity {
	side := book.Bid
	if s.rng.Intn(2) == 1 {
		side = book.Ask
	}

	base := s.fallbackMid
	if side == book.Bid {
		if best, ok := store.BestBid(); ok {
			base = best
		}
	} else {
		if best, ok := store.BestAsk(); ok {
			base = best
		}
	}

	price := base + (s.rng.Float64()-0.5)*priceJitter
	if price < minPrice {
		price = minPrice
	}
	price = math.Round(price*100) / 100

	quantity := int64(minAddQty + s.rng.Intn(addQtySpan))
	now := s.clock.Now()
	id := fmt.Sprintf("order_%d_%d", now.UnixMilli(), s.rng.Uint32())

	store.AddOrReplace(book.NewOrder(id, side, price, quantity, now))

	return Activity{
		Type:     Add,
		OrderID:  id,
		Symbol:   store.Symbol(),
		Price:    price,
		Quantity: quantity,
		Side:     side,
		Time:     now,
	}
}

func (s *Simulator) update(store *book.Store) Activity {
	id := s.pickOrder(store)
	o, ok := store.Get(id)
	if !ok {
		return s.add(store)
	}

	// Skewed toward reduction so resting size decays over time.
	delta := s.rng.Int63n(updateSpan) - updateShift
	return s.applyQuantity(store, id, o.Quantity+delta)
}

// applyQuantity updates an order's quantity, degrading to a cancel when the
// result is no longer positive.
func (s *Simulator) applyQuantity(store *book.Store, id string, quantity int64) Activity {
	now := s.clock.Now()
	if quantity <= 0 {
		store.Remove(id)
		return Activity{Type: Cancel, OrderID: id, Symbol: store.Symbol(), Time: now}
	}

	store.UpdateQuantity(id, quantity)
	return Activity{
		Type:     Update,
		OrderID:  id,
		Symbol:   store.Symbol(),
		Quantity: quantity,
		Time:     now,
	}
}

func (s *Simulator) cancel(store *book.Store) Activity {
	id := s.pickOrder(store)
	store.Remove(id)
	return Activity{Type: Cancel, OrderID: id, Symbol: store.Symbol(), Time: s.clock.Now()}
}

// pickOrder chooses a resident order uniformly across the whole instrument.
func (s *Simulator) pickOrder(store *book.Store) string {
	ids := store.OrderIDs()
	return ids[s.rng.Intn(len(ids))]
}
