package book

import (
	"fmt"
	"sync"

	"github.com/uhyunpark/marketfeed/pkg/util"
)

// Store owns all order state for one instrument: an id-keyed arena plus two
// price-bucketed indexes, one per side. Every successful mutation bumps a
// strictly increasing sequence number shared by all views of the book.
//
// The hub serializes mutations; the RWMutex exists so REST handlers can take
// read snapshots concurrently with the tick loop.
type Store struct {
	symbol string
	clock  util.Clock

	mu     sync.RWMutex
	orders map[string]*Order
	// price -> order ids in insertion order. A bucket exists iff it holds
	// at least one resident order.
	bids map[float64][]string
	asks map[float64][]string
	seq  uint64
}

func NewStore(symbol string, clock util.Clock) *Store {
	return &Store{
		symbol: symbol,
		clock:  clock,
		orders: make(map[string]*Order),
		bids:   make(map[float64][]string),
		asks:   make(map[float64][]string),
	}
}

func (s *Store) Symbol() string { return s.symbol }

func (s *Store) bucketsFor(side Side) map[float64][]string {
	if side == Bid {
		return s.bids
	}
	return s.asks
}

// AddOrReplace inserts the order, fully evicting any prior order with the
// same id first. Replace semantics: the incoming order's timestamps become
// its effective priority, regardless of what the old order looked like.
func (s *Store) AddOrReplace(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		s.removeLocked(o.ID)
	}

	stored := o
	s.orders[o.ID] = &stored
	buckets := s.bucketsFor(o.Side)
	buckets[o.Price] = append(buckets[o.Price], o.ID)
	s.seq++
}

// Remove deletes the order and its bucket entry, dropping the bucket when it
// empties. The sequence advances only when the order was actually resident.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return false
	}
	s.removeLocked(id)
	s.seq++
	return true
}

// removeLocked unlinks an order known to be resident. A missing bucket entry
// means the two indexes disagree, which cannot happen by construction.
func (s *Store) removeLocked(id string) {
	o := s.orders[id]
	delete(s.orders, id)

	buckets := s.bucketsFor(o.Side)
	ids, ok := buckets[o.Price]
	if !ok {
		panic(fmt.Sprintf("book: order %s indexed but no %s bucket at %.2f", id, o.Side, o.Price))
	}

	found := false
	kept := ids[:0]
	for _, oid := range ids {
		if oid == id {
			found = true
			continue
		}
		kept = append(kept, oid)
	}
	if !found {
		panic(fmt.Sprintf("book: order %s missing from %s bucket at %.2f", id, o.Side, o.Price))
	}

	if len(kept) == 0 {
		delete(buckets, o.Price)
	} else {
		buckets[o.Price] = kept
	}
}

// UpdateQuantity sets the order's quantity and resets its last-touched
// timestamp, which drops it to the back of time-priority at its price.
// A non-positive quantity behaves exactly like Remove.
func (s *Store) UpdateQuantity(id string, quantity int64) bool {
	if quantity <= 0 {
		return s.Remove(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false
	}
	o.Quantity = quantity
	o.TouchedAt = s.clock.Now()
	s.seq++
	return true
}

// Get returns a copy of the resident order.
func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// OrderIDs returns a snapshot of all resident order ids, in no particular
// order. Used by the activity simulator to pick update/cancel targets.
func (s *Store) OrderIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// BestBid returns the highest bid price.
func (s *Store) BestBid() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bestPrice(s.bids, true)
}

// BestAsk returns the lowest ask price.
func (s *Store) BestAsk() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bestPrice(s.asks, false)
}

func bestPrice(buckets map[float64][]string, highest bool) (float64, bool) {
	best, found := 0.0, false
	for price := range buckets {
		if !found || (highest && price > best) || (!highest && price < best) {
			best = price
			found = true
		}
	}
	return best, found
}

// Spread reports the top-of-book spread, mid price, and spread in basis
// points. ok is false while either side is empty. A crossed book (bid above
// ask) yields a negative spread; this is a simulation feed and the book is
// not forced uncrossed.
func (s *Store) Spread() (spread, mid, bps float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, bidOK := bestPrice(s.bids, true)
	ask, askOK := bestPrice(s.asks, false)
	if !bidOK || !askOK {
		return 0, 0, 0, false
	}

	spread = ask - bid
	mid = (bid + ask) / 2
	return spread, mid, spread / mid * 10000, true
}
