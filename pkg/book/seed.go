package book

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

const seedLevels = 30

// Seed populates an empty book with resting orders on both sides around
// basePrice, one order per level, with randomly backdated timestamps so the
// first views already show a spread of ages.
func (s *Store) Seed(rng *rand.Rand, basePrice float64) {
	now := s.clock.Now()

	for i := 0; i < seedLevels; i++ {
		price := roundCents(basePrice - 0.05 - float64(i)*0.01)
		s.AddOrReplace(seedOrder(fmt.Sprintf("bid_%d", i), Bid, price, rng, now))
	}
	for i := 0; i < seedLevels; i++ {
		price := roundCents(basePrice + float64(i)*0.01)
		s.AddOrReplace(seedOrder(fmt.Sprintf("ask_%d", i), Ask, price, rng, now))
	}
}

func seedOrder(id string, side Side, price float64, rng *rand.Rand, now time.Time) Order {
	ts := now.Add(-time.Duration(rng.Intn(60000)) * time.Millisecond)
	quantity := 1000 + rng.Int63n(9001)
	return NewOrder(id, side, price, quantity, ts)
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
