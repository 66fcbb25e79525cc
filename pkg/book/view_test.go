package book

import (
	"fmt"
	"testing"
	"time"
)

func TestOrderViewPriceOrdering(t *testing.T) {
	s, _ := testStore()
	for i, price := range []float64{99.10, 99.30, 99.20} {
		s.mustAdd(t, fmt.Sprintf("b%d", i), Bid, price, 100)
	}
	for i, price := range []float64{100.30, 100.10, 100.20} {
		s.mustAdd(t, fmt.Sprintf("a%d", i), Ask, price, 100)
	}

	bids := s.OrderView(Bid, 10)
	wantBids := []float64{99.30, 99.20, 99.10}
	for i, snap := range bids {
		if snap.Price != wantBids[i] {
			t.Fatalf("bid[%d].Price = %.2f, want %.2f", i, snap.Price, wantBids[i])
		}
	}

	asks := s.OrderView(Ask, 10)
	wantAsks := []float64{100.10, 100.20, 100.30}
	for i, snap := range asks {
		if snap.Price != wantAsks[i] {
			t.Fatalf("ask[%d].Price = %.2f, want %.2f", i, snap.Price, wantAsks[i])
		}
	}
}

func TestOrderViewTimePriorityResetOnUpdate(t *testing.T) {
	s, clk := testStore()

	s.mustAdd(t, "o1", Bid, 99.50, 1000)
	clk.Advance(100 * time.Millisecond)
	s.mustAdd(t, "o2", Bid, 99.50, 2000)

	ids := func() []string {
		var out []string
		for _, snap := range s.OrderView(Bid, 5) {
			out = append(out, snap.OrderID)
		}
		return out
	}

	if got := ids(); got[0] != "o1" || got[1] != "o2" {
		t.Fatalf("initial priority = %v, want [o1 o2]", got)
	}

	// Any quantity change, including a pure decrease, forfeits queue
	// position because priority is read off the last-touched timestamp.
	clk.Advance(100 * time.Millisecond)
	s.UpdateQuantity("o1", 900)

	if got := ids(); got[0] != "o2" || got[1] != "o1" {
		t.Fatalf("post-update priority = %v, want [o2 o1]", got)
	}
}

func TestOrderViewDepthAndCap(t *testing.T) {
	s, _ := testStore()

	// Five levels, four orders each: depth 2 exposes two buckets but the
	// depth*3 cap cuts the second bucket mid-way.
	for lvl := 0; lvl < 5; lvl++ {
		price := 100.00 + float64(lvl)*0.01
		for j := 0; j < 4; j++ {
			s.mustAdd(t, fmt.Sprintf("o%d_%d", lvl, j), Ask, price, 100)
		}
	}

	got := s.OrderView(Ask, 2)
	if len(got) != 6 {
		t.Fatalf("order view emitted %d snapshots, want 6 (depth 2 * 3)", len(got))
	}
	for _, snap := range got {
		if snap.Price > 100.01 {
			t.Fatalf("snapshot from bucket beyond depth: %.2f", snap.Price)
		}
	}
}

func TestOrderViewAges(t *testing.T) {
	s, clk := testStore()
	s.mustAdd(t, "o1", Bid, 99.50, 1000)
	clk.Advance(250 * time.Millisecond)

	got := s.OrderView(Bid, 1)
	if len(got) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(got))
	}
	if got[0].AgeMs != 250 {
		t.Fatalf("age = %dms, want 250ms", got[0].AgeMs)
	}
}

func TestPriceViewAggregation(t *testing.T) {
	s, clk := testStore()

	s.mustAdd(t, "o1", Bid, 99.50, 1000)
	clk.Advance(100 * time.Millisecond)
	s.mustAdd(t, "o2", Bid, 99.50, 2000)
	s.mustAdd(t, "o3", Bid, 99.40, 500)
	clk.Advance(100 * time.Millisecond)

	levels := s.PriceView(Bid, 10)
	if len(levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(levels))
	}

	top := levels[0]
	if top.Price != 99.50 || top.Quantity != 3000 || top.OrderCount != 2 {
		t.Fatalf("top level = %+v", top)
	}
	// Ages 200ms and 100ms, mean 150ms.
	if top.AvgAgeMs != 150 {
		t.Fatalf("top avg age = %dms, want 150ms", top.AvgAgeMs)
	}
	if top.TotalQuantity != 3000 {
		t.Fatalf("top cumulative = %d, want 3000", top.TotalQuantity)
	}

	second := levels[1]
	if second.Price != 99.40 || second.Quantity != 500 || second.OrderCount != 1 {
		t.Fatalf("second level = %+v", second)
	}
	if second.TotalQuantity != 3500 {
		t.Fatalf("second cumulative = %d, want 3500", second.TotalQuantity)
	}
}

func TestPriceViewDepthLimit(t *testing.T) {
	s, _ := testStore()
	for lvl := 0; lvl < 8; lvl++ {
		s.mustAdd(t, fmt.Sprintf("o%d", lvl), Ask, 100.00+float64(lvl)*0.01, 100)
	}

	levels := s.PriceView(Ask, 3)
	if len(levels) != 3 {
		t.Fatalf("got %d levels, want 3", len(levels))
	}
	if levels[0].Price != 100.00 || levels[2].Price != 100.02 {
		t.Fatalf("level prices = %.2f..%.2f, want 100.00..100.02", levels[0].Price, levels[2].Price)
	}
}

func TestSnapshotStampsSequenceAndTime(t *testing.T) {
	s, clk := testStore()
	s.mustAdd(t, "o1", Bid, 99.50, 1000)
	s.mustAdd(t, "o2", Ask, 100.50, 1500)

	orderSnap := s.Snapshot(OrderLevel, 5)
	levelSnap := s.Snapshot(PriceLevel, 5)

	if orderSnap.Sequence != 2 || levelSnap.Sequence != 2 {
		t.Fatalf("sequences = %d/%d, want 2/2", orderSnap.Sequence, levelSnap.Sequence)
	}
	if !orderSnap.Timestamp.Equal(clk.Now()) {
		t.Fatalf("snapshot time = %v, want %v", orderSnap.Timestamp, clk.Now())
	}
	if len(orderSnap.OrderBids) != 1 || len(orderSnap.OrderAsks) != 1 {
		t.Fatalf("order snapshot sides = %d/%d", len(orderSnap.OrderBids), len(orderSnap.OrderAsks))
	}
	if orderSnap.LevelBids != nil {
		t.Fatal("order snapshot carries level data")
	}
	if len(levelSnap.LevelBids) != 1 || len(levelSnap.LevelAsks) != 1 {
		t.Fatalf("level snapshot sides = %d/%d", len(levelSnap.LevelBids), len(levelSnap.LevelAsks))
	}
}
