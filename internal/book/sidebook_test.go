package book

import (
	"testing"

	"github.com/google/uuid"

	"matchbook/pkg/types"
)

func TestSideBookInsertAndCount(t *testing.T) {
	t.Parallel()
	sb := NewSideBook(types.SideAsk)

	if sb.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", sb.Count())
	}

	a := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 10}
	b := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 20}
	sb.Insert(100, a)
	sb.Insert(200, b)

	if sb.Count() != 2 {
		t.Errorf("Count() = %d, want 2", sb.Count())
	}
	best, ok := sb.Best()
	if !ok || best != 100 {
		t.Errorf("Best() = %d, %v, want 100, true", best, ok)
	}
}

func TestSideBookBestFirstOrder(t *testing.T) {
	t.Parallel()

	bids := NewSideBook(types.SideBid)
	asks := NewSideBook(types.SideAsk)
	for _, p := range []types.Price{150, 100, 200} {
		bids.Insert(p, &types.RestingOrder{ID: uuid.New(), RemainingVolume: 1})
		asks.Insert(p, &types.RestingOrder{ID: uuid.New(), RemainingVolume: 1})
	}

	var bidPrices, askPrices []types.Price
	bids.Scan(func(p types.Price, _ []*types.RestingOrder) bool {
		bidPrices = append(bidPrices, p)
		return true
	})
	asks.Scan(func(p types.Price, _ []*types.RestingOrder) bool {
		askPrices = append(askPrices, p)
		return true
	})

	wantBids := []types.Price{200, 150, 100}
	wantAsks := []types.Price{100, 150, 200}
	for i := range wantBids {
		if bidPrices[i] != wantBids[i] {
			t.Errorf("bid scan order %v, want %v", bidPrices, wantBids)
			break
		}
	}
	for i := range wantAsks {
		if askPrices[i] != wantAsks[i] {
			t.Errorf("ask scan order %v, want %v", askPrices, wantAsks)
			break
		}
	}
}

func TestSideBookFIFOWithinLevel(t *testing.T) {
	t.Parallel()
	sb := NewSideBook(types.SideAsk)

	first := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 1}
	second := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 2}
	third := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 3}
	sb.Insert(100, first)
	sb.Insert(100, second)
	sb.Insert(100, third)

	var got []types.OrderID
	sb.Scan(func(_ types.Price, orders []*types.RestingOrder) bool {
		for _, o := range orders {
			got = append(got, o.ID)
		}
		return true
	})
	want := []types.OrderID{first.ID, second.ID, third.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FIFO order broken at %d: got %v, want %v", i, got, want)
		}
	}

	// Removing from the middle must preserve the relative order of survivors.
	if removed := sb.Cancel(second.ID); removed == nil || removed.ID != second.ID {
		t.Fatalf("Cancel(second) = %v", removed)
	}
	got = got[:0]
	sb.Scan(func(_ types.Price, orders []*types.RestingOrder) bool {
		for _, o := range orders {
			got = append(got, o.ID)
		}
		return true
	})
	if len(got) != 2 || got[0] != first.ID || got[1] != third.ID {
		t.Errorf("after mid-level cancel, order = %v, want [first third]", got)
	}
}

func TestSideBookCancel(t *testing.T) {
	t.Parallel()
	sb := NewSideBook(types.SideBid)

	o := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 38000}
	sb.Insert(9800000, o)

	removed := sb.Cancel(o.ID)
	if removed == nil || removed.RemainingVolume != 38000 {
		t.Fatalf("Cancel() = %v, want volume 38000", removed)
	}
	if sb.Count() != 0 {
		t.Errorf("Count() = %d after cancel, want 0", sb.Count())
	}
	// The emptied level must be gone.
	if _, ok := sb.Best(); ok {
		t.Error("Best() ok = true on empty book")
	}
	// Cancelling again is a no-op.
	if again := sb.Cancel(o.ID); again != nil {
		t.Errorf("second Cancel() = %v, want nil", again)
	}
	if err := sb.validate(); err != nil {
		t.Errorf("validate() = %v", err)
	}
}

func TestSideBookDuplicateInsertPanics(t *testing.T) {
	t.Parallel()
	sb := NewSideBook(types.SideAsk)
	o := &types.RestingOrder{ID: uuid.New(), RemainingVolume: 5}
	sb.Insert(100, o)

	defer func() {
		if recover() == nil {
			t.Error("inserting a duplicate id did not panic")
		}
	}()
	sb.Insert(200, &types.RestingOrder{ID: o.ID, RemainingVolume: 7})
}

func TestSideBookLevels(t *testing.T) {
	t.Parallel()
	sb := NewSideBook(types.SideAsk)
	sb.Insert(100, &types.RestingOrder{ID: uuid.New(), RemainingVolume: 5})
	sb.Insert(100, &types.RestingOrder{ID: uuid.New(), RemainingVolume: 7})
	sb.Insert(200, &types.RestingOrder{ID: uuid.New(), RemainingVolume: 3})

	levels := sb.Levels(0)
	if len(levels) != 2 {
		t.Fatalf("len(Levels) = %d, want 2", len(levels))
	}
	if levels[0].Price != 100 || levels[0].Volume != 12 || levels[0].Orders != 2 {
		t.Errorf("levels[0] = %+v, want {100 12 2}", levels[0])
	}
	if levels[1].Price != 200 || levels[1].Volume != 3 || levels[1].Orders != 1 {
		t.Errorf("levels[1] = %+v, want {200 3 1}", levels[1])
	}

	if top := sb.Levels(1); len(top) != 1 || top[0].Price != 100 {
		t.Errorf("Levels(1) = %+v, want only the best level", top)
	}
}
