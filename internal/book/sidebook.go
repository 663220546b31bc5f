// Package book implements the matching core: two price-sorted side books and
// the dual-book matcher that crosses incoming flow against resting liquidity
// under strict price-time priority.
//
// The core is single-threaded and synchronous. One logical owner drives a
// DualBook at a time; there is no internal locking, no I/O, and no blocking.
// Hosts that want per-instrument parallelism run one DualBook per instrument
// behind their own single-writer queue.
package book

import (
	"fmt"

	"github.com/tidwall/btree"

	"matchbook/pkg/types"
)

// priceLevel is one price bucket: the FIFO of resting orders quoted at that
// price. Queue order is strictly insertion order — time priority within the
// level.
type priceLevel struct {
	price  types.Price
	orders []*types.RestingOrder
}

// SideBook holds the resting orders of one side. Price levels live in a
// B-tree whose less-function encodes best-first order (descending for bids,
// ascending for asks), so an ascending scan of the tree is always a
// best-price-outward traversal. A secondary index maps each resting order id
// to its price level so cancels never scan the tree.
type SideBook struct {
	side   types.Side
	levels *btree.BTreeG[*priceLevel]
	index  map[types.OrderID]types.Price
}

// NewSideBook creates an empty book for the given side.
func NewSideBook(side types.Side) *SideBook {
	var less func(a, b *priceLevel) bool
	if side == types.SideBid {
		less = func(a, b *priceLevel) bool { return a.price > b.price }
	} else {
		less = func(a, b *priceLevel) bool { return a.price < b.price }
	}
	return &SideBook{
		side:   side,
		levels: btree.NewBTreeG(less),
		index:  make(map[types.OrderID]types.Price),
	}
}

// Side returns which side this book holds.
func (sb *SideBook) Side() types.Side {
	return sb.side
}

// Count returns the number of resting orders on this side.
func (sb *SideBook) Count() int {
	return len(sb.index)
}

// Insert appends order to the tail of the FIFO at price, creating the level
// if absent. Inserting an id that is already resting is a caller bug and
// panics: the id index would no longer be a bijection.
func (sb *SideBook) Insert(price types.Price, order *types.RestingOrder) {
	if _, ok := sb.index[order.ID]; ok {
		panic(fmt.Sprintf("book: insert of already resting order %s", order.ID))
	}
	if lvl, ok := sb.levels.GetMut(&priceLevel{price: price}); ok {
		lvl.orders = append(lvl.orders, order)
	} else {
		sb.levels.Set(&priceLevel{price: price, orders: []*types.RestingOrder{order}})
	}
	sb.index[order.ID] = price
}

// Cancel removes the order with the given id and returns it, or nil if the
// id is not resting here. The relative order of the surviving entries at the
// level is preserved, and the level is dropped once empty.
func (sb *SideBook) Cancel(id types.OrderID) *types.RestingOrder {
	price, ok := sb.index[id]
	if !ok {
		return nil
	}
	delete(sb.index, id)

	lvl, ok := sb.levels.GetMut(&priceLevel{price: price})
	if !ok {
		return nil
	}
	for i, order := range lvl.orders {
		if order.ID == id {
			lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
			if len(lvl.orders) == 0 {
				sb.levels.Delete(&priceLevel{price: price})
			}
			return order
		}
	}
	return nil
}

// Best returns the best price on this side: the highest bid or the lowest
// ask. ok is false when the side is empty.
func (sb *SideBook) Best() (types.Price, bool) {
	lvl, ok := sb.levels.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Scan walks the price levels best-first, handing each level's price and its
// FIFO (head first) to fn. Iteration stops when fn returns false. Callers
// may mutate the resting orders in place but must not insert or remove
// levels while scanning; structural removal is deferred to Cancel.
func (sb *SideBook) Scan(fn func(price types.Price, orders []*types.RestingOrder) bool) {
	sb.levels.Scan(func(lvl *priceLevel) bool {
		return fn(lvl.price, lvl.orders)
	})
}

// LevelSummary is an aggregate view of one price level, used by depth
// snapshots.
type LevelSummary struct {
	Price  types.Price  `json:"price"`
	Volume types.Volume `json:"volume"`
	Orders int          `json:"orders"`
}

// Levels returns up to max aggregated levels best-first. max <= 0 returns
// every level.
func (sb *SideBook) Levels(max int) []LevelSummary {
	var out []LevelSummary
	sb.levels.Scan(func(lvl *priceLevel) bool {
		sum := LevelSummary{Price: lvl.price, Orders: len(lvl.orders)}
		for _, order := range lvl.orders {
			sum.Volume += order.RemainingVolume
		}
		out = append(out, sum)
		return max <= 0 || len(out) < max
	})
	return out
}

// validate walks the side and checks its structural invariants: no empty
// levels, every resting volume positive, and the id index in exact agreement
// with the level contents.
func (sb *SideBook) validate() error {
	seen := 0
	var err error
	sb.levels.Scan(func(lvl *priceLevel) bool {
		if len(lvl.orders) == 0 {
			err = fmt.Errorf("book: %s level %d has an empty queue", sb.side, lvl.price)
			return false
		}
		for _, order := range lvl.orders {
			if order.RemainingVolume == 0 {
				err = fmt.Errorf("book: %s order %s resting with zero volume", sb.side, order.ID)
				return false
			}
			indexed, ok := sb.index[order.ID]
			if !ok {
				err = fmt.Errorf("book: %s order %s at level %d missing from index", sb.side, order.ID, lvl.price)
				return false
			}
			if indexed != lvl.price {
				err = fmt.Errorf("book: %s order %s indexed at %d but resting at %d", sb.side, order.ID, indexed, lvl.price)
				return false
			}
			seen++
		}
		return true
	})
	if err != nil {
		return err
	}
	if seen != len(sb.index) {
		return fmt.Errorf("book: %s index holds %d ids but levels hold %d orders", sb.side, len(sb.index), seen)
	}
	return nil
}
