package book

import (
	"fmt"

	"github.com/google/uuid"

	"matchbook/pkg/types"
)

// DualBook owns the bid and ask books for one instrument plus the side index
// that records which book each resting order lives in. Execute is the single
// entry point: it consumes one OrderMessage and returns every event the
// message produced, grouped by the order the event describes.
//
// Malformed messages — a cancel targeting an unknown id, a limit without a
// price, a duplicate resting id — are caller bugs and panic. A panic leaves
// the book in an undefined state; recovery is the host's problem.
type DualBook struct {
	bids  *SideBook
	asks  *SideBook
	sides map[types.OrderID]types.Side
	clock Clock
}

// Option configures a DualBook.
type Option func(*DualBook)

// WithClock replaces the event timestamp source.
func WithClock(c Clock) Option {
	return func(db *DualBook) { db.clock = c }
}

// New returns an empty dual book.
func New(opts ...Option) *DualBook {
	db := &DualBook{
		bids:  NewSideBook(types.SideBid),
		asks:  NewSideBook(types.SideAsk),
		sides: make(map[types.OrderID]types.Side),
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Count returns the number of resting orders on each side and in total.
func (db *DualBook) Count() (bids, asks, total int) {
	bids = db.bids.Count()
	asks = db.asks.Count()
	return bids, asks, bids + asks
}

// BestBid returns the highest resting bid price.
func (db *DualBook) BestBid() (types.Price, bool) {
	return db.bids.Best()
}

// BestAsk returns the lowest resting ask price.
func (db *DualBook) BestAsk() (types.Price, bool) {
	return db.asks.Best()
}

// Depth returns up to max aggregated levels per side, best-first.
func (db *DualBook) Depth(max int) (bids, asks []LevelSummary) {
	return db.bids.Levels(max), db.asks.Levels(max)
}

// Cancel removes the resting order with the given id from whichever side it
// lives on. ok is false if the id is not resting.
func (db *DualBook) Cancel(id types.OrderID) (types.RestingOrder, bool) {
	removed := db.remove(id)
	if removed == nil {
		return types.RestingOrder{}, false
	}
	return *removed, true
}

func (db *DualBook) remove(id types.OrderID) *types.RestingOrder {
	side, ok := db.sides[id]
	if !ok {
		return nil
	}
	delete(db.sides, id)
	switch side {
	case types.SideBid:
		return db.bids.Cancel(id)
	case types.SideAsk:
		return db.asks.Cancel(id)
	}
	panic(fmt.Sprintf("book: order %s indexed with side %v", id, side))
}

// Execute processes one message and returns the events it produced, grouped
// by order id. The submitted message's id is always a key; every resting
// order the message touched (matched or cancelled) contributes its own
// per-order sequence. Events within a sequence are in the chronological
// order the matcher produced them.
func (db *DualBook) Execute(msg *types.OrderMessage) map[types.OrderID][]types.OrderEvent {
	grouped := make(map[types.OrderID][]types.OrderEvent)
	var own []types.OrderEvent

	switch msg.Kind {
	case types.KindCancel:
		own = db.executeCancel(msg, grouped)
	case types.KindMarket:
		own = db.executeMarket(msg, grouped)
	case types.KindLimit:
		own = db.executeLimit(msg, grouped)
	default:
		panic(fmt.Sprintf("book: message %s has unknown kind %v", msg.ID, msg.Kind))
	}

	grouped[msg.ID] = own
	return grouped
}

// executeCancel removes the target and emits exactly two events: Cancelled
// for the removed order (with its volume at cancel time) and Closed for the
// cancel message itself.
func (db *DualBook) executeCancel(msg *types.OrderMessage, grouped map[types.OrderID][]types.OrderEvent) []types.OrderEvent {
	if msg.TargetID == uuid.Nil {
		panic(fmt.Sprintf("book: cancel %s without a target id", msg.ID))
	}
	removed := db.remove(msg.TargetID)
	if removed == nil {
		panic(fmt.Sprintf("book: cancel %s targets unknown order %s", msg.ID, msg.TargetID))
	}

	now := db.clock()
	grouped[removed.ID] = []types.OrderEvent{{
		Timestamp:       now,
		Kind:            types.EventCancelled,
		RemainingVolume: vptr(removed.RemainingVolume),
		CrossedID:       removed.ID,
	}}
	return []types.OrderEvent{{
		Timestamp: now,
		Kind:      types.EventClosed,
		CrossedID: msg.ID,
	}}
}

// executeLimit crosses the incoming limit against the opposite book while
// the best opposite price remains crossable, rests any residual volume at
// the limit price, then appends the trailing NoMatch/Open/Closed events.
func (db *DualBook) executeLimit(msg *types.OrderMessage, grouped map[types.OrderID][]types.OrderEvent) []types.OrderEvent {
	if msg.Volume == 0 {
		panic(fmt.Sprintf("book: limit %s without volume", msg.ID))
	}
	if msg.Price == 0 {
		panic(fmt.Sprintf("book: limit %s without price", msg.ID))
	}
	opp := db.opposite(msg.Side)

	st := &sweep{incoming: msg.ID, remaining: msg.Volume}
	if opp.Count() > 0 {
		opp.Scan(func(price types.Price, orders []*types.RestingOrder) bool {
			if !crossable(msg.Side, msg.Price, price) {
				return false
			}
			db.crossLevel(price, orders, st.remaining, st, grouped)
			return st.remaining > 0
		})
	}

	if st.remaining > 0 {
		db.rest(msg, st.remaining)
	}
	db.drainExhausted(opp, st)

	if st.traded == 0 {
		st.events = append(st.events, types.OrderEvent{
			Timestamp:       db.clock(),
			Kind:            types.EventNoMatch,
			RemainingVolume: vptr(st.remaining),
		})
	}
	terminal := types.EventClosed
	if st.remaining > 0 {
		terminal = types.EventOpen
	}
	st.events = append(st.events, types.OrderEvent{
		Timestamp:       db.clock(),
		Kind:            terminal,
		RemainingVolume: vptr(st.remaining),
	})
	return st.events
}

// executeMarket sweeps the opposite book best-first with no price bound.
// Sell-side markets are budgeted by volume alone; buy-side markets are
// additionally capped per level by the remaining quote budget. Market orders
// never rest.
func (db *DualBook) executeMarket(msg *types.OrderMessage, grouped map[types.OrderID][]types.OrderEvent) []types.OrderEvent {
	if msg.Volume == 0 {
		panic(fmt.Sprintf("book: market %s without volume", msg.ID))
	}

	st := &sweep{incoming: msg.ID, remaining: msg.Volume}
	switch msg.Side {
	case types.SideAsk:
		if db.bids.Count() > 0 {
			db.bids.Scan(func(price types.Price, orders []*types.RestingOrder) bool {
				db.crossLevel(price, orders, st.remaining, st, grouped)
				return st.remaining > 0
			})
			db.drainExhausted(db.bids, st)
		}
	case types.SideBid:
		if db.asks.Count() > 0 {
			if msg.MaxQuote == 0 {
				panic(fmt.Sprintf("book: buy market %s without max quote", msg.ID))
			}
			budget := msg.MaxQuote
			db.asks.Scan(func(price types.Price, orders []*types.RestingOrder) bool {
				// Volume ceiling for this level: whatever the quote budget
				// still affords at this price, truncated.
				ceiling := st.remaining
				if need := types.Quote(uint64(ceiling) * uint64(price)); need > budget {
					ceiling = types.Volume(uint64(budget) / uint64(price))
				}
				if ceiling == 0 {
					return false
				}
				levelTraded := db.crossLevel(price, orders, ceiling, st, grouped)
				budget -= types.Quote(uint64(levelTraded) * uint64(price))
				return st.remaining > 0
			})
			db.drainExhausted(db.asks, st)
		}
	default:
		panic(fmt.Sprintf("book: market %s without a side", msg.ID))
	}

	if st.traded == 0 {
		st.events = append(st.events, types.OrderEvent{
			Timestamp:       db.clock(),
			Kind:            types.EventNoMatch,
			RemainingVolume: vptr(st.remaining),
		})
	}
	st.events = append(st.events, types.OrderEvent{
		Timestamp:       db.clock(),
		Kind:            types.EventClosed,
		RemainingVolume: vptr(st.remaining),
	})
	return st.events
}

// sweep carries the incoming order's budgets and emissions while it walks
// the opposite book.
type sweep struct {
	incoming  types.OrderID
	remaining types.Volume       // unfilled volume of the incoming order
	traded    types.Volume       // cumulative volume filled so far
	exhausted []types.OrderID    // resting orders drained to zero, removed after traversal
	events    []types.OrderEvent // the incoming order's own event sequence
}

// crossLevel fills the incoming order against one level's FIFO, head first,
// trading at most maxVol units at the level's price. Resting orders are
// mutated in place; structural removal is deferred so the level scan above
// stays stable. Returns the volume traded at this level.
func (db *DualBook) crossLevel(
	price types.Price,
	orders []*types.RestingOrder,
	maxVol types.Volume,
	st *sweep,
	grouped map[types.OrderID][]types.OrderEvent,
) types.Volume {
	var levelTraded types.Volume
	for _, resting := range orders {
		if levelTraded == maxVol {
			break
		}
		fill := resting.RemainingVolume
		if room := maxVol - levelTraded; fill > room {
			fill = room
		}

		resting.RemainingVolume -= fill
		st.remaining -= fill
		st.traded += fill
		levelTraded += fill

		st.events = append(st.events, types.OrderEvent{
			Timestamp:       db.clock(),
			Kind:            types.EventHasMatch,
			RemainingVolume: vptr(st.remaining),
			TradedPrice:     pptr(price),
			CrossedID:       resting.ID,
		})

		restingEvents := []types.OrderEvent{{
			Timestamp:       db.clock(),
			Kind:            types.EventHasMatch,
			RemainingVolume: vptr(resting.RemainingVolume),
			TradedPrice:     pptr(price),
			CrossedID:       st.incoming,
		}}
		if resting.RemainingVolume == 0 {
			restingEvents = append(restingEvents, types.OrderEvent{
				Timestamp:       db.clock(),
				Kind:            types.EventClosed,
				RemainingVolume: vptr(0),
			})
			st.exhausted = append(st.exhausted, resting.ID)
		}
		grouped[resting.ID] = restingEvents
	}
	return levelTraded
}

// drainExhausted structurally removes every resting order the sweep drained
// to zero, dropping emptied levels and keeping the side index in step.
func (db *DualBook) drainExhausted(opp *SideBook, st *sweep) {
	for _, id := range st.exhausted {
		delete(db.sides, id)
		opp.Cancel(id)
	}
	st.exhausted = st.exhausted[:0]
}

// rest inserts the unfilled remainder of a limit message into its own book.
func (db *DualBook) rest(msg *types.OrderMessage, remaining types.Volume) {
	if _, ok := db.sides[msg.ID]; ok {
		panic(fmt.Sprintf("book: insert of already resting order %s", msg.ID))
	}
	db.sameSide(msg.Side).Insert(msg.Price, &types.RestingOrder{
		ID:              msg.ID,
		RemainingVolume: remaining,
	})
	db.sides[msg.ID] = msg.Side
}

func (db *DualBook) opposite(side types.Side) *SideBook {
	switch side {
	case types.SideBid:
		return db.asks
	case types.SideAsk:
		return db.bids
	}
	panic(fmt.Sprintf("book: message without a side (%v)", side))
}

func (db *DualBook) sameSide(side types.Side) *SideBook {
	switch side {
	case types.SideBid:
		return db.bids
	case types.SideAsk:
		return db.asks
	}
	panic(fmt.Sprintf("book: message without a side (%v)", side))
}

// crossable reports whether an incoming order bounded at limit may trade at
// the opposite level price: a bid crosses asks priced at or below its limit,
// an ask crosses bids priced at or above.
func crossable(side types.Side, limit, level types.Price) bool {
	if side == types.SideBid {
		return level <= limit
	}
	return level >= limit
}

// Integrity checks the whole-book invariants that must hold between
// messages: both sides structurally valid, the side index in bijection with
// the per-side indexes, and the book uncrossed.
func (db *DualBook) Integrity() error {
	if err := db.bids.validate(); err != nil {
		return err
	}
	if err := db.asks.validate(); err != nil {
		return err
	}

	if got, want := len(db.sides), db.bids.Count()+db.asks.Count(); got != want {
		return fmt.Errorf("book: side index holds %d ids but books hold %d orders", got, want)
	}
	for id, side := range db.sides {
		switch side {
		case types.SideBid:
			if _, ok := db.bids.index[id]; !ok {
				return fmt.Errorf("book: order %s indexed as bid but not resting in bids", id)
			}
			if _, ok := db.asks.index[id]; ok {
				return fmt.Errorf("book: order %s resting on both sides", id)
			}
		case types.SideAsk:
			if _, ok := db.asks.index[id]; !ok {
				return fmt.Errorf("book: order %s indexed as ask but not resting in asks", id)
			}
			if _, ok := db.bids.index[id]; ok {
				return fmt.Errorf("book: order %s resting on both sides", id)
			}
		default:
			return fmt.Errorf("book: order %s indexed with side %v", id, side)
		}
	}

	if bid, ok := db.BestBid(); ok {
		if ask, ok := db.BestAsk(); ok && bid >= ask {
			return fmt.Errorf("book: crossed book, best bid %d >= best ask %d", bid, ask)
		}
	}
	return nil
}

func vptr(v types.Volume) *types.Volume { return &v }
func pptr(p types.Price) *types.Price   { return &p }
