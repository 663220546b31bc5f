package feed

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchbook/internal/config"
	"matchbook/pkg/types"
)

// SyncSource is a source the engine drives one message at a time: Next,
// execute, Observe, repeat. The Generator is synchronous by construction —
// it must see each execution result before choosing the next message, or it
// could cancel an order that a just-processed taker already removed.
type SyncSource interface {
	Next() (*types.OrderMessage, bool)
	Observer
}

// Generator produces random mixed flow: limit orders priced uniformly in
// [mid-band, mid+band], market orders, and cancels of orders it has seen
// rest. Flow composition is controlled by the configured ratios; everything
// else is limit flow.
type Generator struct {
	cfg config.FeedConfig
	rng *rand.Rand

	mu       sync.Mutex
	live     []types.OrderID
	liveIdx  map[types.OrderID]int
	produced int
}

// NewGenerator creates a generator. Seed 0 seeds from the clock.
func NewGenerator(cfg config.FeedConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		liveIdx: make(map[types.OrderID]int),
	}
}

// Next returns the next message, or ok=false once Count messages have been
// produced.
func (g *Generator) Next() (*types.OrderMessage, bool) {
	if g.cfg.Count > 0 && g.produced >= g.cfg.Count {
		return nil, false
	}
	g.produced++

	now := types.Timestamp(time.Now().UnixNano())
	roll := g.rng.Float64()

	g.mu.Lock()
	liveCount := len(g.live)
	g.mu.Unlock()

	switch {
	case roll < g.cfg.CancelRatio && liveCount > 0:
		return &types.OrderMessage{
			ID:        uuid.New(),
			TargetID:  g.pickLive(),
			CreatedAt: now,
			Kind:      types.KindCancel,
		}, true

	case roll < g.cfg.CancelRatio+g.cfg.MarketRatio:
		side := g.side()
		volume := g.volume()
		msg := &types.OrderMessage{
			ID:        uuid.New(),
			CreatedAt: now,
			Side:      side,
			Kind:      types.KindMarket,
			Volume:    volume,
		}
		if side == types.SideBid {
			// Budget enough for the worst price in the band, so the quote
			// cap never limits a buy market against generated asks; only
			// missing liquidity leaves volume unfilled.
			msg.MaxQuote = types.Quote(uint64(volume) * (g.cfg.MidPrice + g.cfg.PriceBand))
		}
		return msg, true

	default:
		return &types.OrderMessage{
			ID:        uuid.New(),
			CreatedAt: now,
			Side:      g.side(),
			Kind:      types.KindLimit,
			Volume:    g.volume(),
			Price:     g.price(),
		}, true
	}
}

// Observe updates the live-order set from one execution result: orders that
// rested become cancellable, orders that closed or were cancelled stop being
// candidates.
func (g *Generator) Observe(results map[types.OrderID][]types.OrderEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, events := range results {
		for _, e := range events {
			switch e.Kind {
			case types.EventOpen:
				g.addLive(id)
			case types.EventClosed, types.EventCancelled:
				g.removeLive(id)
			}
		}
	}
}

// Produced returns how many messages Next has handed out.
func (g *Generator) Produced() int {
	return g.produced
}

// LiveOrders returns how many generated orders are currently resting.
func (g *Generator) LiveOrders() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

func (g *Generator) pickLive() types.OrderID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live[g.rng.Intn(len(g.live))]
}

// addLive and removeLive keep the candidate slice and its position index in
// step; removal swaps the tail in so both stay O(1).
func (g *Generator) addLive(id types.OrderID) {
	if _, ok := g.liveIdx[id]; ok {
		return
	}
	g.liveIdx[id] = len(g.live)
	g.live = append(g.live, id)
}

func (g *Generator) removeLive(id types.OrderID) {
	i, ok := g.liveIdx[id]
	if !ok {
		return
	}
	last := len(g.live) - 1
	g.live[i] = g.live[last]
	g.liveIdx[g.live[i]] = i
	g.live = g.live[:last]
	delete(g.liveIdx, id)
}

func (g *Generator) side() types.Side {
	if g.rng.Intn(2) == 0 {
		return types.SideBid
	}
	return types.SideAsk
}

func (g *Generator) volume() types.Volume {
	return types.Volume(1 + g.rng.Int63n(int64(g.cfg.MaxVolume)))
}

func (g *Generator) price() types.Price {
	low := g.cfg.MidPrice - g.cfg.PriceBand
	span := int64(2*g.cfg.PriceBand) + 1
	return types.Price(low + uint64(g.rng.Int63n(span)))
}
