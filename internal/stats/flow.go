// Package stats tracks recent trade flow in a rolling time window.
// The tracker feeds the dashboard snapshot: traded volume by taker side,
// volume-weighted average price, and trade velocity.
package stats

import (
	"sync"
	"time"

	"matchbook/pkg/types"
)

// Trade is one fill as seen from the taker's side.
type Trade struct {
	Timestamp time.Time
	TakerSide types.Side
	Price     types.Price
	Volume    types.Volume
}

// FlowSnapshot contains aggregate flow metrics over the window.
type FlowSnapshot struct {
	TradeCount   int     `json:"trade_count"`
	BuyVolume    uint64  `json:"buy_volume"`  // taker-buy lots
	SellVolume   uint64  `json:"sell_volume"` // taker-sell lots
	VWAP         float64 `json:"vwap"`
	TradesPerMin float64 `json:"trades_per_min"`
	Imbalance    float64 `json:"imbalance"` // [0, 1]: share of volume on the dominant side
}

// Tracker keeps trades inside a rolling window and derives flow metrics.
type Tracker struct {
	mu     sync.RWMutex
	window time.Duration
	trades []Trade
}

// NewTracker creates a tracker with the given window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		trades: make([]Trade, 0, 256),
	}
}

// AddTrade records a fill and evicts entries outside the window.
func (t *Tracker) AddTrade(trade Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trades = append(t.trades, trade)
	t.evictStaleLocked()
}

// evictStaleLocked removes trades older than the window duration.
// Must be called with lock held.
func (t *Tracker) evictStaleLocked() {
	if len(t.trades) == 0 {
		return
	}

	cutoff := time.Now().Add(-t.window)
	validIdx := -1
	for i, trade := range t.trades {
		if trade.Timestamp.After(cutoff) {
			validIdx = i
			break
		}
	}

	if validIdx == -1 {
		t.trades = t.trades[:0]
		return
	}
	if validIdx > 0 {
		t.trades = t.trades[validIdx:]
	}
}

// Snapshot computes flow metrics from the trades currently in the window.
func (t *Tracker) Snapshot() FlowSnapshot {
	t.mu.Lock()
	t.evictStaleLocked()
	t.mu.Unlock()

	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.trades) == 0 {
		return FlowSnapshot{}
	}

	var buyVol, sellVol, notional uint64
	for _, trade := range t.trades {
		v := uint64(trade.Volume)
		if trade.TakerSide == types.SideBid {
			buyVol += v
		} else {
			sellVol += v
		}
		notional += v * uint64(trade.Price)
	}

	total := buyVol + sellVol
	snap := FlowSnapshot{
		TradeCount: len(t.trades),
		BuyVolume:  buyVol,
		SellVolume: sellVol,
	}
	if total > 0 {
		snap.VWAP = float64(notional) / float64(total)
		dominant := buyVol
		if sellVol > dominant {
			dominant = sellVol
		}
		snap.Imbalance = float64(dominant) / float64(total)
	}
	if minutes := t.window.Minutes(); minutes > 0 {
		snap.TradesPerMin = float64(len(t.trades)) / minutes
	}
	return snap
}

// Count returns the number of trades in the current window.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trades)
}
