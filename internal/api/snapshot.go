package api

import (
	"time"

	"matchbook/internal/book"
	"matchbook/internal/stats"
)

// EngineProvider provides snapshot access to engine state.
type EngineProvider interface {
	BookStatus() BookStatus
	FlowStatus() stats.FlowSnapshot
	Processed() uint64
}

// PriceLevelView is one aggregated depth level for the dashboard.
type PriceLevelView struct {
	Price        uint64 `json:"price"`
	PriceDisplay string `json:"price_display"`
	Volume       uint64 `json:"volume"`
	Orders       int    `json:"orders"`
}

// BookStatus is the dashboard view of the dual book.
type BookStatus struct {
	Symbol     string `json:"symbol"`
	BidCount   int    `json:"bid_count"`
	AskCount   int    `json:"ask_count"`
	TotalCount int    `json:"total_count"`

	BestBid        uint64 `json:"best_bid"`
	BestAsk        uint64 `json:"best_ask"`
	BestBidDisplay string `json:"best_bid_display,omitempty"`
	BestAskDisplay string `json:"best_ask_display,omitempty"`

	Bids []PriceLevelView `json:"bids"`
	Asks []PriceLevelView `json:"asks"`
}

// Snapshot represents the complete dashboard state.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Book      BookStatus         `json:"book"`
	Flow      stats.FlowSnapshot `json:"flow"`
	Processed uint64             `json:"processed"`
}

// BuildSnapshot aggregates state from the engine into a dashboard snapshot.
func BuildSnapshot(provider EngineProvider) Snapshot {
	return Snapshot{
		Timestamp: time.Now(),
		Book:      provider.BookStatus(),
		Flow:      provider.FlowStatus(),
		Processed: provider.Processed(),
	}
}

// LevelViews converts book depth summaries into dashboard views.
func LevelViews(levels []book.LevelSummary, scale int32) []PriceLevelView {
	out := make([]PriceLevelView, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, PriceLevelView{
			Price:        uint64(lvl.Price),
			PriceDisplay: lvl.Price.Decimal(scale).String(),
			Volume:       uint64(lvl.Volume),
			Orders:       lvl.Orders,
		})
	}
	return out
}
